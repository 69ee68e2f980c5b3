package simvotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/liusai0820/smartscore/internal/auth"
	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/internal/domain/results"
)

// apiError is the service's error body.
type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type scoreRequest struct {
	ProjectID string `json:"projectId"`
	model.Dimensions
}

// client talks to the public and reviewer API.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *client) display(ctx context.Context) (results.Display, error) {
	var d results.Display
	err := c.do(ctx, http.MethodGet, "/api/display", "", nil, &d)
	return d, err
}

func (c *client) login(ctx context.Context, name, passcode string) (string, error) {
	var s auth.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{"name": name, "passcode": passcode}, &s)
	return s.Token, err
}

func (c *client) submit(ctx context.Context, token, projectID string, d model.Dimensions) error {
	return c.do(ctx, http.MethodPost, "/api/scores", token, scoreRequest{ProjectID: projectID, Dimensions: d}, nil)
}
