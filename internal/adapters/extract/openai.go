// Package extract pulls a project programme out of free text using an
// OpenAI-compatible chat completion endpoint.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/liusai0820/smartscore/internal/adapters/importer"
	"github.com/liusai0820/smartscore/pkg/logger"
	"github.com/liusai0820/smartscore/pkg/metrics"
)

// Sentinel kinds for extraction errors.
var (
	ErrUnavailable = errors.New("extraction unavailable")
	ErrBadResponse = errors.New("malformed extraction response")
)

// Defaults mirror what works for a one-page programme sheet.
const (
	DefaultModel    = "gpt-4o"
	DefaultMaxChars = 15000
	defaultTimeout  = 60 * time.Second
	temperature     = 0.1
)

const systemPrompt = "You are a helpful assistant that extracts JSON data."

const userPromptTemplate = `You are a data extraction assistant. Extract structured project information from the raw text below (it may come from an Excel sheet or a Word document).

For each project found, extract:
- name: the name of the project or topic.
- department: the department or unit responsible.
- presenter: the person presenting or in charge.
- description: a brief description, if available.

Keep the projects in exactly the order they appear in the text. Do not reorder them.

Return only a JSON object with a "projects" key holding an array of objects, for example:
{"projects": [{"name": "Project A", "department": "Tech", "presenter": "John", "description": "..."}]}

Use an empty string for a missing field and do not invent information.
If no projects are found, return {"projects": []}.

Raw text:
%s`

// Extractor turns raw text into programme lines.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]importer.ProjectRecord, error)
}

type settings struct {
	baseURL    string
	model      string
	maxChars   int
	timeout    time.Duration
	limit      rate.Limit
	burst      int
	httpClient *http.Client
	log        logger.Logger
}

// Option configures an OpenAIExtractor.
type Option func(*settings)

// WithBaseURL points the client at an OpenAI-compatible gateway such as OpenRouter.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithModel selects the chat model.
func WithModel(m string) Option {
	return func(s *settings) {
		if m != "" {
			s.model = m
		}
	}
}

// WithMaxChars caps how much text is sent, counted in runes.
func WithMaxChars(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxChars = n
		}
	}
}

// WithTimeout bounds a single upstream call.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRateLimit paces upstream calls with a token bucket.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *settings) {
		if limit > 0 && burst > 0 {
			s.limit = limit
			s.burst = burst
		}
	}
}

// WithHTTPClient overrides the transport, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// OpenAIExtractor implements Extractor with go-openai.
type OpenAIExtractor struct {
	client   *openai.Client
	model    string
	maxChars int
	limiter  *rate.Limiter
	log      logger.Logger
	tracer   trace.Tracer
}

// NewOpenAIExtractor builds an extractor. An empty apiKey yields ErrUnavailable.
func NewOpenAIExtractor(apiKey string, opts ...Option) (*OpenAIExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no api key configured", ErrUnavailable)
	}
	s := settings{
		model:    DefaultModel,
		maxChars: DefaultMaxChars,
		timeout:  defaultTimeout,
		limit:    rate.Every(2 * time.Second),
		burst:    2,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}

	cfg := openai.DefaultConfig(apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}
	if s.httpClient != nil {
		cfg.HTTPClient = s.httpClient
	} else {
		cfg.HTTPClient = &http.Client{Timeout: s.timeout}
	}

	return &OpenAIExtractor{
		client:   openai.NewClientWithConfig(cfg),
		model:    s.model,
		maxChars: s.maxChars,
		limiter:  rate.NewLimiter(s.limit, s.burst),
		log:      s.log,
		tracer:   otel.Tracer("smartscore/extract"),
	}, nil
}

type payload struct {
	Projects []importer.ProjectRecord `json:"projects"`
}

// Extract returns projects in the order they appear in text. Blank text
// returns an empty list without calling upstream.
func (e *OpenAIExtractor) Extract(ctx context.Context, text string) (out []importer.ProjectRecord, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []importer.ProjectRecord{}, nil
	}
	text = truncateRunes(text, e.maxChars)

	ctx, span := e.tracer.Start(ctx, "extract.projects", trace.WithAttributes(
		attribute.String("llm.model", e.model),
		attribute.Int("llm.prompt.chars", len(text)),
	))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("extract.projects", len(out)))
		}
		metrics.RecordExtraction(outcome, float64(time.Since(start).Milliseconds()))
		span.End()
	}()

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPromptTemplate, text)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			e.log.Warn(ctx, "extraction upstream rejected request",
				logger.Int("status", apiErr.HTTPStatusCode),
				logger.String("message", apiErr.Message))
			return nil, fmt.Errorf("%w: upstream status %d: %s", ErrUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: no content", ErrBadResponse)
	}

	var p payload
	if err := json.Unmarshal([]byte(stripFences(resp.Choices[0].Message.Content)), &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	kept := make([]importer.ProjectRecord, 0, len(p.Projects))
	for _, r := range p.Projects {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		kept = append(kept, r)
	}
	if err := importer.ValidateProjects(kept); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	e.log.Info(ctx, "projects extracted", logger.Int("count", len(kept)), logger.Int("dropped", len(p.Projects)-len(kept)))
	return kept, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// stripFences tolerates gateways that wrap JSON mode output in a markdown fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var _ Extractor = (*OpenAIExtractor)(nil)
