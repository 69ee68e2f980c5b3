// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/liusai0820/smartscore/pkg/logger"
)

// defaultMaxBodyBytes bounds JSON and import bodies.
const defaultMaxBodyBytes = 4 << 20

// Dependencies required by HTTP handlers. Each handler only sees the
// narrow interface it needs.
type Dependencies interface {
	Authenticator
	SessionDependencies
	ScoringDependencies
	DisplayDependencies
	DashboardDependencies
	AdminDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	auth         Authenticator
	log          logger.Logger
	maxBodyBytes int64

	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	sessionHandler   *SessionHandler
	scoresHandler    *ScoresHandler
	displayHandler   *DisplayHandler
	dashboardHandler *DashboardHandler
	adminHandler     *AdminHandler
}

type serverOptions struct {
	secureCookies bool
	maxBodyBytes  int64
	log           logger.Logger
}

// ServerOption configures NewServer.
type ServerOption func(*serverOptions)

// WithSecureCookies marks session cookies Secure, for HTTPS deployments.
func WithSecureCookies(secure bool) ServerOption {
	return func(o *serverOptions) { o.secureCookies = secure }
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) ServerOption {
	return func(o *serverOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	o := serverOptions{maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get()
	}
	return &Server{
		auth:             deps,
		log:              o.log,
		maxBodyBytes:     o.maxBodyBytes,
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		sessionHandler:   NewSessionHandler(deps, o.secureCookies, o.log),
		scoresHandler:    NewScoresHandler(deps, o.log),
		displayHandler:   NewDisplayHandler(deps, o.log),
		dashboardHandler: NewDashboardHandler(deps, o.log),
		adminHandler:     NewAdminHandler(deps, o.maxBodyBytes, o.log),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api", func(r chi.Router) {
		r.Use(limitBody(s.maxBodyBytes))
		r.Get("/display", MetricsMiddleware(s.displayHandler.HandleDisplay, "display"))
		r.Post("/auth/login", MetricsMiddleware(s.sessionHandler.HandleReviewerLogin, "auth_login"))
		r.Post("/auth/logout", MetricsMiddleware(s.sessionHandler.HandleReviewerLogout, "auth_logout"))

		r.Group(func(r chi.Router) {
			r.Use(requireSession(s.auth, reviewerSession, s.log))
			r.Get("/auth/me", MetricsMiddleware(s.sessionHandler.HandleMe, "auth_me"))
			r.Get("/projects", MetricsMiddleware(s.dashboardHandler.HandleDashboard, "projects"))
			r.Post("/scores", MetricsMiddleware(s.scoresHandler.HandleSubmit, "scores_submit"))
			r.Get("/scores/{projectID}", MetricsMiddleware(s.scoresHandler.HandleGetScore, "scores_get"))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", MetricsMiddleware(s.sessionHandler.HandleAdminLogin, "admin_login"))
			r.Post("/logout", MetricsMiddleware(s.sessionHandler.HandleAdminLogout, "admin_logout"))

			r.Group(func(r chi.Router) {
				r.Use(requireSession(s.auth, adminSession, s.log))
				a := s.adminHandler
				r.Get("/state", MetricsMiddleware(a.HandleGetState, "admin_state"))
				r.Post("/state", MetricsMiddleware(a.HandleSetPhase, "admin_state"))
				r.Post("/spotlight", MetricsMiddleware(a.HandleSetSpotlight, "admin_spotlight"))
				r.Post("/reset", MetricsMiddleware(a.HandleReset, "admin_reset"))
				r.Get("/reviewers", MetricsMiddleware(a.HandleListReviewers, "admin_reviewers"))
				r.Post("/reviewers/{id}/toggle", MetricsMiddleware(a.HandleToggleReviewer, "admin_reviewer_toggle"))
				r.Get("/projects", MetricsMiddleware(a.HandleListProjects, "admin_projects"))
				r.Patch("/projects/{id}", MetricsMiddleware(a.HandleUpdateProject, "admin_project_update"))
				r.Delete("/projects/{id}", MetricsMiddleware(a.HandleDeleteProject, "admin_project_delete"))
				r.Post("/import", MetricsMiddleware(a.HandleImport, "admin_import"))
				r.Post("/load-mock", MetricsMiddleware(a.HandleLoadMock, "admin_load_mock"))
				r.Post("/extract", MetricsMiddleware(a.HandleExtract, "admin_extract"))
				r.Get("/department-check", MetricsMiddleware(a.HandleDepartmentCheck, "admin_department_check"))
			})
		})
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
		var apiErr *Error
		if errors.As(err, &apiErr) {
			msg = apiErr.message()
		}
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail classifies err and writes it. Server errors are logged and their
// details are not sent to the client.
func fail(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err))
		if status == http.StatusInternalServerError {
			writeError(w, status, code, nil)
			return
		}
	}
	writeError(w, status, code, err)
}

// writeBodyError reports an unreadable request body: 413 when it exceeded
// the size limit, 400 otherwise.
func writeBodyError(w http.ResponseWriter, op string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", WrapKind(op, ErrBadRequest, err))
		return
	}
	writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
}

// decodeJSON decodes exactly one JSON object from the body. Unknown
// fields are rejected.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON object")
	}
	return nil
}
