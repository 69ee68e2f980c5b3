package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/liusai0820/smartscore/internal/auth"
	"github.com/liusai0820/smartscore/internal/domain/model"
	"github.com/liusai0820/smartscore/pkg/logger"
)

// Cookie names for the two session kinds.
const (
	ReviewerCookie = "smartscore_session"
	AdminCookie    = "smartscore_admin"
)

// Authenticator validates session tokens.
type Authenticator interface {
	Authenticate(token string) (*auth.Claims, error)
}

// SessionDependencies defines the login operations.
type SessionDependencies interface {
	LoginReviewer(ctx context.Context, name, passcode string) (auth.Session, error)
	LoginAdmin(ctx context.Context, password string) (auth.Session, error)
	Reviewer(ctx context.Context, id string) (model.Reviewer, error)
}

type sessionKind struct {
	cookie string
	role   auth.Role
}

var (
	reviewerSession = sessionKind{cookie: ReviewerCookie, role: auth.RoleReviewer}
	adminSession    = sessionKind{cookie: AdminCookie, role: auth.RoleAdmin}
)

type claimsKey struct{}

// ClaimsFrom returns the session claims stored by requireSession.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// requireSession rejects requests without a valid session of kind. The
// token is read from a Bearer Authorization header, then from the cookie.
func requireSession(a Authenticator, kind sessionKind, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "api.require_session"
			token := bearerToken(r)
			if token == "" {
				if c, err := r.Cookie(kind.cookie); err == nil {
					token = c.Value
				}
			}
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
				return
			}
			claims, err := a.Authenticate(token)
			if err != nil {
				log.Debug(r.Context(), "session rejected", logger.String("path", r.URL.Path), logger.Error(err))
				writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
				return
			}
			if claims.Role != kind.role {
				writeError(w, http.StatusForbidden, "forbidden", NewKind(op, ErrForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

type cookieJar struct {
	secure bool
}

func (j cookieJar) set(w http.ResponseWriter, name string, s auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (j cookieJar) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionHandler handles login, logout and the current reviewer.
type SessionHandler struct {
	deps    SessionDependencies
	cookies cookieJar
	log     logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies, secureCookies bool, log logger.Logger) *SessionHandler {
	return &SessionHandler{deps: deps, cookies: cookieJar{secure: secureCookies}, log: log}
}

type reviewerLoginRequest struct {
	Name     string `json:"name"`
	Passcode string `json:"passcode"`
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

type okResponse struct {
	Status string `json:"status"`
}

// HandleReviewerLogin handles POST /api/auth/login.
func (h *SessionHandler) HandleReviewerLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.reviewer_login"
	var req reviewerLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, op, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Passcode == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	sess, err := h.deps.LoginReviewer(r.Context(), req.Name, req.Passcode)
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	h.cookies.set(w, ReviewerCookie, sess)
	writeJSON(w, http.StatusOK, sess)
}

// HandleReviewerLogout handles POST /api/auth/logout.
func (h *SessionHandler) HandleReviewerLogout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.clear(w, ReviewerCookie)
	writeJSON(w, http.StatusOK, okResponse{Status: "logged_out"})
}

// HandleMe handles GET /api/auth/me.
func (h *SessionHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	const op = "api.me"
	claims, _ := ClaimsFrom(r.Context())
	rev, err := h.deps.Reviewer(r.Context(), claims.Subject)
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// HandleAdminLogin handles POST /api/admin/login.
func (h *SessionHandler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_login"
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, op, err)
		return
	}
	sess, err := h.deps.LoginAdmin(r.Context(), req.Password)
	if err != nil {
		fail(w, r, h.log, Wrap(op, err))
		return
	}
	h.cookies.set(w, AdminCookie, sess)
	writeJSON(w, http.StatusOK, sess)
}

// HandleAdminLogout handles POST /api/admin/logout.
func (h *SessionHandler) HandleAdminLogout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.clear(w, AdminCookie)
	writeJSON(w, http.StatusOK, okResponse{Status: "logged_out"})
}
