package auth

import (
	"time"

	"github.com/liusai0820/smartscore/internal/domain/model"
)

// Session is the result of a successful login.
type Session struct {
	Token     string          `json:"token"`
	Role      Role            `json:"role"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Reviewer  *model.Reviewer `json:"reviewer,omitempty"`
}
