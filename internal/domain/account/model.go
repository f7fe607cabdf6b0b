package account

import (
	"time"

	"github.com/google/uuid"
)

// User is an account in the user management namespace.
type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Public is the user profile without credentials, as recorded in audit
// snapshots.
func (u *User) Public() map[string]string {
	return map[string]string{"email": u.Email, "full_name": u.FullName, "role": u.Role}
}

// Session is one login. It is ended on logout and never deleted.
type Session struct {
	SessionID    uuid.UUID  `json:"session_id"`
	UserEmail    string     `json:"user_email"`
	LoginTime    time.Time  `json:"login_time"`
	LastActivity time.Time  `json:"last_activity"`
	Active       bool       `json:"active"`
	LogoutTime   *time.Time `json:"logout_time,omitempty"`
}
