package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/strokecare/records/internal/domain/audit"
	"github.com/strokecare/records/internal/platform/auth"
	"github.com/strokecare/records/internal/platform/db"
)

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	weakPasswords = map[string]bool{"password": true, "12345678": true, "qwerty": true, "admin123": true}
)

// ValidationError is returned for rejected registration or login input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NormalizeEmail lowercases and checks an email address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return "", &ValidationError{Message: "invalid email format"}
	}
	return email, nil
}

// CheckPassword enforces the password rules.
func CheckPassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{Message: "password must be at least 8 characters long"}
	}
	if weakPasswords[strings.ToLower(password)] {
		return &ValidationError{Message: "password is too weak"}
	}
	return nil
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// LoginResult is returned to a client after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id"`
	User      *User     `json:"user"`
}

// Service manages accounts and login sessions. Audit appends are best
// effort: a failed append is logged and never fails the account operation.
type Service struct {
	users    UserStore
	sessions SessionStore
	access   audit.AccessLogStore
	changes  audit.DataChangeStore
	tokens   *auth.TokenIssuer
	cache    *auth.SessionCache
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(users UserStore, sessions SessionStore, access audit.AccessLogStore, changes audit.DataChangeStore,
	tokens *auth.TokenIssuer, log zerolog.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		access:   access,
		changes:  changes,
		tokens:   tokens,
		log:      log.With().Str("component", "account").Logger(),
		now:      time.Now,
	}
}

// WithSessionCache makes logout evict sessions from the cache used by the
// auth middleware.
func (s *Service) WithSessionCache(c *auth.SessionCache) *Service {
	s.cache = c
	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := CheckPassword(in.Password); err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, &ValidationError{Message: "full_name is required"}
	}
	role := in.Role
	if role == "" {
		role = auth.RoleUser
	}
	if !auth.ValidRole(role) {
		return nil, &ValidationError{Message: "role must be user or admin"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{Email: email, PasswordHash: string(hash), FullName: fullName, Role: role}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	snapshot, _ := audit.Snapshot(u.Public())
	s.appendChange(ctx, &audit.DataChange{
		UserEmail:  audit.ActorSystem,
		Operation:  audit.OperationCreate,
		Database:   db.UsersDB,
		Collection: "users",
		RecordID:   email,
		NewData:    snapshot,
		Timestamp:  s.now().UTC(),
	})
	return u, nil
}

// EnsureAdmin creates an admin account unless the email is already taken.
// It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, fullName string) (bool, error) {
	_, err := s.Register(ctx, RegisterInput{Email: email, Password: password, FullName: fullName, Role: auth.RoleAdmin})
	if errors.Is(err, ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &ValidationError{Message: "email and password are required"}
	}

	u, err := s.users.FindByEmail(ctx, normalized)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.appendAccess(ctx, audit.ActorAnonymous, audit.ActionFailedLogin, "system",
			map[string]any{"attempted_email": normalized})
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	sess := &Session{
		SessionID:    uuid.New(),
		UserEmail:    u.Email,
		LoginTime:    now,
		LastActivity: now,
		Active:       true,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.appendAccess(ctx, u.Email, audit.ActionLogin, "system", map[string]any{"session_id": sess.SessionID.String()})

	token, exp, err := s.tokens.Issue(u.Email, u.Role, sess.SessionID.String(), now)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, SessionID: sess.SessionID.String(), User: u}, nil
}

// Logout ends the caller's session. Ending an already-ended session is not an
// error.
func (s *Service) Logout(ctx context.Context, email, sessionID string) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return ErrSessionNotFound
	}
	if _, err := s.sessions.End(ctx, email, id, s.now().UTC()); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if s.cache != nil {
		s.cache.Evict(sessionID)
	}
	s.appendAccess(ctx, email, audit.ActionLogout, "system", map[string]any{"session_id": sessionID})
	return nil
}

// SessionActive implements auth.SessionValidator against the session store.
func (s *Service) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return false, nil
	}
	sess, err := s.sessions.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sess.Active, nil
}

func (s *Service) appendAccess(ctx context.Context, actor, action, resource string, details map[string]any) {
	err := s.access.Append(ctx, &audit.AccessLog{
		UserEmail: actor,
		Action:    action,
		Resource:  resource,
		Timestamp: s.now().UTC(),
		Details:   details,
	})
	if err != nil {
		s.log.Error().Err(err).Str("actor", actor).Str("action", action).Msg("access log append failed")
	}
}

func (s *Service) appendChange(ctx context.Context, e *audit.DataChange) {
	if err := s.changes.Append(ctx, e); err != nil {
		s.log.Error().Err(err).Str("record_id", e.RecordID).Str("operation", e.Operation).Msg("data change append failed")
	}
}
