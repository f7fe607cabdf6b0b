package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/strokecare/records/internal/platform/db"
)

// -- Users --

type userStorePG struct {
	ns *db.Namespace
}

func NewUserStore(ns *db.Namespace) UserStore {
	return &userStorePG{ns: ns}
}

func (r *userStorePG) Create(ctx context.Context, u *User) error {
	err := r.ns.DB.QueryRow(ctx, `
		INSERT INTO `+r.ns.Table("users")+` (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		u.Email, u.PasswordHash, u.FullName, u.Role).Scan(&u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *userStorePG) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.ns.DB.QueryRow(ctx, `
		SELECT email, password_hash, full_name, role, created_at
		FROM `+r.ns.Table("users")+` WHERE email = $1`, email).
		Scan(&u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// -- Sessions --

type sessionStorePG struct {
	ns *db.Namespace
}

func NewSessionStore(ns *db.Namespace) SessionStore {
	return &sessionStorePG{ns: ns}
}

const sessionCols = `session_id, user_email, login_time, last_activity, active, logout_time`

func (r *sessionStorePG) Create(ctx context.Context, s *Session) error {
	if s.SessionID == uuid.Nil {
		s.SessionID = uuid.New()
	}
	_, err := r.ns.DB.Exec(ctx, `
		INSERT INTO `+r.ns.Table("sessions")+` (`+sessionCols+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.SessionID, s.UserEmail, s.LoginTime, s.LastActivity, s.Active, s.LogoutTime)
	return err
}

func (r *sessionStorePG) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := scanSession(r.ns.DB.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM `+r.ns.Table("sessions")+` WHERE session_id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

func (r *sessionStorePG) FindByUser(ctx context.Context, email string, limit int) ([]*Session, error) {
	rows, err := r.ns.DB.Query(ctx, `SELECT `+sessionCols+` FROM `+r.ns.Table("sessions")+`
		WHERE user_email = $1 ORDER BY login_time DESC LIMIT $2`, email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionStorePG) End(ctx context.Context, email string, id uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.ns.DB.Exec(ctx, `
		UPDATE `+r.ns.Table("sessions")+`
		SET active = FALSE, logout_time = $3, last_activity = $3
		WHERE user_email = $1 AND session_id = $2 AND active`,
		email, id, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	if err := row.Scan(&s.SessionID, &s.UserEmail, &s.LoginTime, &s.LastActivity, &s.Active, &s.LogoutTime); err != nil {
		return nil, err
	}
	return &s, nil
}
