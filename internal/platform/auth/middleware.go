package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	SessionIDKey contextKey = "session_id"
)

// DevUser is the actor assumed for unauthenticated requests in development.
const DevUser = "dev-user"

// Claims are carried by session tokens. Subject is the user's email and ID
// (jti) is the session id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// SessionValidator reports whether a login session is still active.
type SessionValidator interface {
	SessionActive(ctx context.Context, sessionID string) (bool, error)
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	// Sessions, when set, rejects tokens whose session has ended.
	Sessions SessionValidator
	Skipper  func(c echo.Context) bool
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			claims, err := parseBearer(c, cfg)
			if err != nil {
				return err
			}
			if cfg.Sessions != nil {
				active, err := cfg.Sessions.SessionActive(c.Request().Context(), claims.ID)
				if err != nil {
					zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("session_id", claims.ID).Msg("session lookup failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
				}
				if !active {
					return echo.NewHTTPError(http.StatusUnauthorized, "session has ended")
				}
			}

			c.SetRequest(c.Request().WithContext(WithUser(c.Request().Context(), claims.Subject, []string{claims.Role}, claims.ID)))
			return next(c)
		}
	}
}

func parseBearer(c echo.Context, cfg JWTConfig) (*Claims, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return claims, nil
}

// DevAuthMiddleware lets unauthenticated requests through as DevUser with the
// admin role. Requests that do carry a bearer token are validated normally.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	strict := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		validated := strict(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return validated(c)
			}
			ctx := WithUser(c.Request().Context(), DevUser, []string{RoleAdmin}, "")
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// WithUser returns a context carrying the authenticated identity.
func WithUser(ctx context.Context, userID string, roles []string, sessionID string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(SessionIDKey).(string)
	return sid
}
