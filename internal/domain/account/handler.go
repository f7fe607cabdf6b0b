package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/strokecare/records/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes adds the /auth routes. Extra middleware, such as a rate
// limiter, applies to all of them.
func (h *Handler) RegisterRoutes(api *echo.Group, m ...echo.MiddlewareFunc) {
	g := api.Group("/auth", m...)
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
}

// Register creates a user account. Admin accounts are created through the
// CLI, so the requested role is ignored here.
func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in.Role = auth.RoleUser

	u, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return accountError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return accountError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	email := auth.UserIDFromContext(ctx)
	sessionID := auth.SessionIDFromContext(ctx)
	if email == "" || sessionID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no active session")
	}
	if err := h.svc.Logout(ctx, email, sessionID); err != nil {
		return accountError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func accountError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message)
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "user store unavailable")
	}
}
