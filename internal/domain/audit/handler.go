package audit

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/strokecare/records/internal/platform/auth"
	"github.com/strokecare/records/pkg/pagination"
)

// Handler exposes the audit streams to administrators.
type Handler struct {
	access  AccessLogStore
	changes DataChangeStore
	now     func() time.Time
}

func NewHandler(access AccessLogStore, changes DataChangeStore) *Handler {
	return &Handler{access: access, changes: changes, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/audit", auth.RequireRole(auth.RoleAdmin))
	g.GET("/access-logs", h.ListAccessLogs)
	g.GET("/data-changes", h.ListDataChanges)
}

func (h *Handler) ListAccessLogs(c echo.Context) error {
	pg := pagination.FromContext(c)
	logs, total, err := h.access.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "audit store unavailable")
	}
	h.recordView(c, "access_logs")
	return c.JSON(http.StatusOK, pagination.NewResponse(logs, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListDataChanges(c echo.Context) error {
	pg := pagination.FromContext(c)
	changes, total, err := h.changes.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "audit store unavailable")
	}
	h.recordView(c, "data_changes")
	return c.JSON(http.StatusOK, pagination.NewResponse(changes, total, pg.Limit, pg.Offset))
}

// recordView appends a view_audit_log entry. A failure is logged and does not
// affect the response.
func (h *Handler) recordView(c echo.Context, stream string) {
	ctx := c.Request().Context()
	entry := &AccessLog{
		UserEmail: auth.UserIDFromContext(ctx),
		Action:    ActionViewAuditLog,
		Resource:  stream,
		Timestamp: h.now().UTC(),
		Details:   map[string]any{"query": c.QueryString()},
	}
	if err := h.access.Append(ctx, entry); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("action", entry.Action).Msg("access log append failed")
	}
}
