package records

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/strokecare/records/internal/domain/audit"
	"github.com/strokecare/records/internal/domain/patient"
	"github.com/strokecare/records/internal/platform/auth"
	"github.com/strokecare/records/pkg/pagination"
)

type Handler struct {
	coord   *Coordinator
	records patient.RecordStore
	stats   *patient.StatsCache
}

func NewHandler(coord *Coordinator, records patient.RecordStore, stats *patient.StatsCache) *Handler {
	return &Handler{coord: coord, records: records, stats: stats}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard-stats", h.DashboardStats)
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)
	api.GET("/patients/:id/full-history", h.PatientFullHistory)
	api.GET("/my-activity-report", h.MyActivityReport)
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind Kind) int {
	switch kind {
	case KindDuplicateKey:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func respondError(c echo.Context, err error) error {
	return c.JSON(StatusFor(KindOf(err)), Failed(err))
}

func actorFrom(c echo.Context) (string, error) {
	actor := auth.UserIDFromContext(c.Request().Context())
	if actor == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return actor, nil
}

func patientID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		return 0, ValidationFailed(errors.New("patient id must be a non-negative integer"))
	}
	return id, nil
}

func (h *Handler) CreatePatient(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var p patient.Patient
	if err := c.Bind(&p); err != nil {
		return respondError(c, ValidationFailed(errors.New("malformed patient document")))
	}
	if err := p.Validate(); err != nil {
		return respondError(c, ValidationFailed(err))
	}

	out, err := h.coord.Create(c.Request().Context(), &p, actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, FromOutcome("patient created", out))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := patientID(c)
	if err != nil {
		return respondError(c, err)
	}
	var attrs patient.Attributes
	if err := c.Bind(&attrs); err != nil {
		return respondError(c, ValidationFailed(errors.New("malformed patient document")))
	}
	if err := attrs.Validate(); err != nil {
		return respondError(c, ValidationFailed(err))
	}

	out, err := h.coord.Update(c.Request().Context(), id, attrs, actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, FromOutcome("patient updated", out))
}

func (h *Handler) DeletePatient(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := patientID(c)
	if err != nil {
		return respondError(c, err)
	}

	out, err := h.coord.Delete(c.Request().Context(), id, actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, FromOutcome("patient deleted", out))
}

func (h *Handler) GetPatient(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := patientID(c)
	if err != nil {
		return respondError(c, err)
	}
	p, err := h.records.FindOne(c.Request().Context(), id)
	if errors.Is(err, patient.ErrNotFound) {
		return respondError(c, notFound(id))
	}
	if err != nil {
		return respondError(c, unavailable("record store", err))
	}
	h.coord.LogAccess(c.Request().Context(), actor, audit.ActionViewPatient, "patient_id:"+c.Param("id"), nil)
	return c.JSON(http.StatusOK, Succeeded("patient found", p))
}

func (h *Handler) ListPatients(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	patients, total, err := h.records.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return respondError(c, unavailable("record store", err))
	}
	if patients == nil {
		patients = []*patient.Patient{}
	}
	h.coord.LogAccess(c.Request().Context(), actor, audit.ActionViewPatientList, "patients",
		map[string]any{"limit": pg.Limit, "offset": pg.Offset})
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) DashboardStats(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	stats, err := h.stats.Get(c.Request().Context())
	if err != nil {
		return respondError(c, unavailable("record store", err))
	}
	h.coord.LogAccess(c.Request().Context(), actor, audit.ActionViewDashboard, "dashboard", nil)
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) PatientFullHistory(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := patientID(c)
	if err != nil {
		return respondError(c, err)
	}
	h.coord.LogAccess(c.Request().Context(), actor, audit.ActionViewPatientHistory, "patient_id:"+c.Param("id"), nil)

	fh := h.coord.PatientFullHistory(c.Request().Context(), id)
	res := Succeeded("patient history retrieved", fh)
	res.Partial = fh.Partial()
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) MyActivityReport(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	report := h.coord.ActivityReport(c.Request().Context(), actor)
	h.coord.LogAccess(c.Request().Context(), actor, audit.ActionViewActivityReport, "activity_report", nil)

	res := Succeeded("activity report generated", report)
	res.Partial = report.Partial()
	return c.JSON(http.StatusOK, res)
}
