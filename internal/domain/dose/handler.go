package dose

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/alerting/internal/platform/auth"
	"github.com/ehr/alerting/internal/platform/clock"
)

const (
	defaultLookback  = 12 * time.Hour
	defaultLookahead = 24 * time.Hour
)

type Handler struct {
	svc   *Service
	clock clock.Clock
}

func NewHandler(svc *Service, clk clock.Clock) *Handler {
	return &Handler{svc: svc, clock: clk}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/prescriptions", h.CreatePrescription)
	api.GET("/doses", h.ListDoses)
	api.POST("/doses/:id/take", h.MarkTaken)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var req CreatePrescriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.RegisterPrescription(c.Request().Context(), uid, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func parseInstant(c echo.Context, name string, def time.Time) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+": expected RFC3339")
	}
	return t, nil
}

// ListDoses serves ?from=&to= (RFC3339), defaulting to the last 12 hours
// and the next 24.
func (h *Handler) ListDoses(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	now := h.clock.Now()
	from, err := parseInstant(c, "from", now.Add(-defaultLookback))
	if err != nil {
		return err
	}
	to, err := parseInstant(c, "to", now.Add(defaultLookahead))
	if err != nil {
		return err
	}
	views, err := h.svc.ListDoses(c.Request().Context(), uid, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) MarkTaken(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.MarkTaken(c.Request().Context(), uid, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}
