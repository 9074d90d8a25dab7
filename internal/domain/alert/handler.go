package alert

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/alerting/internal/platform/auth"
	"github.com/ehr/alerting/internal/platform/validate"
	"github.com/ehr/alerting/pkg/pagination"
)

// EventProcessor turns a domain event into an alert. The plain Service
// generates only; the engine wiring also dispatches notifications.
type EventProcessor interface {
	Generate(ctx context.Context, ev Event) (Result, error)
}

type Handler struct {
	svc    *Service
	events EventProcessor
}

func NewHandler(svc *Service, events EventProcessor) *Handler {
	if events == nil {
		events = svc
	}
	return &Handler{svc: svc, events: events}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/alerts", h.List)
	api.GET("/alerts/grouped", h.Grouped)
	api.POST("/alerts", h.Create)
	api.POST("/alerts/delete", h.Delete)
	api.DELETE("/alerts/:source/:id", h.DeleteOne)
	api.POST("/alerts/mark-read", h.MarkRead)
	api.POST("/alerts/mark-all-read", h.MarkAllRead)
	api.PATCH("/alerts/:source/:id/status", h.UpdateStatus)
	api.POST("/alerts/:source/:id/snooze", h.Snooze)
}

// RegisterInternalRoutes exposes event ingestion to sibling services. The
// group is expected to carry the shared-secret middleware.
func (h *Handler) RegisterInternalRoutes(internal *echo.Group) {
	internal.POST("/events", h.IngestEvent)
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnsupportedSource):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func filterFromQuery(c echo.Context) Filter {
	return Filter{
		Query:    c.QueryParam("q"),
		Priority: Priority(c.QueryParam("priority")),
		Type:     Type(c.QueryParam("type")),
		Status:   Status(c.QueryParam("status")),
		Source:   Source(c.QueryParam("source")),
	}
}

func refFromPath(c echo.Context) (Ref, error) {
	src := Source(c.Param("source"))
	if !src.Valid() {
		return Ref{}, echo.NewHTTPError(http.StatusBadRequest, "invalid source")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return Ref{}, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return Ref{ID: id, Source: src}, nil
}

func (h *Handler) List(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, err := h.svc.List(c.Request().Context(), uid, filterFromQuery(c))
	if err != nil {
		return httpError(err)
	}
	page := pagination.Page(items, pg)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(items), pg.Limit, pg.Offset))
}

func (h *Handler) Grouped(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	groups, err := h.svc.Grouped(c.Request().Context(), uid, filterFromQuery(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *Handler) Create(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var req CreateCustomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.CreateCustom(c.Request().Context(), uid, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

type refsRequest struct {
	Items []Ref `json:"items" validate:"required,min=1,max=500,dive"`
}

type selectionRequest struct {
	Items []Selection `json:"items" validate:"required,max=500,dive"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func (h *Handler) Delete(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var req refsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.Delete(c.Request().Context(), uid, req.Items)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, countResponse{Count: n})
}

func (h *Handler) DeleteOne(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	ref, err := refFromPath(c)
	if err != nil {
		return err
	}
	n, err := h.svc.Delete(c.Request().Context(), uid, []Ref{ref})
	if err != nil {
		return httpError(err)
	}
	if n == 0 {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkRead(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.MarkRead(c.Request().Context(), uid, req.Items)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, countResponse{Count: n})
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkAllRead(c.Request().Context(), uid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, countResponse{Count: n})
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	ref, err := refFromPath(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), uid, ref, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type snoozeRequest struct {
	Duration string `json:"duration"`
}

func (h *Handler) Snooze(c echo.Context) error {
	uid, err := auth.RequireUser(c)
	if err != nil {
		return err
	}
	ref, err := refFromPath(c)
	if err != nil {
		return err
	}
	var req snoozeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Snooze(c.Request().Context(), uid, ref, req.Duration)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) IngestEvent(c echo.Context) error {
	var ev Event
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.events.Generate(c.Request().Context(), ev)
	if err != nil {
		return httpError(err)
	}
	code := http.StatusOK
	if res.Outcome == OutcomeCreated {
		code = http.StatusCreated
	}
	return c.JSON(code, res)
}
