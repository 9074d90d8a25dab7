package scheduler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Runner is the operation the internal trigger exposes.
type Runner interface {
	RunScheduledChecks(ctx context.Context) (*Summary, error)
}

type Handler struct {
	runner Runner
}

func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// RegisterRoutes mounts the trigger on the internal group, which carries the
// shared-secret middleware.
func (h *Handler) RegisterRoutes(internal *echo.Group) {
	internal.POST("/scheduled-checks", h.RunScheduledChecks)
}

// RunScheduledChecks answers 200 with the run summary, or 500 with the same
// summary when any item failed.
func (h *Handler) RunScheduledChecks(c echo.Context) error {
	sum, err := h.runner.RunScheduledChecks(c.Request().Context())
	if sum == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "scheduled checks did not run")
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, sum)
	}
	return c.JSON(http.StatusOK, sum)
}
