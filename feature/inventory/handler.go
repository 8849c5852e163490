package inventory

import (
	"errors"
	"time"

	"inventory-sync/core/logger"
	"inventory-sync/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SyncResponse wraps a run report.
type SyncResponse struct {
	// Failed is true when at least one record failed.
	Failed bool `json:"failed"`
	// FinishedAt is set for the last applied report.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// Report is the per-record outcome.
	Report *reconcile.Report `json:"report"`
}

// Handler handles HTTP requests for inventory sync.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Get("/plan", h.HandlePlan)
	group.Post("/apply", h.HandleApply)
	group.Get("/last", h.HandleLast)
}

// HandlePlan computes the pending changes without writing anything.
// @Summary Plan Sync
// @Description Loads both inventories and reports the changes an apply run would make.
// @Tags sync
// @Produce json
// @Param unmatched query string true "Policy for destination entities missing from the source" Enums(delete, skip)
// @Success 200 {object} SyncResponse "Planned changes"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 409 {object} map[string]string "Run in progress"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/plan [get]
func (h *Handler) HandlePlan(c *fiber.Ctx) error {
	return h.run(c, reconcile.ModeReport)
}

// HandleApply applies the pending changes to the destination.
// @Summary Apply Sync
// @Description Converges the destination inventory towards the source. Record failures are reported, not returned as errors.
// @Tags sync
// @Produce json
// @Param unmatched query string true "Policy for destination entities missing from the source" Enums(delete, skip)
// @Success 200 {object} SyncResponse "Apply report"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 409 {object} map[string]string "Run in progress"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/apply [post]
func (h *Handler) HandleApply(c *fiber.Ctx) error {
	return h.run(c, reconcile.ModeApply)
}

// HandleLast returns the report of the last apply run.
// @Summary Last Apply Report
// @Tags sync
// @Produce json
// @Success 200 {object} SyncResponse "Last apply report"
// @Failure 404 {object} map[string]string "No run yet"
// @Router /sync/last [get]
func (h *Handler) HandleLast(c *fiber.Ctx) error {
	report, at, ok := h.service.Last()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no sync has been applied yet"})
	}
	return c.JSON(SyncResponse{Failed: report.Failed(), FinishedAt: &at, Report: report})
}

func (h *Handler) run(c *fiber.Ctx, mode reconcile.Mode) error {
	l := logger.WithRayID(h.service.logger, c)

	unmatched, err := reconcile.ParseUnmatchedPolicy(c.Query("unmatched"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	l.Info("Sync requested", zap.String("mode", string(mode)), zap.String("unmatched", string(unmatched)))
	report, err := h.service.Run(c.Context(), mode, unmatched)
	switch {
	case errors.Is(err, ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		l.Error("Sync failed", zap.String("mode", string(mode)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(SyncResponse{Failed: report.Failed(), Report: report})
}
