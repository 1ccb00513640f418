package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/inventario-movimientos/internal/application/dto"
	"github.com/jhoicas/inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/inventario-movimientos/pkg/logger"
)

// ReconcileEnqueuer encola la conciliación en el worker (jobs.Client).
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, trigger string) (string, error)
}

// ReconcileHandler expone la conciliación de stock (solo admin).
type ReconcileHandler struct {
	uc    *inventory.ReconcileUseCase
	queue ReconcileEnqueuer
	log   *logger.Logger
	group singleflight.Group
}

// NewReconcileHandler construye el handler. queue puede ser nil (sin worker).
func NewReconcileHandler(uc *inventory.ReconcileUseCase, queue ReconcileEnqueuer, log *logger.Logger) *ReconcileHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ReconcileHandler{uc: uc, queue: queue, log: log.Component("reconcile")}
}

// Run godoc
// @Summary      Conciliar stock contra el libro
// @Description  Verifica stock = stock inicial + entradas - salidas para cada producto. Llamadas simultáneas comparten el resultado.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.ReconcileResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/inventory/reconcile [get]
func (h *ReconcileHandler) Run(c *fiber.Ctx) error {
	ctx := c.Context()
	v, err, _ := h.group.Do("reconcile", func() (any, error) {
		return h.uc.Run(ctx)
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(toReconcileResponse(v.(*inventory.ReconcileReport)))
}

// Enqueue godoc
// @Summary      Encolar conciliación en el worker
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Success      202  {object}  dto.ReconcileEnqueuedResponse
// @Failure      501  {object}  dto.ErrorResponse
// @Router       /api/inventory/reconcile [post]
func (h *ReconcileHandler) Enqueue(c *fiber.Ctx) error {
	if h.queue == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_AVAILABLE", Message: "cola de tareas no configurada (REDIS_ADDR)"})
	}
	id, err := h.queue.EnqueueReconcile(c.Context(), "api:"+GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.ReconcileEnqueuedResponse{TaskID: id})
}

func toReconcileResponse(r *inventory.ReconcileReport) dto.ReconcileResponse {
	out := dto.ReconcileResponse{
		Checked:    r.Checked,
		Drifted:    make([]dto.StockDriftDTO, 0, len(r.Drifted)),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, d := range r.Drifted {
		out.Drifted = append(out.Drifted, dto.StockDriftDTO{ProductID: d.ProductID, Name: d.Name, Stock: d.Stock, Expected: d.Expected})
	}
	return out
}
