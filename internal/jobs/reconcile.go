package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/inventario-movimientos/pkg/logger"
)

// ErrStockDrift lo devuelve la tarea cuando hay productos con stock distinto al del libro.
// asynq la deja en archived en vez de reintentar: la diferencia no se corrige sola.
var ErrStockDrift = errors.New("stock no coincide con el libro de movimientos")

// reconciler lo implementa *inventory.ReconcileUseCase.
type reconciler interface {
	Run(ctx context.Context) (*inventory.ReconcileReport, error)
}

// ReconcileJob handler asynq de TaskReconcileStock.
type ReconcileJob struct {
	uc  reconciler
	log *logger.Logger
}

// NewReconcileJob construye el handler.
func NewReconcileJob(uc reconciler, log *logger.Logger) *ReconcileJob {
	if log == nil {
		log = logger.Nop()
	}
	return &ReconcileJob{uc: uc, log: log.Component("job").Component(TaskReconcileStock)}
}

// Handle ejecuta la conciliación completa.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("payload inválido: %v: %w", err, asynq.SkipRetry)
		}
	}

	start := time.Now()
	j.log.Info().Str("trigger", payload.Trigger).Msg("iniciando conciliación")

	report, err := j.uc.Run(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("conciliación fallida")
		return err
	}

	j.log.Info().
		Int("checked", report.Checked).
		Int("drifted", len(report.Drifted)).
		Dur("duration", time.Since(start)).
		Msg("conciliación completada")

	if len(report.Drifted) > 0 {
		return fmt.Errorf("%w: %d productos: %w", ErrStockDrift, len(report.Drifted), asynq.SkipRetry)
	}
	return nil
}
