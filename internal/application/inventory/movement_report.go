package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
)

// movementQuerier lo implementa *RecordMovementUseCase.
type movementQuerier interface {
	QueryMovements(ctx context.Context, q MovementQuery) ([]entity.MovementView, error)
}

// MovementReportUseCase exporta el historial filtrado a PDF.
type MovementReportUseCase struct {
	ledger    movementQuerier
	generator MovementReportGenerator
}

// NewMovementReportUseCase construye el caso de uso de exportación.
func NewMovementReportUseCase(ledger movementQuerier, generator MovementReportGenerator) *MovementReportUseCase {
	return &MovementReportUseCase{ledger: ledger, generator: generator}
}

// Export consulta los movimientos con el mismo filtro del historial y devuelve los bytes del PDF.
func (uc *MovementReportUseCase) Export(ctx context.Context, q MovementQuery) ([]byte, error) {
	list, err := uc.ledger.QueryMovements(ctx, q)
	if err != nil {
		return nil, err
	}
	report := MovementReport{
		Title:       "Historial de movimientos",
		GeneratedAt: time.Now(),
		Filter:      q.Filter,
		Range:       q.Range,
		Movements:   list,
	}
	for _, m := range list {
		switch m.Kind {
		case entity.MovementEntry:
			report.TotalEntries += m.Quantity
		case entity.MovementExit:
			report.TotalExits += m.Quantity
		}
	}
	return uc.generator.GenerateMovementReport(ctx, report)
}
