package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
)

// Rangos predefinidos del historial (mismos que el selector "rango" del cliente).
const (
	RangeDay   = "dia"
	RangeWeek  = "semana"
	RangeMonth = "mes"
	RangeYear  = "anio"
)

// MovementQuery filtro de consulta. Range solo aplica si Filter.Since es nil.
type MovementQuery struct {
	Filter entity.MovementFilter
	Range  string
}

// QueryMovements devuelve los movimientos que cumplen todos los filtros, del más reciente al más antiguo.
// Solo lectura; una lista vacía es un resultado válido.
func (uc *RecordMovementUseCase) QueryMovements(ctx context.Context, q MovementQuery) ([]entity.MovementView, error) {
	filter := q.Filter
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, domain.ErrInvalidInput
	}
	if filter.Since == nil && q.Range != "" {
		since, err := RangeStart(q.Range, uc.now())
		if err != nil {
			return nil, err
		}
		filter.Since = &since
	}
	if filter.Since != nil && filter.Until != nil && filter.Since.After(*filter.Until) {
		return nil, domain.ErrInvalidInput
	}
	list, err := uc.movRepo.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []entity.MovementView{}
	}
	return list, nil
}

// RangeStart calcula el inicio (00:00 hora local) del rango predefinido contado desde now.
func RangeStart(rango string, now time.Time) (time.Time, error) {
	midnight := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	switch rango {
	case RangeDay:
		return midnight(now), nil
	case RangeWeek:
		return midnight(now.AddDate(0, 0, -7)), nil
	case RangeMonth:
		return midnight(now.AddDate(0, -1, 0)), nil
	case RangeYear:
		return midnight(now.AddDate(-1, 0, 0)), nil
	}
	return time.Time{}, domain.ErrInvalidInput
}
