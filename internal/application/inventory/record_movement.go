package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/inventario-movimientos/internal/domain/inventory"
	"github.com/jhoicas/inventario-movimientos/internal/domain/repository"
	"github.com/jhoicas/inventario-movimientos/pkg/logger"
)

// RecordMovementUseCase es el libro de movimientos: registra entradas y salidas de forma transaccional
// (bloqueo del producto, validación, ajuste de stock y registro del movimiento; Commit o Rollback completo).
type RecordMovementUseCase struct {
	txRunner    TxRunner
	productRepo repository.ProductRepository
	movRepo     repository.StockMovementRepository
	idem        IdempotencyStore
	log         *logger.Logger
	now         func() time.Time
}

// NewRecordMovementUseCase construye el caso de uso. idem puede ser nil (sin llaves de idempotencia).
func NewRecordMovementUseCase(
	txRunner TxRunner,
	productRepo repository.ProductRepository,
	movRepo repository.StockMovementRepository,
	idem IdempotencyStore,
	log *logger.Logger,
) *RecordMovementUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &RecordMovementUseCase{
		txRunner:    txRunner,
		productRepo: productRepo,
		movRepo:     movRepo,
		idem:        idem,
		log:         log.Component("ledger"),
		now:         time.Now,
	}
}

// RecordMovementInput entrada para registrar un movimiento.
type RecordMovementInput struct {
	ProductID      string
	Kind           entity.MovementKind
	Quantity       int64
	UserID         string
	IdempotencyKey string
}

// RecordMovementResult producto actualizado y movimiento creado.
// Replayed indica que se devolvió el resultado de una solicitud anterior con la misma llave.
type RecordMovementResult struct {
	Product  *entity.Product
	Movement *entity.StockMovement
	Replayed bool
}

// RecordMovement valida, bloquea el producto, ajusta el stock y agrega el movimiento en una sola transacción.
func (uc *RecordMovementUseCase) RecordMovement(ctx context.Context, in RecordMovementInput) (*RecordMovementResult, error) {
	if in.ProductID == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := inventory.ValidateMovement(in.Kind, in.Quantity); err != nil {
		return nil, err
	}
	if in.IdempotencyKey == "" {
		return uc.record(ctx, in)
	}
	if uc.idem == nil {
		return uc.recordOnce(ctx, in)
	}

	previousID, err := uc.idem.Reserve(ctx, in.IdempotencyKey)
	if errors.Is(err, domain.ErrIdempotencyConflict) {
		// La llave puede seguir pendiente porque Complete falló tras el commit: el libro manda
		return uc.replayPending(ctx, in, err)
	}
	if err != nil {
		return nil, err
	}
	if previousID != "" {
		return uc.replay(ctx, in, previousID)
	}
	res, err := uc.recordOnce(ctx, in)
	if err != nil {
		if relErr := uc.idem.Release(ctx, in.IdempotencyKey); relErr != nil {
			uc.log.Warn().Err(relErr).Str("idempotency_key", in.IdempotencyKey).Msg("liberar llave de idempotencia")
		}
		return nil, err
	}
	uc.complete(ctx, in.IdempotencyKey, res.Movement.ID)
	return res, nil
}

// recordOnce registra el movimiento salvo que el libro ya tenga uno con la misma llave.
// La unicidad de la llave en el almacenamiento resuelve la carrera entre dos solicitudes.
func (uc *RecordMovementUseCase) recordOnce(ctx context.Context, in RecordMovementInput) (*RecordMovementResult, error) {
	existing, err := uc.movRepo.GetByIdempotencyKey(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return uc.replayMovement(ctx, in, existing)
	}
	res, err := uc.record(ctx, in)
	if !errors.Is(err, domain.ErrDuplicate) {
		return res, err
	}
	existing, lookupErr := uc.movRepo.GetByIdempotencyKey(ctx, in.IdempotencyKey)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing == nil {
		return nil, err
	}
	return uc.replayMovement(ctx, in, existing)
}

// replayPending resuelve una llave reservada sin ID: si el movimiento existe la completa y lo devuelve.
func (uc *RecordMovementUseCase) replayPending(ctx context.Context, in RecordMovementInput, conflict error) (*RecordMovementResult, error) {
	existing, err := uc.movRepo.GetByIdempotencyKey(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, conflict
	}
	uc.complete(ctx, in.IdempotencyKey, existing.ID)
	return uc.replayMovement(ctx, in, existing)
}

func (uc *RecordMovementUseCase) complete(ctx context.Context, key, movementID string) {
	if err := uc.idem.Complete(ctx, key, movementID); err != nil {
		// El movimiento ya quedó registrado; el próximo reintento lo encuentra en el libro.
		uc.log.Warn().Err(err).Str("idempotency_key", key).Msg("completar llave de idempotencia")
	}
}

func (uc *RecordMovementUseCase) record(ctx context.Context, in RecordMovementInput) (*RecordMovementResult, error) {
	var result RecordMovementResult

	err := uc.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		productRepo repository.ProductRepository,
	) error {
		// Bloquea el producto hasta Commit/Rollback: serializa lectura-validación-escritura por producto
		product, err := productRepo.GetForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrNotFound
		}
		// La hora se toma con el bloqueo tomado para que el orden por created_at siga al de commit
		now := uc.now().UTC()
		if err := inventory.CheckAvailability(product.Stock, in.Kind, in.Quantity); err != nil {
			return err
		}
		before := product.Stock
		after, err := productRepo.ApplyStockDelta(ctx, product.ID, in.Kind.Delta(in.Quantity))
		if err != nil {
			return err
		}
		mov := &entity.StockMovement{
			ID:             uuid.New().String(),
			ProductID:      product.ID,
			Kind:           in.Kind,
			Quantity:       in.Quantity,
			StockBefore:    before,
			StockAfter:     after,
			CreatedAt:      now,
			CreatedBy:      in.UserID,
			IdempotencyKey: in.IdempotencyKey,
		}
		if err := movRepo.Create(ctx, mov); err != nil {
			return err
		}
		product.Stock = after
		product.UpdatedAt = now
		result.Product = product
		result.Movement = mov
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvariantViolation) {
			uc.log.Error().Err(err).
				Str("product_id", in.ProductID).
				Str("kind", string(in.Kind)).
				Int64("quantity", in.Quantity).
				Msg("el almacenamiento rechazó stock negativo; revisar bloqueo por producto")
		}
		return nil, err
	}

	uc.log.Info().
		Str("movement_id", result.Movement.ID).
		Str("product_id", result.Product.ID).
		Str("kind", string(result.Movement.Kind)).
		Int64("quantity", result.Movement.Quantity).
		Int64("stock_after", result.Movement.StockAfter).
		Msg("movimiento registrado")
	return &result, nil
}

// replay devuelve el movimiento ya registrado con la llave, sin efectos nuevos.
func (uc *RecordMovementUseCase) replay(ctx context.Context, in RecordMovementInput, movementID string) (*RecordMovementResult, error) {
	mov, err := uc.movRepo.GetByID(ctx, movementID)
	if err != nil {
		return nil, err
	}
	if mov == nil {
		return nil, domain.ErrNotFound
	}
	return uc.replayMovement(ctx, in, mov)
}

func (uc *RecordMovementUseCase) replayMovement(ctx context.Context, in RecordMovementInput, mov *entity.StockMovement) (*RecordMovementResult, error) {
	if mov.ProductID != in.ProductID || mov.Kind != in.Kind || mov.Quantity != in.Quantity {
		// Misma llave con otro contenido: no es un reintento
		return nil, domain.ErrConflict
	}
	product, err := uc.productRepo.GetByID(ctx, mov.ProductID)
	if err != nil {
		return nil, err
	}
	return &RecordMovementResult{Product: product, Movement: mov, Replayed: true}, nil
}

// GetStock devuelve el stock actual del producto.
func (uc *RecordMovementUseCase) GetStock(ctx context.Context, productID string) (int64, error) {
	if productID == "" {
		return 0, domain.ErrInvalidInput
	}
	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	if product == nil {
		return 0, domain.ErrNotFound
	}
	return product.Stock, nil
}
