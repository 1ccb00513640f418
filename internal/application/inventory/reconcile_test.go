package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/inventario-movimientos/internal/infrastructure/memory"
)

func TestReconcile_LibroConsistente(t *testing.T) {
	f := newLedger(t, nil)
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "p3"} {
		f.product(t, id, 5)
	}
	_, err := f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 4})
	require.NoError(t, err)
	_, err = f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: "p2", Kind: entity.MovementExit, Quantity: 5})
	require.NoError(t, err)

	rec := NewReconcileUseCase(memory.NewTxRunner(f.store), memory.NewProductRepository(f.store), 2, nil)
	report, err := rec.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Empty(t, report.Drifted)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestReconcile_DetectaDiferencia(t *testing.T) {
	f := newLedger(t, nil)
	ctx := context.Background()
	f.product(t, "p1", 5)
	f.product(t, "p2", 5)

	// Stock alterado sin movimiento en el libro
	_, err := memory.NewProductRepository(f.store).ApplyStockDelta(ctx, "p2", 3)
	require.NoError(t, err)

	rec := NewReconcileUseCase(memory.NewTxRunner(f.store), memory.NewProductRepository(f.store), 4, nil)
	report, err := rec.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Drifted, 1)
	assert.Equal(t, StockDrift{ProductID: "p2", Name: "Producto p2", Stock: 8, Expected: 5}, report.Drifted[0])
}

func TestReconcile_CatalogoVacio(t *testing.T) {
	store := memory.NewStore()
	rec := NewReconcileUseCase(memory.NewTxRunner(store), memory.NewProductRepository(store), 0, nil)
	report, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)
	assert.NotNil(t, report.Drifted)
}

type captureGenerator struct {
	got MovementReport
}

func (c *captureGenerator) GenerateMovementReport(_ context.Context, r MovementReport) ([]byte, error) {
	c.got = r
	return []byte("%PDF-test"), nil
}

func TestMovementReport_ExportSumaTotales(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 10)
	ctx := context.Background()
	f.uc.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	for _, in := range []RecordMovementInput{
		{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 4},
		{ProductID: "p1", Kind: entity.MovementExit, Quantity: 6},
		{ProductID: "p1", Kind: entity.MovementExit, Quantity: 1},
	} {
		_, err := f.uc.RecordMovement(ctx, in)
		require.NoError(t, err)
	}

	gen := &captureGenerator{}
	out, err := NewMovementReportUseCase(f.uc, gen).Export(ctx, MovementQuery{Filter: entity.MovementFilter{ProductID: "p1"}})
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-test"), out)
	assert.Len(t, gen.got.Movements, 3)
	assert.Equal(t, int64(4), gen.got.TotalEntries)
	assert.Equal(t, int64(7), gen.got.TotalExits)
	assert.Equal(t, "p1", gen.got.Filter.ProductID)
}
