package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/inventario-movimientos/internal/domain/repository"
	"github.com/jhoicas/inventario-movimientos/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-movimientos/pkg/config"
)

// PostgresSuite levanta un PostgreSQL real en contenedor. Requiere Docker e INTEGRATION_TESTS=1.
type PostgresSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	ledger    *inventory.RecordMovementUseCase
}

func TestPostgresSuite(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("INTEGRATION_TESTS=1 para ejecutar contra PostgreSQL en contenedor")
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("inventario"),
		tcpostgres.WithUsername("inventario"),
		tcpostgres.WithPassword("inventario"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = postgres.NewPool(ctx, config.DBConfig{DatabaseURL: dsn, ConnectTimeout: 20 * time.Second}, nil)
	s.Require().NoError(err)
	s.Require().NoError(postgres.Migrate(ctx, s.pool))
	// Dos veces: el esquema es idempotente
	s.Require().NoError(postgres.Migrate(ctx, s.pool))

	s.ledger = inventory.NewRecordMovementUseCase(
		postgres.NewTxRunner(s.pool),
		postgres.NewProductRepository(s.pool),
		postgres.NewStockMovementRepository(s.pool),
		nil, nil,
	)
}

func (s *PostgresSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *PostgresSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE TABLE stock_movements, products")
	s.Require().NoError(err)
}

func (s *PostgresSuite) createProduct(id, name string, stock int64) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	err := postgres.NewProductRepository(s.pool).Create(context.Background(), &entity.Product{
		ID: id, Name: name, NameKey: name,
		PurchasePrice: decimal.RequireFromString("1200.50"), SalePrice: decimal.NewFromInt(1800),
		Stock: stock, InitialStock: stock, CreatedAt: now, UpdatedAt: now,
	})
	s.Require().NoError(err)
}

func (s *PostgresSuite) TestRecordMovement_ExitAndEntry() {
	ctx := context.Background()
	s.createProduct("p1", "cafe", 10)

	res, err := s.ledger.RecordMovement(ctx, inventory.RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 5, UserID: "u1"})
	s.Require().NoError(err)
	s.Equal(int64(5), res.Product.Stock)

	_, err = s.ledger.RecordMovement(ctx, inventory.RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 6})
	s.ErrorIs(err, domain.ErrInsufficientStock)

	_, err = s.ledger.RecordMovement(ctx, inventory.RecordMovementInput{ProductID: "nope", Kind: entity.MovementEntry, Quantity: 1})
	s.ErrorIs(err, domain.ErrNotFound)

	stock, err := s.ledger.GetStock(ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(5), stock)

	list, err := s.ledger.QueryMovements(ctx, inventory.MovementQuery{})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("cafe", list[0].ProductName)
	s.True(decimal.NewFromInt(1800).Equal(list[0].SalePrice))
	s.Equal("u1", list[0].CreatedBy)
}

func (s *PostgresSuite) TestConcurrentExits() {
	ctx := context.Background()
	s.createProduct("p1", "cafe", 10)

	results := make([]error, 2)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			_, results[i] = s.ledger.RecordMovement(ctx, inventory.RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 6})
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	var ok int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		s.ErrorIs(err, domain.ErrInsufficientStock)
	}
	s.Equal(1, ok)
	stock, _ := s.ledger.GetStock(ctx, "p1")
	s.Equal(int64(4), stock)
}

func (s *PostgresSuite) TestApplyStockDelta_RechazaStockNegativo() {
	ctx := context.Background()
	s.createProduct("p1", "cafe", 2)

	err := postgres.NewTxRunner(s.pool).Run(ctx, func(_ repository.StockMovementRepository, products repository.ProductRepository) error {
		_, err := products.ApplyStockDelta(ctx, "p1", -3)
		return err
	})
	s.ErrorIs(err, domain.ErrInvariantViolation)

	_, err = postgres.NewProductRepository(s.pool).ApplyStockDelta(ctx, "ghost", 1)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresSuite) TestMovementsAreAppendOnly() {
	ctx := context.Background()
	s.createProduct("p1", "cafe", 0)
	_, err := s.ledger.RecordMovement(ctx, inventory.RecordMovementInput{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 1})
	s.Require().NoError(err)

	_, err = s.pool.Exec(ctx, "UPDATE stock_movements SET quantity = 99")
	s.Error(err)
	_, err = s.pool.Exec(ctx, "DELETE FROM stock_movements")
	s.Error(err)
}

func (s *PostgresSuite) TestProductRepo_SearchAndDuplicate() {
	ctx := context.Background()
	repo := postgres.NewProductRepository(s.pool)
	s.createProduct("p1", "cafe molido", 0)
	s.createProduct("p2", "100% cacao", 0)

	err := repo.Create(ctx, &entity.Product{ID: "p3", Name: "Café molido", NameKey: "cafe molido", CreatedAt: time.Now(), UpdatedAt: time.Now()})
	s.ErrorIs(err, domain.ErrDuplicate)

	found, err := repo.Search(ctx, "molido", 10, 0)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("p1", found[0].ID)
	s.True(decimal.RequireFromString("1200.50").Equal(found[0].PurchasePrice))

	// El comodín se busca literal
	literal, err := repo.Search(ctx, "%", 10, 0)
	s.Require().NoError(err)
	s.Require().Len(literal, 1)
	s.Equal("p2", literal[0].ID)

	all, err := repo.List(ctx, 0, 0)
	s.Require().NoError(err)
	s.Len(all, 2)

	total, err := repo.Count(ctx, "")
	s.Require().NoError(err)
	s.Equal(2, total)
	matching, err := repo.Count(ctx, "%")
	s.Require().NoError(err)
	s.Equal(1, matching)
}

func (s *PostgresSuite) TestIdempotencyKeyReplayFromLedger() {
	ctx := context.Background()
	s.createProduct("p1", "cafe", 0)
	first, err := s.ledger.RecordMovement(ctx, inventory.RecordMovementInput{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 1, IdempotencyKey: "k1"})
	s.Require().NoError(err)

	// Sin store de idempotencia el reintento se resuelve contra la columna única del libro
	second, err := s.ledger.RecordMovement(ctx, inventory.RecordMovementInput{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 1, IdempotencyKey: "k1"})
	s.Require().NoError(err)
	s.True(second.Replayed)
	s.Equal(first.Movement.ID, second.Movement.ID)
	stock, _ := s.ledger.GetStock(ctx, "p1")
	s.Equal(int64(1), stock)

	got, err := postgres.NewStockMovementRepository(s.pool).GetByIdempotencyKey(ctx, "k1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(first.Movement.ID, got.ID)

	// El índice único sigue siendo la barrera final
	err = postgres.NewStockMovementRepository(s.pool).Create(ctx, &entity.StockMovement{
		ID: "m-dup", ProductID: "p1", Kind: entity.MovementEntry, Quantity: 1, StockAfter: 2, CreatedAt: time.Now(), IdempotencyKey: "k1",
	})
	s.ErrorIs(err, domain.ErrDuplicate)
}

func (s *PostgresSuite) TestReconcile() {
	ctx := context.Background()
	s.createProduct("p1", "cafe", 3)
	s.createProduct("p2", "azucar", 3)
	_, err := s.ledger.RecordMovement(ctx, inventory.RecordMovementInput{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 2})
	s.Require().NoError(err)
	_, err = s.pool.Exec(ctx, "UPDATE products SET stock = 9 WHERE id = 'p2'")
	s.Require().NoError(err)

	rec := inventory.NewReconcileUseCase(postgres.NewTxRunner(s.pool), postgres.NewProductRepository(s.pool), 2, nil)
	report, err := rec.Run(ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Checked)
	s.Require().Len(report.Drifted, 1)
	s.Equal("p2", report.Drifted[0].ProductID)
	s.Equal(int64(3), report.Drifted[0].Expected)
}
