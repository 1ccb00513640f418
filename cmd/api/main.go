package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/hibiken/asynq"

	"github.com/jhoicas/inventario-movimientos/docs"
	"github.com/jhoicas/inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/inventario-movimientos/internal/application/usecase"
	"github.com/jhoicas/inventario-movimientos/internal/domain/repository"
	"github.com/jhoicas/inventario-movimientos/internal/infrastructure/idempotency"
	"github.com/jhoicas/inventario-movimientos/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/inventario-movimientos/internal/infrastructure/pdf"
	"github.com/jhoicas/inventario-movimientos/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/inventario-movimientos/internal/interfaces/http"
	"github.com/jhoicas/inventario-movimientos/internal/jobs"
	"github.com/jhoicas/inventario-movimientos/pkg/config"
	"github.com/jhoicas/inventario-movimientos/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

// storage repositorios y TxRunner del driver elegido.
type storage struct {
	txRunner  inventory.TxRunner
	products  repository.ProductRepository
	movements repository.StockMovementRepository
	close     func()
}

// @title                       Inventario Movimientos API
// @version                     1.0
// @description                 Libro de movimientos de inventario: entradas, salidas, historial y conciliación.
// @host                        localhost:8080
// @BasePath                    /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
// @description                 Bearer <token JWT>
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.Storage).
		Msg("iniciando aplicación")

	ctx := context.Background()
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("almacenamiento")
	}
	defer store.close()

	// Redis opcional: llaves de idempotencia y cola de conciliación
	var idem inventory.IdempotencyStore
	var queue httpRouter.ReconcileEnqueuer
	if cfg.Redis.Enabled() {
		client, err := idempotency.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer client.Close()
		idem = idempotency.NewRedisStore(client, cfg.Ledger.IdempotencyTTL)

		jobsClient := jobs.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer jobsClient.Close()
		queue = jobsClient
	} else {
		log.Warn().Msg("REDIS_ADDR vacío: Idempotency-Key solo se resuelve contra el libro y la conciliación no se puede encolar")
	}

	ledger := inventory.NewRecordMovementUseCase(store.txRunner, store.products, store.movements, idem, log)
	productUC := usecase.NewProductUseCase(store.products, store.txRunner)
	reportUC := inventory.NewMovementReportUseCase(ledger, infrapdf.NewMarotoReportGenerator(cfg.App.Name))
	reconcileUC := inventory.NewReconcileUseCase(store.txRunner, store.products, cfg.Reconcile.Concurrency, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30, // exportación PDF
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(httpRouter.RequestLogger(log))
	app.Use(httpRouter.SecureHeaders(cfg.App.Env == "development"))
	app.Use(httpRouter.RateLimit(cfg.HTTP.RateLimitPerMinute))

	// Swagger UI en local: http://localhost:<port>/docs
	if cfg.Swagger {
		if _, err := os.Stat(swaggerFile); err == nil {
			docs.SwaggerInfo.Host = cfg.HTTP.Addr()
			app.Use(swagger.New(swagger.Config{
				BasePath: "/",
				FilePath: swaggerFile,
				Path:     "docs",
				Title:    docs.SwaggerInfo.Title,
			}))
		} else {
			log.Warn().Str("file", swaggerFile).Msg("swagger habilitado pero no existe el archivo")
		}
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		ProductUC: productUC,
		Ledger:    ledger,
		Reports:   reportUC,
		Reconcile: reconcileUC,
		Jobs:      queue,
		JWTSecret: cfg.JWT.Secret,
		Logger:    log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn().Msg("STORAGE_DRIVER=memory: los datos se pierden al reiniciar")
		mem := memory.NewStore()
		return &storage{
			txRunner:  memory.NewTxRunner(mem),
			products:  memory.NewProductRepository(mem),
			movements: memory.NewStockMovementRepository(mem),
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &storage{
		txRunner:  postgres.NewTxRunner(pool),
		products:  postgres.NewProductRepository(pool),
		movements: postgres.NewStockMovementRepository(pool),
		close:     pool.Close,
	}, nil
}
