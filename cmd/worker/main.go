package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/inventario-movimientos/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-movimientos/internal/jobs"
	"github.com/jhoicas/inventario-movimientos/pkg/config"
	"github.com/jhoicas/inventario-movimientos/pkg/logger"
)

// Worker de tareas: conciliación de stock programada (RECONCILE_CRON) y encolada desde la API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.LogLevel,
		Service: cfg.App.Name + "-worker",
	})
	if !cfg.Redis.Enabled() {
		log.Fatal().Msg("REDIS_ADDR es obligatorio para el worker")
	}
	if cfg.Storage != config.StoragePostgres {
		// El store en memoria vive dentro del proceso de la API
		log.Fatal().Str("storage", cfg.Storage).Msg("el worker necesita STORAGE_DRIVER=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migración")
	}

	reconcileUC := inventory.NewReconcileUseCase(
		postgres.NewTxRunner(pool),
		postgres.NewProductRepository(pool),
		cfg.Reconcile.Concurrency,
		log,
	)
	job := jobs.NewReconcileJob(reconcileUC, log)

	var cron []jobs.CronRegistration
	if cfg.Reconcile.Cron != "" {
		task, err := jobs.NewReconcileTask("cron")
		if err != nil {
			log.Fatal().Err(err).Msg("tarea de conciliación")
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.Reconcile.Cron, Task: task})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Concurrency: 2,
		Logger:      log,
		Handlers:    []jobs.TaskHandler{{Type: jobs.TaskReconcileStock, Handler: job.Handle}},
		Cron:        cron,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("construir worker")
	}

	log.Info().Str("cron", cfg.Reconcile.Cron).Msg("worker iniciado")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker finalizado")
	}
	log.Info().Msg("worker detenido")
}
