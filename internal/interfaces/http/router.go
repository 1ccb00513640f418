package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/inventario-movimientos/internal/application/usecase"
	"github.com/jhoicas/inventario-movimientos/pkg/jwt"
	"github.com/jhoicas/inventario-movimientos/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ProductUC *usecase.ProductUseCase
	Ledger    *inventory.RecordMovementUseCase
	Reports   *inventory.MovementReportUseCase // opcional
	Reconcile *inventory.ReconcileUseCase
	Jobs      ReconcileEnqueuer // opcional; sin Redis no hay cola
	JWTSecret string
	Logger    *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", Health)

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	adminOnly := RequireRole(jwt.RoleAdmin)
	writers := RequireRole(jwt.RoleAdmin, jwt.RoleBodeguero)

	// Movements
	movementHandler := NewMovementHandler(deps.Ledger, deps.Reports, deps.Logger)
	movements := protected.Group("/movements")
	movements.Post("/", writers, movementHandler.Record)
	movements.Get("/", movementHandler.List)
	movements.Get("/export", movementHandler.Export)

	// Products; /search antes de /:id
	productHandler := NewProductHandler(deps.ProductUC, deps.Logger)
	products := protected.Group("/products")
	products.Post("/", adminOnly, productHandler.Create)
	products.Get("/", productHandler.List)
	products.Get("/search", productHandler.Search)
	products.Get("/:id/stock", movementHandler.Stock)
	products.Get("/:id", productHandler.GetByID)
	products.Put("/:id", adminOnly, productHandler.Update)
	products.Delete("/:id", adminOnly, productHandler.Delete)

	// Conciliación
	reconcileHandler := NewReconcileHandler(deps.Reconcile, deps.Jobs, deps.Logger)
	inv := protected.Group("/inventory", adminOnly)
	inv.Get("/reconcile", reconcileHandler.Run)
	inv.Post("/reconcile", reconcileHandler.Enqueue)
}

// Health godoc
// @Summary  Liveness
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
