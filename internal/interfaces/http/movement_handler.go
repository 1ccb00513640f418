package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-movimientos/internal/application/dto"
	"github.com/jhoicas/inventario-movimientos/internal/application/inventory"
	"github.com/jhoicas/inventario-movimientos/internal/application/usecase"
	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/inventario-movimientos/pkg/logger"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	maxIdempotencyKeyLen = 200
	defaultMovementLimit = 50
)

// MovementHandler maneja las peticiones HTTP del libro de movimientos (protegido).
type MovementHandler struct {
	ledger *inventory.RecordMovementUseCase
	report *inventory.MovementReportUseCase
	log    *logger.Logger
}

// NewMovementHandler construye el handler. report puede ser nil (sin exportación PDF).
func NewMovementHandler(ledger *inventory.RecordMovementUseCase, report *inventory.MovementReportUseCase, log *logger.Logger) *MovementHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &MovementHandler{ledger: ledger, report: report, log: log.Component("movements")}
}

var movementErrMessages = map[error]string{
	domain.ErrNotFound:          "producto no encontrado",
	domain.ErrInvalidInput:      "tipo debe ser entry|exit y cantidad un entero positivo",
	domain.ErrInsufficientStock: "stock insuficiente para la salida",
	domain.ErrConflict:          "la Idempotency-Key ya se usó con otro movimiento",
	domain.ErrDuplicate:         "la Idempotency-Key ya se usó con otro movimiento",
}

// Record godoc
// @Summary      Registrar entrada o salida de stock
// @Description  Valida contra el stock actual, ajusta el stock y agrega el movimiento en una transacción.
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                     false  "Llave para reintentos seguros"
// @Param        body             body    dto.RecordMovementRequest  true   "product_id, kind (entry|exit|entrada|salida), quantity >= 1"
// @Success      201  {object}  dto.RecordMovementResponse
// @Success      200  {object}  dto.RecordMovementResponse  "reintento con la misma Idempotency-Key"
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/movements [post]
func (h *MovementHandler) Record(c *fiber.Ctx) error {
	var in dto.RecordMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if ok, err := validateRequest(c, in); !ok {
		return err
	}
	kind, ok := entity.ParseMovementKind(in.Kind)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "kind debe ser entry o exit", Fields: []string{"kind"}})
	}
	key := strings.TrimSpace(c.Get(headerIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "Idempotency-Key demasiado larga"})
	}

	res, err := h.ledger.RecordMovement(c.Context(), inventory.RecordMovementInput{
		ProductID:      strings.TrimSpace(in.ProductID),
		Kind:           kind,
		Quantity:       in.Quantity,
		UserID:         GetUserID(c),
		IdempotencyKey: key,
	})
	if err != nil {
		return respondError(c, h.log, err, movementErrMessages)
	}

	status := fiber.StatusCreated
	message := "movimiento registrado"
	if res.Replayed {
		status = fiber.StatusOK
		message = "movimiento ya registrado con esta Idempotency-Key"
	}
	return c.Status(status).JSON(dto.RecordMovementResponse{
		Message:  message,
		Movement: toMovementResponse(entity.MovementView{StockMovement: *res.Movement}),
		Product:  usecase.ToProductResponse(res.Product),
		Replayed: res.Replayed,
	})
}

// List godoc
// @Summary      Historial de movimientos
// @Description  Filtros combinables (AND). Orden: más reciente primero.
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        tipo      query  string  false  "entry|exit (alias kind; también entrada|salida)"
// @Param        producto  query  string  false  "ID del producto (alias product_id)"
// @Param        desde     query  string  false  "RFC3339 o YYYY-MM-DD (alias since)"
// @Param        hasta     query  string  false  "RFC3339 o YYYY-MM-DD, inclusivo hasta el fin del día (alias until)"
// @Param        rango     query  string  false  "dia|semana|mes|anio, solo si no hay desde"
// @Param        limit     query  int     false  "Límite"  default(50)
// @Param        offset    query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.MovementListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/movements [get]
func (h *MovementHandler) List(c *fiber.Ctx) error {
	var params dto.MovementQueryParams
	q, ok, err := h.parseQuery(c, &params)
	if !ok {
		return err
	}
	list, err := h.ledger.QueryMovements(c.Context(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	total := len(list)
	start := min(params.Offset, total)
	end := min(start+limit, total)

	items := make([]dto.MovementResponse, 0, end-start)
	for _, m := range list[start:end] {
		items = append(items, toMovementResponse(m))
	}
	return c.JSON(dto.MovementListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: params.Offset, Total: total},
	})
}

// Export godoc
// @Summary      Exportar historial a PDF
// @Tags         movements
// @Security     Bearer
// @Produce      application/pdf
// @Param        tipo      query  string  false  "entry|exit"
// @Param        producto  query  string  false  "ID del producto"
// @Param        desde     query  string  false  "RFC3339 o YYYY-MM-DD"
// @Param        hasta     query  string  false  "RFC3339 o YYYY-MM-DD"
// @Param        rango     query  string  false  "dia|semana|mes|anio"
// @Success      200  {file}    binary
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/movements/export [get]
func (h *MovementHandler) Export(c *fiber.Ctx) error {
	if h.report == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_AVAILABLE", Message: "exportación PDF no configurada"})
	}
	var params dto.MovementQueryParams
	q, ok, err := h.parseQuery(c, &params)
	if !ok {
		return err
	}
	pdf, err := h.report.Export(c.Context(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="movimientos-`+time.Now().Format("20060102")+`.pdf"`)
	return c.Send(pdf)
}

// Stock godoc
// @Summary      Stock actual de un producto
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.StockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/stock [get]
func (h *MovementHandler) Stock(c *fiber.Ctx) error {
	id := c.Params("id")
	stock, err := h.ledger.GetStock(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err, map[error]string{domain.ErrNotFound: "producto no encontrado"})
	}
	return c.JSON(dto.StockResponse{ProductID: id, Stock: stock})
}

// parseQuery lee y valida la query string. Si devuelve ok=false ya escribió la respuesta.
func (h *MovementHandler) parseQuery(c *fiber.Ctx, params *dto.MovementQueryParams) (inventory.MovementQuery, bool, error) {
	var q inventory.MovementQuery
	if err := c.QueryParser(params); err != nil {
		return q, false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "query inválida"})
	}
	if ok, err := validateRequest(c, *params); !ok {
		return q, false, err
	}
	invalid := func(field, msg string) (inventory.MovementQuery, bool, error) {
		return q, false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: msg, Fields: []string{field}})
	}

	if raw := firstNonEmpty(params.Tipo, params.Kind); raw != "" {
		kind, ok := entity.ParseMovementKind(raw)
		if !ok {
			return invalid("tipo", "tipo debe ser entry o exit")
		}
		q.Filter.Kind = kind
	}
	q.Filter.ProductID = firstNonEmpty(params.Producto, params.ProductID)

	if raw := firstNonEmpty(params.Desde, params.Since); raw != "" {
		t, err := parseDate(raw, false)
		if err != nil {
			return invalid("desde", "desde debe ser RFC3339 o YYYY-MM-DD")
		}
		q.Filter.Since = &t
	}
	if raw := firstNonEmpty(params.Hasta, params.Until); raw != "" {
		t, err := parseDate(raw, true)
		if err != nil {
			return invalid("hasta", "hasta debe ser RFC3339 o YYYY-MM-DD")
		}
		q.Filter.Until = &t
	}
	if q.Filter.Since != nil && q.Filter.Until != nil && q.Filter.Since.After(*q.Filter.Until) {
		return invalid("desde", "desde no puede ser posterior a hasta")
	}
	q.Range = params.Rango
	return q, true, nil
}

// parseDate acepta RFC3339 o YYYY-MM-DD (hora local). Con endOfDay una fecha sin hora cubre el día completo.
func parseDate(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func toMovementResponse(m entity.MovementView) dto.MovementResponse {
	out := dto.MovementResponse{
		ID:          m.ID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Kind:        string(m.Kind),
		Quantity:    m.Quantity,
		StockBefore: m.StockBefore,
		StockAfter:  m.StockAfter,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
	}
	if m.ProductName != "" {
		price := m.SalePrice
		out.SalePrice = &price
	}
	return out
}
