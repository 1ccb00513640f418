package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrForbidden           = errors.New("acceso denegado")
	ErrConflict            = errors.New("conflicto con el estado actual")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrIdempotencyConflict = errors.New("solicitud con la misma llave de idempotencia en curso")

	// ErrInvariantViolation lo devuelve el almacenamiento cuando un cambio dejaría el stock negativo.
	// No debería ocurrir si el bloqueo por producto funciona; si aparece hay un bug de concurrencia.
	ErrInvariantViolation = errors.New("violación de invariante: stock negativo")
)
