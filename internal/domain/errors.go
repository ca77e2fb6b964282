package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Errores de la aplicación
var (
	// ErrNotFound registro no encontrado
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate registro duplicado
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidInput datos de entrada inválidos
	ErrInvalidInput = errors.New("invalid input data")

	// ErrCustomerNotFound cliente no encontrado
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrSubscriptionNotFound suscripción no encontrada
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrInvoiceNotFound factura no encontrada
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvoiceVoid la factura está anulada y no admite pagos
	ErrInvoiceVoid = errors.New("invoice is void")

	// ErrInvoiceAlreadyPaid la factura ya está pagada
	ErrInvoiceAlreadyPaid = errors.New("invoice already paid")

	// ErrNoMonthlyRate la suscripción no tiene tarifa mensual conocida
	ErrNoMonthlyRate = errors.New("subscription has no monthly rate")

	// ErrStaleReportEntry el registro del reporte es anterior a la marca de agua
	ErrStaleReportEntry = errors.New("report entry at or before watermark")

	// ErrExternalServiceUnavailable servicio externo no disponible
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
)

// BillingError agrega contexto de suscripción a un error del motor de cobros
type BillingError struct {
	Op             string
	SubscriptionID uuid.UUID
	Err            error
}

// Error implementa la interfaz error
func (e *BillingError) Error() string {
	if e.SubscriptionID != uuid.Nil {
		return fmt.Sprintf("billing %s: %v (subscription: %s)", e.Op, e.Err, e.SubscriptionID)
	}
	return fmt.Sprintf("billing %s: %v", e.Op, e.Err)
}

// Unwrap permite usar errors.Is / errors.As
func (e *BillingError) Unwrap() error {
	return e.Err
}
