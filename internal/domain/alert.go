package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertKind tipo de alerta para la bandeja del gerente
type AlertKind string

const (
	AlertKindMissingContact   AlertKind = "MISSING_CONTACT"
	AlertKindSuspensionFailed AlertKind = "SUSPENSION_FAILED"
	AlertKindReconnectFailed  AlertKind = "RECONNECT_FAILED"
	AlertKindUnmatchedPayment AlertKind = "UNMATCHED_PAYMENT"
)

// ManagerAlert es una condición que requiere intervención humana.
// Solo se agregan y se marcan como leídas; la limpieza elimina las
// leídas con más de la ventana de retención.
type ManagerAlert struct {
	ID             uuid.UUID  `json:"id"`
	Kind           AlertKind  `json:"kind"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	Read           bool       `json:"read"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewMissingContactAlert crea la alerta de cliente sin teléfono
func NewMissingContactAlert(subscriptionID uuid.UUID, customerName, contractCode string) ManagerAlert {
	return ManagerAlert{
		Kind:  AlertKindMissingContact,
		Title: "Cliente sin número de WhatsApp",
		Message: fmt.Sprintf("El cliente '%s' (Contrato: %s) no tiene número de teléfono registrado. "+
			"No se puede enviar notificación de cobro.", customerName, contractCode),
		SubscriptionID: &subscriptionID,
	}
}

// NewSuspensionFailedAlert crea la alerta de corte fallido
func NewSuspensionFailedAlert(subscriptionID uuid.UUID, customerName, reason string) ManagerAlert {
	return ManagerAlert{
		Kind:  AlertKindSuspensionFailed,
		Title: "Error al cortar servicio",
		Message: fmt.Sprintf("No se pudo cortar el servicio del cliente '%s'. Error: %s. "+
			"Requiere intervención manual.", customerName, reason),
		SubscriptionID: &subscriptionID,
	}
}

// NewReconnectFailedAlert crea la alerta de reconexión fallida
func NewReconnectFailedAlert(subscriptionID uuid.UUID, customerName, reason string) ManagerAlert {
	return ManagerAlert{
		Kind:  AlertKindReconnectFailed,
		Title: "Error al reconectar servicio",
		Message: fmt.Sprintf("El cliente '%s' regularizó su deuda pero no se pudo reconectar el servicio. "+
			"Error: %s. Requiere intervención manual.", customerName, reason),
		SubscriptionID: &subscriptionID,
	}
}

// NewUnmatchedPaymentAlert crea la alerta de pago sin cliente identificado
func NewUnmatchedPaymentAlert(dni string, amount float64, source string) ManagerAlert {
	return ManagerAlert{
		Kind:  AlertKindUnmatchedPayment,
		Title: "Pago recibido sin cliente identificado",
		Message: fmt.Sprintf("El reporte '%s' contiene un pago de S/ %.2f con DNI %s "+
			"que no corresponde a ningún cliente registrado. Registrar manualmente.", source, amount, dni),
	}
}
