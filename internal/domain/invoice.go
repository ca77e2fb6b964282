package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus estado de una factura
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
)

// Invoice representa la factura mensual de una suscripción.
// PeriodLabel es la clave natural: no puede existir más de una factura
// no anulada con el mismo periodo para la misma suscripción.
type Invoice struct {
	ID             uuid.UUID     `json:"id"`
	SubscriptionID uuid.UUID     `json:"subscription_id"`
	Code           string        `json:"code"`
	PeriodLabel    string        `json:"period_label"`
	PeriodStart    time.Time     `json:"period_start"`
	PeriodEnd      time.Time     `json:"period_end"`
	DueDate        time.Time     `json:"due_date"`
	AmountTotal    float64       `json:"amount_total"`
	AmountPaid     float64       `json:"amount_paid"`
	Status         InvoiceStatus `json:"status"`
	IssuedAt       time.Time     `json:"issued_at"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
}

// Outstanding devuelve el saldo pendiente de la factura
func (i Invoice) Outstanding() float64 {
	rem := i.AmountTotal - i.AmountPaid
	if rem < 0 {
		return 0
	}
	return rem
}

// PaymentMethod medio por el que se recibió un pago
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodYape PaymentMethod = "YAPE"
)

// CashMovement es el asiento de caja generado al liquidar una factura.
// Los registros de caja son permanentes: nunca se borran ni se revierten.
type CashMovement struct {
	ID          uuid.UUID     `json:"id"`
	InvoiceID   uuid.UUID     `json:"invoice_id"`
	Amount      float64       `json:"amount"`
	Method      PaymentMethod `json:"method"`
	Description string        `json:"description"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// PaymentReportEntry es una fila ya interpretada del reporte externo de
// pagos (Yape). OccurredAt se compara contra la marca de agua para
// descartar duplicados.
type PaymentReportEntry struct {
	TxKind       string    `json:"tx_kind"`
	Counterparty string    `json:"counterparty"`
	Amount       float64   `json:"amount"`
	Note         string    `json:"note"`
	DNI          string    `json:"dni,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	SourceLabel  string    `json:"source_label"`
}
