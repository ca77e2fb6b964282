package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/domain"
)

// CustomerRepository acceso a los clientes del operador
type CustomerRepository interface {
	Create(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Customer, error)
	GetByDNI(ctx context.Context, dni string) (domain.Customer, error)
	Update(ctx context.Context, customer domain.Customer) error
}

// SubscriptionRepository acceso a las suscripciones (contratos de servicio)
type SubscriptionRepository interface {
	Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error)
	GetByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error)
	GetAll(ctx context.Context) ([]domain.Subscription, error)
	GetAllActive(ctx context.Context) ([]domain.Subscription, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Update(ctx context.Context, sub domain.Subscription) error
}

// InvoiceRepository acceso a facturas y movimientos de caja.
// SettleWithMovement persiste la factura actualizada y el movimiento
// de caja en una sola transacción.
type InvoiceRepository interface {
	Create(ctx context.Context, inv domain.Invoice) (domain.Invoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Invoice, error)
	Update(ctx context.Context, inv domain.Invoice) error
	LatestBySubscription(ctx context.Context, subID uuid.UUID) (domain.Invoice, error)
	ListBySubscription(ctx context.Context, subID uuid.UUID) ([]domain.Invoice, error)
	ListOutstanding(ctx context.Context, subID uuid.UUID) ([]domain.Invoice, error)
	ExistsNonVoidPeriod(ctx context.Context, subID uuid.UUID, periodLabel string) (bool, error)
	SettleWithMovement(ctx context.Context, inv domain.Invoice, mv domain.CashMovement) error
	ListRecentMovements(ctx context.Context, limit int) ([]domain.CashMovement, error)
}

// NotificationRepository acceso a la cola de avisos de cobranza
type NotificationRepository interface {
	Create(ctx context.Context, task domain.NotificationTask) (domain.NotificationTask, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.NotificationTask, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.NotificationTask, error)
	ListBySubscription(ctx context.Context, subID uuid.UUID) ([]domain.NotificationTask, error)
	ExistsWithStatus(ctx context.Context, subID uuid.UUID, kind domain.NotificationKind, statuses ...domain.NotificationStatus) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus, sentAt *time.Time) error
	Reschedule(ctx context.Context, id uuid.UUID, scheduledFor time.Time) error
	DeletePending(ctx context.Context, subID uuid.UUID) (int, error)
}

// AlertRepository acceso a las alertas del panel de gestión
type AlertRepository interface {
	Create(ctx context.Context, alert domain.ManagerAlert) (domain.ManagerAlert, error)
	ListUnread(ctx context.Context) ([]domain.ManagerAlert, error)
	CountUnread(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context) (int, error)
	PruneRead(ctx context.Context, olderThan time.Time) (int, error)
}

// SettingsRepository acceso a los ajustes de ejecución (system_settings)
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}
