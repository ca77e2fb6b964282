package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind tipo de aviso de cobranza
type NotificationKind string

const (
	NotificationKindReminder  NotificationKind = "REMINDER"
	NotificationKindUltimatum NotificationKind = "ULTIMATUM"
)

// NotificationStatus estado de un aviso en la cola de envío
type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "PENDING"
	NotificationStatusSent      NotificationStatus = "SENT"
	NotificationStatusError     NotificationStatus = "ERROR"
	NotificationStatusNoContact NotificationStatus = "NO_CONTACT"
)

// NotificationTask es un aviso de WhatsApp en cola. Por suscripción solo
// puede existir un aviso PENDING de cada tipo a la vez.
type NotificationTask struct {
	ID             uuid.UUID          `json:"id"`
	SubscriptionID uuid.UUID          `json:"subscription_id"`
	Kind           NotificationKind   `json:"kind"`
	Message        string             `json:"message"`
	Phone          string             `json:"phone,omitempty"`
	ScheduledFor   time.Time          `json:"scheduled_for"`
	SentAt         *time.Time         `json:"sent_at,omitempty"`
	Status         NotificationStatus `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
}

// HasPhone indica si el aviso tiene destino de entrega
func (n NotificationTask) HasPhone() bool {
	return n.Phone != ""
}
