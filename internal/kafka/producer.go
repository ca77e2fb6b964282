// Package kafka publica los eventos del motor de cobranza para otros
// sistemas del operador (panel de gestión, reportes).
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// Tópicos publicados por el motor
const (
	TopicPaymentAllocated   = "billing.payment_allocated"
	TopicServiceSuspended   = "billing.service_suspended"
	TopicServiceReconnected = "billing.service_reconnected"
	TopicInvoiceGenerated   = "billing.invoice_generated"
)

// PaymentEvent evento de pago repartido
type PaymentEvent struct {
	SubscriptionID  string    `json:"subscription_id"`
	CustomerID      string    `json:"customer_id"`
	Amount          float64   `json:"amount"`
	Method          string    `json:"method"`
	SettledInvoices int       `json:"settled_invoices"`
	FutureInvoices  int       `json:"future_invoices"`
	Remainder       float64   `json:"remainder"`
	Timestamp       time.Time `json:"timestamp"`
}

// ServiceEvent evento de corte o reconexión del servicio
type ServiceEvent struct {
	SubscriptionID string    `json:"subscription_id"`
	Address        string    `json:"address,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// InvoiceEvent evento de factura emitida
type InvoiceEvent struct {
	SubscriptionID string    `json:"subscription_id"`
	InvoiceID      string    `json:"invoice_id"`
	Code           string    `json:"code"`
	PeriodLabel    string    `json:"period_label"`
	Amount         float64   `json:"amount"`
	DueDate        time.Time `json:"due_date"`
	Timestamp      time.Time `json:"timestamp"`
}

// Producer publica eventos del motor en Kafka
type Producer interface {
	PublishPayment(ctx context.Context, event PaymentEvent) error
	PublishServiceEvent(ctx context.Context, topic string, event ServiceEvent) error
	PublishInvoice(ctx context.Context, event InvoiceEvent) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewProducer crea y configura el productor de eventos
func NewProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)

	return &kafkaProducer{
		writer: writer,
		log:    log,
	}, nil
}

// PublishPayment publica un evento de pago repartido.
// La clave es la suscripción: los eventos de un mismo contrato conservan
// el orden dentro de su partición.
func (k *kafkaProducer) PublishPayment(ctx context.Context, event PaymentEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return k.publish(ctx, TopicPaymentAllocated, event.SubscriptionID, event)
}

// PublishServiceEvent publica un corte o una reconexión
func (k *kafkaProducer) PublishServiceEvent(ctx context.Context, topic string, event ServiceEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return k.publish(ctx, topic, event.SubscriptionID, event)
}

// PublishInvoice publica una factura recién emitida
func (k *kafkaProducer) PublishInvoice(ctx context.Context, event InvoiceEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return k.publish(ctx, TopicInvoiceGenerated, event.SubscriptionID, event)
}

func (k *kafkaProducer) publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		k.log.Errorw("Failed to marshal event for Kafka", "error", err, "topic", topic)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", topic)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", topic)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Event published to Kafka", "topic", topic, "key", key)
	return nil
}

// Close cierra el productor. Debe llamarse en el apagado ordenado.
func (k *kafkaProducer) Close() error {
	k.log.Infow("Closing Kafka producer writer...")
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka producer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	return nil
}
