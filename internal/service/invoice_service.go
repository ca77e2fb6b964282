package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/billing"
	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/internal/kafka"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// EnsureResult resultado de asegurar la factura del período
type EnsureResult struct {
	Created bool
	Outcome billing.PeriodOutcome
	Invoice domain.Invoice
}

// InvoiceService el libro de facturas: emisión idempotente, cobros y anulaciones
type InvoiceService interface {
	EnsurePeriodInvoiced(ctx context.Context, sub domain.Subscription, now time.Time) (EnsureResult, error)
	ApplyPayment(ctx context.Context, invoiceID uuid.UUID, amount float64, method domain.PaymentMethod, description string, now time.Time) (domain.Invoice, error)
	ListOutstanding(ctx context.Context, subID uuid.UUID) ([]domain.Invoice, error)
	History(ctx context.Context, subID uuid.UUID) ([]domain.Invoice, error)
	Void(ctx context.Context, invoiceID uuid.UUID) error
	CreateAdvancePaid(ctx context.Context, sub domain.Subscription, period billing.Period, method domain.PaymentMethod, now time.Time) (domain.Invoice, error)
	CreateManual(ctx context.Context, sub domain.Subscription, periodLabel string, amount float64, dueDate time.Time, paid bool, now time.Time) (domain.Invoice, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	settings    SettingsService
	producer    kafka.Producer
	log         *logger.Logger
}

// NewInvoiceService crea el libro de facturas. producer puede ser nil.
func NewInvoiceService(invoiceRepo repository.InvoiceRepository, settings SettingsService, producer kafka.Producer, log *logger.Logger) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		settings:    settings,
		producer:    producer,
		log:         log,
	}
}

// publishInvoiceEvent anuncia la emisión sin bloquear el ciclo: un fallo de
// publicación se registra y se sigue
func (s *invoiceService) publishInvoiceEvent(ctx context.Context, inv domain.Invoice) {
	if s.producer == nil {
		return
	}
	event := kafka.InvoiceEvent{
		SubscriptionID: inv.SubscriptionID.String(),
		InvoiceID:      inv.ID.String(),
		Code:           inv.Code,
		PeriodLabel:    inv.PeriodLabel,
		Amount:         inv.AmountTotal,
		DueDate:        inv.DueDate,
		Timestamp:      inv.IssuedAt,
	}
	if err := s.producer.PublishInvoice(ctx, event); err != nil {
		s.log.Warnw("Failed to publish invoice event", "invoiceID", inv.ID, "error", err)
	}
}

// newInvoiceCode deriva el código corto de factura de su propio ID,
// p. ej. "F-9F2C81AB"; así dos facturas nunca comparten código
func newInvoiceCode(id uuid.UUID) string {
	return "F-" + strings.ToUpper(id.String()[:8])
}

func (s *invoiceService) calculator(ctx context.Context) *billing.Calculator {
	return billing.NewCalculator(s.settings.LabelCutoverDay(ctx))
}

// EnsurePeriodInvoiced calcula el siguiente período de la suscripción y, si
// corresponde, emite la factura PENDIENTE. Repetir la llamada con el mismo
// reloj no produce facturas duplicadas.
func (s *invoiceService) EnsurePeriodInvoiced(ctx context.Context, sub domain.Subscription, now time.Time) (EnsureResult, error) {
	var latest *domain.Invoice
	last, err := s.invoiceRepo.LatestBySubscription(ctx, sub.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return EnsureResult{}, &domain.BillingError{Op: "ensure_period", SubscriptionID: sub.ID, Err: err}
		}
	} else {
		latest = &last
	}

	result := s.calculator(ctx).Next(sub, latest, now)
	if result.Outcome != billing.PeriodDue {
		return EnsureResult{Outcome: result.Outcome}, nil
	}

	exists, err := s.invoiceRepo.ExistsNonVoidPeriod(ctx, sub.ID, result.Period.Label)
	if err != nil {
		return EnsureResult{}, &domain.BillingError{Op: "ensure_period", SubscriptionID: sub.ID, Err: err}
	}
	if exists {
		return EnsureResult{Outcome: billing.PeriodAlreadyCurrent}, nil
	}

	invoiceID := uuid.New()
	invoice := domain.Invoice{
		ID:             invoiceID,
		SubscriptionID: sub.ID,
		Code:           newInvoiceCode(invoiceID),
		PeriodLabel:    result.Period.Label,
		PeriodStart:    result.Period.Start,
		PeriodEnd:      result.Period.End,
		DueDate:        result.Period.DueDate,
		AmountTotal:    sub.MonthlyRate,
		AmountPaid:     0,
		Status:         domain.InvoiceStatusPending,
		IssuedAt:       now,
	}

	created, err := s.invoiceRepo.Create(ctx, invoice)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Otro paso de la misma vuelta ya la emitió
			return EnsureResult{Outcome: billing.PeriodAlreadyCurrent}, nil
		}
		return EnsureResult{}, &domain.BillingError{Op: "ensure_period", SubscriptionID: sub.ID, Err: err}
	}

	s.log.Infow("Invoice generated", "subscriptionID", sub.ID, "period", created.PeriodLabel, "dueDate", created.DueDate.Format("2006-01-02"), "amount", created.AmountTotal)

	s.publishInvoiceEvent(ctx, created)

	return EnsureResult{Created: true, Outcome: billing.PeriodDue, Invoice: created}, nil
}

// ApplyPayment abona el monto a la factura. Cuando el acumulado alcanza el
// total, la factura pasa a PAGADA y se registra el movimiento de caja en la
// misma transacción. Un abono parcial solo actualiza el acumulado.
func (s *invoiceService) ApplyPayment(ctx context.Context, invoiceID uuid.UUID, amount float64, method domain.PaymentMethod, description string, now time.Time) (domain.Invoice, error) {
	if amount <= 0 {
		return domain.Invoice{}, domain.ErrInvalidInput
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Invoice{}, domain.ErrInvoiceNotFound
		}
		return domain.Invoice{}, err
	}

	switch invoice.Status {
	case domain.InvoiceStatusVoid:
		return domain.Invoice{}, domain.ErrInvoiceVoid
	case domain.InvoiceStatusPaid:
		return domain.Invoice{}, domain.ErrInvoiceAlreadyPaid
	}

	invoice.AmountPaid += amount

	if invoice.AmountPaid >= invoice.AmountTotal {
		invoice.Status = domain.InvoiceStatusPaid
		paidAt := now
		invoice.PaidAt = &paidAt

		if description == "" {
			description = fmt.Sprintf("Cobro Factura %s - %s", invoice.Code, invoice.PeriodLabel)
		}

		movement := domain.CashMovement{
			ID:          uuid.New(),
			InvoiceID:   invoice.ID,
			Amount:      amount,
			Method:      method,
			Description: description,
			OccurredAt:  now,
		}

		if err := s.invoiceRepo.SettleWithMovement(ctx, invoice, movement); err != nil {
			return domain.Invoice{}, &domain.BillingError{Op: "apply_payment", SubscriptionID: invoice.SubscriptionID, Err: err}
		}

		s.log.Infow("Invoice settled", "invoiceID", invoice.ID, "period", invoice.PeriodLabel, "amount", amount, "method", method)
		return invoice, nil
	}

	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return domain.Invoice{}, &domain.BillingError{Op: "apply_payment", SubscriptionID: invoice.SubscriptionID, Err: err}
	}

	s.log.Infow("Partial payment recorded", "invoiceID", invoice.ID, "period", invoice.PeriodLabel, "amountPaid", invoice.AmountPaid, "amountTotal", invoice.AmountTotal)
	return invoice, nil
}

// ListOutstanding devuelve las facturas pendientes, de la más antigua a la más reciente
func (s *invoiceService) ListOutstanding(ctx context.Context, subID uuid.UUID) ([]domain.Invoice, error) {
	return s.invoiceRepo.ListOutstanding(ctx, subID)
}

// History devuelve el historial completo de facturas de la suscripción
func (s *invoiceService) History(ctx context.Context, subID uuid.UUID) ([]domain.Invoice, error) {
	return s.invoiceRepo.ListBySubscription(ctx, subID)
}

// Void anula una factura pendiente. Las anuladas quedan fuera de la cobranza.
func (s *invoiceService) Void(ctx context.Context, invoiceID uuid.UUID) error {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrInvoiceNotFound
		}
		return err
	}

	if invoice.Status == domain.InvoiceStatusPaid {
		return domain.ErrInvoiceAlreadyPaid
	}
	if invoice.Status == domain.InvoiceStatusVoid {
		return nil
	}

	invoice.Status = domain.InvoiceStatusVoid
	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return err
	}

	s.log.Infow("Invoice voided", "invoiceID", invoice.ID, "period", invoice.PeriodLabel)
	return nil
}

// CreateAdvancePaid emite una factura de adelanto ya pagada. La usa el
// reparto de pagos cuando sobran meses completos tras limpiar lo pendiente.
// La factura nace PENDIENTE y se liquida con el movimiento de caja en una
// sola transacción; un corte a mitad de camino la deja pendiente, nunca
// pagada sin su movimiento.
func (s *invoiceService) CreateAdvancePaid(ctx context.Context, sub domain.Subscription, period billing.Period, method domain.PaymentMethod, now time.Time) (domain.Invoice, error) {
	if sub.MonthlyRate <= 0 {
		return domain.Invoice{}, domain.ErrNoMonthlyRate
	}

	invoiceID := uuid.New()
	invoice := domain.Invoice{
		ID:             invoiceID,
		SubscriptionID: sub.ID,
		Code:           newInvoiceCode(invoiceID),
		PeriodLabel:    period.Label,
		PeriodStart:    period.Start,
		PeriodEnd:      period.End,
		DueDate:        period.DueDate,
		AmountTotal:    sub.MonthlyRate,
		Status:         domain.InvoiceStatusPending,
		IssuedAt:       now,
	}

	created, err := s.invoiceRepo.Create(ctx, invoice)
	if err != nil {
		return domain.Invoice{}, &domain.BillingError{Op: "create_advance", SubscriptionID: sub.ID, Err: err}
	}

	paidAt := now
	created.Status = domain.InvoiceStatusPaid
	created.AmountPaid = sub.MonthlyRate
	created.PaidAt = &paidAt

	movement := domain.CashMovement{
		ID:          uuid.New(),
		InvoiceID:   created.ID,
		Amount:      sub.MonthlyRate,
		Method:      method,
		Description: fmt.Sprintf("Adelanto - %s (Factura %s)", created.PeriodLabel, created.Code),
		OccurredAt:  now,
	}

	if err := s.invoiceRepo.SettleWithMovement(ctx, created, movement); err != nil {
		return domain.Invoice{}, &domain.BillingError{Op: "create_advance", SubscriptionID: sub.ID, Err: err}
	}

	s.log.Infow("Advance invoice created and settled", "subscriptionID", sub.ID, "period", created.PeriodLabel)

	s.publishInvoiceEvent(ctx, created)
	return created, nil
}

// CreateManual emite una factura fuera del ciclo automático, por ejemplo al
// migrar historial. Con paid se registra también el movimiento de caja.
func (s *invoiceService) CreateManual(ctx context.Context, sub domain.Subscription, periodLabel string, amount float64, dueDate time.Time, paid bool, now time.Time) (domain.Invoice, error) {
	if amount <= 0 || periodLabel == "" {
		return domain.Invoice{}, domain.ErrInvalidInput
	}

	exists, err := s.invoiceRepo.ExistsNonVoidPeriod(ctx, sub.ID, periodLabel)
	if err != nil {
		return domain.Invoice{}, err
	}
	if exists {
		return domain.Invoice{}, repository.ErrDuplicate
	}

	invoiceID := uuid.New()
	invoice := domain.Invoice{
		ID:             invoiceID,
		SubscriptionID: sub.ID,
		Code:           newInvoiceCode(invoiceID),
		PeriodLabel:    periodLabel,
		PeriodStart:    dueDate.AddDate(0, -1, 0),
		PeriodEnd:      dueDate,
		DueDate:        dueDate,
		AmountTotal:    amount,
		Status:         domain.InvoiceStatusPending,
		IssuedAt:       now,
	}

	created, err := s.invoiceRepo.Create(ctx, invoice)
	if err != nil {
		return domain.Invoice{}, err
	}

	// Igual que el adelanto: primero PENDIENTE, el pago entra con su
	// movimiento de caja en una sola transacción
	if paid {
		paidAt := now
		created.Status = domain.InvoiceStatusPaid
		created.AmountPaid = amount
		created.PaidAt = &paidAt

		movement := domain.CashMovement{
			ID:          uuid.New(),
			InvoiceID:   created.ID,
			Amount:      amount,
			Method:      domain.PaymentMethodCash,
			Description: fmt.Sprintf("Migración - %s (Factura %s)", periodLabel, created.Code),
			OccurredAt:  now,
		}
		if err := s.invoiceRepo.SettleWithMovement(ctx, created, movement); err != nil {
			return domain.Invoice{}, err
		}
	}

	s.log.Infow("Manual invoice created", "subscriptionID", sub.ID, "period", periodLabel, "paid", paid)

	s.publishInvoiceEvent(ctx, created)
	return created, nil
}
