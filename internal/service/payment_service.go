package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/billing"
	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/internal/kafka"
	"github.com/alberthdev/fnet-billing/internal/metrics"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// Reconnector recibe el aviso de que un pago dejó la suscripción sin deuda.
// Lo implementa la cobranza: cancela avisos pendientes y repone el servicio
// si estaba cortado.
type Reconnector interface {
	OnBalanceCleared(ctx context.Context, subID uuid.UUID, now time.Time) error
}

// AllocationSummary resultado del reparto de un pago
type AllocationSummary struct {
	SubscriptionID  uuid.UUID `json:"subscription_id"`
	SettledInvoices int       `json:"settled_invoices"`
	PartialInvoices int       `json:"partial_invoices"`
	FutureInvoices  int       `json:"future_invoices"`
	Remainder       float64   `json:"remainder"`
	Proportional    bool      `json:"proportional"`
	BalanceCleared  bool      `json:"balance_cleared"`
}

// IngestSummary resultado de procesar un lote del reporte de pagos
type IngestSummary struct {
	Total     int `json:"total"`
	Applied   int `json:"applied"`
	Stale     int `json:"stale"`
	Unmatched int `json:"unmatched"`
	Failed    int `json:"failed"`
}

// PaymentService reparte pagos entrantes e ingiere reportes de terceros
type PaymentService interface {
	RegisterPayment(ctx context.Context, subID uuid.UUID, amount float64, method domain.PaymentMethod, now time.Time) (AllocationSummary, error)
	IngestReportEntries(ctx context.Context, entries []domain.PaymentReportEntry, now time.Time) (IngestSummary, error)
}

type paymentService struct {
	subscriptionRepo repository.SubscriptionRepository
	customerRepo     repository.CustomerRepository
	invoiceRepo      repository.InvoiceRepository
	alertRepo        repository.AlertRepository
	invoices         InvoiceService
	settings         SettingsService
	allocator        *billing.Allocator
	reconnector      Reconnector
	producer         kafka.Producer
	metrics          metrics.BillingMetrics
	log              *logger.Logger
}

// NewPaymentService crea el servicio de pagos. producer y billingMetrics
// pueden ser nil si no están configurados.
func NewPaymentService(
	subscriptionRepo repository.SubscriptionRepository,
	customerRepo repository.CustomerRepository,
	invoiceRepo repository.InvoiceRepository,
	alertRepo repository.AlertRepository,
	invoices InvoiceService,
	settings SettingsService,
	reconnector Reconnector,
	producer kafka.Producer,
	billingMetrics metrics.BillingMetrics,
	log *logger.Logger,
) PaymentService {
	return &paymentService{
		subscriptionRepo: subscriptionRepo,
		customerRepo:     customerRepo,
		invoiceRepo:      invoiceRepo,
		alertRepo:        alertRepo,
		invoices:         invoices,
		settings:         settings,
		allocator:        billing.NewAllocator(),
		reconnector:      reconnector,
		producer:         producer,
		metrics:          billingMetrics,
		log:              log,
	}
}

// RegisterPayment reparte el monto entre las facturas pendientes de la
// suscripción, de la más antigua a la más reciente, y genera facturas de
// adelanto pagadas con los meses que sobren. El sobrante menor a un mes se
// informa en el resumen, nunca se aplica en parte.
func (s *paymentService) RegisterPayment(ctx context.Context, subID uuid.UUID, amount float64, method domain.PaymentMethod, now time.Time) (AllocationSummary, error) {
	if amount <= 0 {
		return AllocationSummary{}, domain.ErrInvalidInput
	}

	sub, err := s.subscriptionRepo.GetByID(ctx, subID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AllocationSummary{}, domain.ErrSubscriptionNotFound
		}
		return AllocationSummary{}, err
	}

	outstanding, err := s.invoiceRepo.ListOutstanding(ctx, subID)
	if err != nil {
		return AllocationSummary{}, &domain.BillingError{Op: "register_payment", SubscriptionID: subID, Err: err}
	}

	plan := s.allocator.Plan(amount, sub.MonthlyRate, outstanding)
	summary := AllocationSummary{
		SubscriptionID: subID,
		Remainder:      plan.Remainder,
		Proportional:   plan.Proportional,
	}

	for _, app := range plan.Applications {
		updated, err := s.invoices.ApplyPayment(ctx, app.Invoice.ID, app.Amount, method, "", now)
		if err != nil {
			return summary, &domain.BillingError{Op: "register_payment", SubscriptionID: subID, Err: err}
		}
		if updated.Status == domain.InvoiceStatusPaid {
			summary.SettledInvoices++
		} else {
			summary.PartialInvoices++
		}
	}

	if plan.FutureMonths > 0 {
		if err := s.createAdvances(ctx, sub, plan.FutureMonths, method, now, &summary); err != nil {
			return summary, err
		}
	}

	if plan.Remainder > 0 {
		s.log.Infow("Payment remainder below one monthly rate, reported only",
			"subscriptionID", subID, "remainder", plan.Remainder, "rate", sub.MonthlyRate)
	}

	remaining, err := s.invoiceRepo.ListOutstanding(ctx, subID)
	if err == nil && len(remaining) == 0 {
		summary.BalanceCleared = true
		if s.reconnector != nil {
			if err := s.reconnector.OnBalanceCleared(ctx, subID, now); err != nil {
				s.log.Warnw("Balance cleared handling failed", "subscriptionID", subID, "error", err)
			}
		}
	}

	s.publishPaymentEvent(ctx, sub, amount, method, summary)

	s.log.Infow("Payment allocated", "subscriptionID", subID, "amount", amount, "method", method,
		"settled", summary.SettledInvoices, "future", summary.FutureInvoices, "remainder", summary.Remainder)

	return summary, nil
}

// createAdvances genera y salda months facturas de adelanto a partir del
// último período existente
func (s *paymentService) createAdvances(ctx context.Context, sub domain.Subscription, months int, method domain.PaymentMethod, now time.Time, summary *AllocationSummary) error {
	latest, err := s.invoiceRepo.LatestBySubscription(ctx, sub.ID)
	if err != nil {
		return &domain.BillingError{Op: "create_advances", SubscriptionID: sub.ID, Err: err}
	}

	calc := billing.NewCalculator(s.settings.LabelCutoverDay(ctx))

	for i := 0; i < months; i++ {
		period := calc.Following(sub, latest)
		created, err := s.invoices.CreateAdvancePaid(ctx, sub, period, method, now)
		if err != nil {
			return err
		}
		summary.FutureInvoices++
		latest = created
	}

	return nil
}

func (s *paymentService) publishPaymentEvent(ctx context.Context, sub domain.Subscription, amount float64, method domain.PaymentMethod, summary AllocationSummary) {
	if s.producer == nil {
		return
	}

	event := kafka.PaymentEvent{
		SubscriptionID:  sub.ID.String(),
		CustomerID:      sub.CustomerID.String(),
		Amount:          amount,
		Method:          string(method),
		SettledInvoices: summary.SettledInvoices,
		FutureInvoices:  summary.FutureInvoices,
		Remainder:       summary.Remainder,
	}

	if err := s.producer.PublishPayment(ctx, event); err != nil {
		s.log.Warnw("Failed to publish payment event", "subscriptionID", sub.ID, "error", err)
	}
}

// IngestReportEntries procesa un lote del reporte de pagos de un tercero.
// Las entradas con fecha anterior o igual a la marca de agua se rechazan sin
// efectos; las que no se pueden asociar a un cliente levantan una alerta en
// lugar de adivinar. La marca de agua avanza con cada entrada aceptada.
func (s *paymentService) IngestReportEntries(ctx context.Context, entries []domain.PaymentReportEntry, now time.Time) (IngestSummary, error) {
	summary := IngestSummary{Total: len(entries)}
	if len(entries) == 0 {
		return summary, nil
	}

	sorted := make([]domain.PaymentReportEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
	})

	watermark, hasWatermark := s.settings.Watermark(ctx)
	maxSeen := watermark

	for _, entry := range sorted {
		if err := s.applyReportEntry(ctx, entry, watermark, hasWatermark, now, &summary); err != nil {
			if errors.Is(err, domain.ErrStaleReportEntry) {
				summary.Stale++
				s.log.Debugw("Stale report entry rejected", "occurredAt", entry.OccurredAt, "watermark", watermark)
				continue
			}
			summary.Failed++
			s.log.Errorw("Failed to apply report entry", "counterparty", entry.Counterparty, "error", err)
		}

		// La marca de agua avanza también con las entradas fallidas:
		// reintentarlas es tarea del operador, no del siguiente lote
		if entry.OccurredAt.After(maxSeen) {
			maxSeen = entry.OccurredAt
		}
	}

	if maxSeen.After(watermark) {
		if err := s.settings.SetWatermark(ctx, maxSeen); err != nil {
			return summary, fmt.Errorf("failed to advance watermark: %w", err)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentsIngested(summary.Applied)
	}

	s.log.Infow("Payment report processed", "total", summary.Total, "applied", summary.Applied,
		"stale", summary.Stale, "unmatched", summary.Unmatched, "failed", summary.Failed)

	return summary, nil
}

func (s *paymentService) applyReportEntry(ctx context.Context, entry domain.PaymentReportEntry, watermark time.Time, hasWatermark bool, now time.Time, summary *IngestSummary) error {
	if hasWatermark && !entry.OccurredAt.After(watermark) {
		return domain.ErrStaleReportEntry
	}

	sub, ok, err := s.matchSubscription(ctx, entry)
	if err != nil {
		return err
	}
	if !ok {
		summary.Unmatched++
		identifier := entry.DNI
		if identifier == "" {
			identifier = entry.Counterparty
		}
		alert := domain.NewUnmatchedPaymentAlert(identifier, entry.Amount, entry.SourceLabel)
		if _, err := s.alertRepo.Create(ctx, alert); err != nil {
			return fmt.Errorf("failed to record unmatched payment alert: %w", err)
		}
		return nil
	}

	if _, err := s.RegisterPayment(ctx, sub.ID, entry.Amount, domain.PaymentMethodYape, now); err != nil {
		return err
	}

	summary.Applied++
	return nil
}

// matchSubscription busca la suscripción del pago por el DNI extraído de la
// nota del reporte. Sin DNI, o sin cliente o contrato que corresponda, el
// pago queda sin asociar.
func (s *paymentService) matchSubscription(ctx context.Context, entry domain.PaymentReportEntry) (domain.Subscription, bool, error) {
	if entry.DNI == "" {
		return domain.Subscription{}, false, nil
	}

	customer, err := s.customerRepo.GetByDNI(ctx, entry.DNI)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, false, nil
		}
		return domain.Subscription{}, false, err
	}

	subs, err := s.subscriptionRepo.GetByCustomerID(ctx, customer.ID)
	if err != nil {
		return domain.Subscription{}, false, err
	}
	if len(subs) == 0 {
		return domain.Subscription{}, false, nil
	}

	// Con varias suscripciones se prefiere una con deuda, luego una activa
	for _, sub := range subs {
		outstanding, err := s.invoiceRepo.ListOutstanding(ctx, sub.ID)
		if err == nil && len(outstanding) > 0 {
			return sub, true, nil
		}
	}
	for _, sub := range subs {
		if sub.Active {
			return sub, true, nil
		}
	}

	return subs[0], true, nil
}
