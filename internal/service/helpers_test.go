package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/internal/kafka"
	"github.com/alberthdev/fnet-billing/internal/notify"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithOutput(logger.ERROR, io.Discard)
}

// fakeProducer captura los eventos publicados para poder inspeccionarlos
type fakeProducer struct {
	invoiceEvents []kafka.InvoiceEvent
	paymentEvents []kafka.PaymentEvent
	serviceTopics []string
}

func (p *fakeProducer) PublishPayment(ctx context.Context, event kafka.PaymentEvent) error {
	p.paymentEvents = append(p.paymentEvents, event)
	return nil
}

func (p *fakeProducer) PublishServiceEvent(ctx context.Context, topic string, event kafka.ServiceEvent) error {
	p.serviceTopics = append(p.serviceTopics, topic)
	return nil
}

func (p *fakeProducer) PublishInvoice(ctx context.Context, event kafka.InvoiceEvent) error {
	p.invoiceEvents = append(p.invoiceEvents, event)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func testDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// fixture arma el juego completo de repositorios en memoria y servicios
// con los ajustes habituales de operación
type fixture struct {
	customers     *repository.InMemoryCustomerRepository
	subscriptions *repository.InMemorySubscriptionRepository
	invoiceRepo   *repository.InMemoryInvoiceRepository
	notifications *repository.InMemoryNotificationRepository
	alerts        *repository.InMemoryAlertRepository
	settings      SettingsService
	messenger     *notify.SimulatedMessenger
	router        *notify.SimulatedRouter
	quota         *DailyQuota
	producer      *fakeProducer

	invoices   InvoiceService
	collection CollectionService
	payments   PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testLogger()
	ctx := context.Background()

	f := &fixture{
		customers:     repository.NewInMemoryCustomerRepository(log),
		subscriptions: repository.NewInMemorySubscriptionRepository(log),
		invoiceRepo:   repository.NewInMemoryInvoiceRepository(log),
		notifications: repository.NewInMemoryNotificationRepository(log),
		alerts:        repository.NewInMemoryAlertRepository(log),
		messenger:     notify.NewSimulatedMessenger(log),
		router:        notify.NewSimulatedRouter(log),
	}

	settingsRepo := repository.NewInMemorySettingsRepository(log)
	f.settings = NewSettingsService(settingsRepo, log)

	require.NoError(t, f.settings.Set(ctx, SettingWhatsAppEnabled, "true"))
	require.NoError(t, f.settings.Set(ctx, SettingRouterEnabled, "true"))
	require.NoError(t, f.settings.Set(ctx, SettingNotifyActivationDate, "2020-01-01"))
	require.NoError(t, f.settings.Set(ctx, SettingPaymentGraceDays, "21"))
	require.NoError(t, f.settings.Set(ctx, SettingReminderOffsetDays, "0"))

	f.quota = NewDailyQuota(func() int { return f.settings.DailyMessageQuota(ctx) }, nil)

	f.producer = &fakeProducer{}
	f.invoices = NewInvoiceService(f.invoiceRepo, f.settings, f.producer, log)
	f.collection = NewCollectionService(
		f.subscriptions, f.customers, f.invoiceRepo, f.notifications, f.alerts,
		f.settings, f.messenger, f.router, f.quota, f.producer, nil, log,
	)
	f.payments = NewPaymentService(
		f.subscriptions, f.customers, f.invoiceRepo, f.alerts,
		f.invoices, f.settings, f.collection, f.producer, nil, log,
	)

	return f
}

// seedSubscription da de alta un cliente con su contrato
func (f *fixture) seedSubscription(t *testing.T, dni, phone string, prepaid bool, payDay int) domain.Subscription {
	t.Helper()
	ctx := context.Background()

	customer, err := f.customers.Create(ctx, domain.Customer{
		ID:        uuid.New(),
		DNI:       dni,
		FirstName: "Rosa",
		LastName:  "Quispe",
		Phone:     phone,
		Active:    true,
	})
	require.NoError(t, err)

	sub, err := f.subscriptions.Create(ctx, domain.Subscription{
		ID:           uuid.New(),
		CustomerID:   customer.ID,
		ContractCode: "FN-" + dni,
		MonthlyRate:  50,
		Prepaid:      prepaid,
		PayDay:       payDay,
		Active:       true,
		ClientIP:     "10.20.0.7",
	})
	require.NoError(t, err)

	return sub
}

// seedInvoice emite directamente una factura pendiente con el vencimiento dado
func (f *fixture) seedInvoice(t *testing.T, sub domain.Subscription, label string, due time.Time, total, paid float64) domain.Invoice {
	t.Helper()

	inv, err := f.invoiceRepo.Create(context.Background(), domain.Invoice{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		Code:           "F-00001",
		PeriodLabel:    label,
		PeriodStart:    due.AddDate(0, -1, 0),
		PeriodEnd:      due,
		DueDate:        due,
		AmountTotal:    total,
		AmountPaid:     paid,
		Status:         domain.InvoiceStatusPending,
		IssuedAt:       due.AddDate(0, -1, 0),
	})
	require.NoError(t, err)

	return inv
}
