package engine

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/internal/metrics"
	"github.com/alberthdev/fnet-billing/internal/notify"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/internal/service"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

type engineFixture struct {
	subscriptions *repository.InMemorySubscriptionRepository
	invoiceRepo   *repository.InMemoryInvoiceRepository
	notifications *repository.InMemoryNotificationRepository
	alerts        *repository.InMemoryAlertRepository
	router        *notify.SimulatedRouter
	customerID    uuid.UUID
	engine        *Engine
}

// newEngineFixture arma el motor completo sobre repositorios en memoria,
// con el reloj congelado en la fecha dada
func newEngineFixture(t *testing.T, now time.Time) *engineFixture {
	t.Helper()
	log := logger.NewWithOutput(logger.ERROR, io.Discard)
	ctx := context.Background()

	f := &engineFixture{
		subscriptions: repository.NewInMemorySubscriptionRepository(log),
		invoiceRepo:   repository.NewInMemoryInvoiceRepository(log),
		notifications: repository.NewInMemoryNotificationRepository(log),
		alerts:        repository.NewInMemoryAlertRepository(log),
		router:        notify.NewSimulatedRouter(log),
	}

	customers := repository.NewInMemoryCustomerRepository(log)
	settings := service.NewSettingsService(repository.NewInMemorySettingsRepository(log), log)
	require.NoError(t, settings.Set(ctx, service.SettingWhatsAppEnabled, "true"))
	require.NoError(t, settings.Set(ctx, service.SettingRouterEnabled, "true"))
	require.NoError(t, settings.Set(ctx, service.SettingNotifyActivationDate, "2020-01-01"))
	require.NoError(t, settings.Set(ctx, service.SettingReminderOffsetDays, "3"))

	messenger := notify.NewSimulatedMessenger(log)
	quota := service.NewDailyQuota(func() int { return settings.DailyMessageQuota(ctx) }, func() time.Time { return now })

	invoices := service.NewInvoiceService(f.invoiceRepo, settings, nil, log)
	billingMetrics := metrics.NewBillingMetrics(prometheus.NewRegistry())
	collection := service.NewCollectionService(
		f.subscriptions, customers, f.invoiceRepo, f.notifications, f.alerts,
		settings, messenger, f.router, quota, nil, billingMetrics, log,
	)

	customer, err := customers.Create(ctx, domain.Customer{
		ID:        uuid.New(),
		DNI:       "40251860",
		FirstName: "Rosa",
		LastName:  "Quispe",
		Phone:     "+51987654321",
		Active:    true,
	})
	require.NoError(t, err)
	f.customerID = customer.ID

	f.engine = New(f.subscriptions, invoices, collection, billingMetrics, log, func() time.Time { return now })

	return f
}

func (f *engineFixture) seedSubscription(t *testing.T, payDay int) domain.Subscription {
	t.Helper()

	sub, err := f.subscriptions.Create(context.Background(), domain.Subscription{
		ID:           uuid.New(),
		CustomerID:   f.customerID,
		ContractCode: "FN-40251860",
		MonthlyRate:  50,
		PayDay:       payDay,
		Active:       true,
		ClientIP:     "10.20.0.7",
	})
	require.NoError(t, err)
	return sub
}

func TestRunTickGeneratesInvoiceForActiveSubscription(t *testing.T) {
	now := time.Date(2025, time.December, 20, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)
	sub := f.seedSubscription(t, 20)

	summary := f.engine.RunTick(context.Background())

	assert.Equal(t, 1, summary.ActiveSubscriptions)
	assert.Equal(t, 1, summary.InvoicesGenerated)
	assert.Zero(t, summary.StepErrors)

	history, err := f.invoiceRepo.ListBySubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Diciembre 2025", history[0].PeriodLabel)

	// La vuelta siguiente no duplica la factura del período
	summary = f.engine.RunTick(context.Background())
	assert.Zero(t, summary.InvoicesGenerated)
	assert.Equal(t, 1, summary.InvoicesSkipped)

	assert.Equal(t, summary, f.engine.LastSummary())
}

func TestRunTickQueuesAndDeliversReminder(t *testing.T) {
	now := time.Date(2025, time.December, 20, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)
	sub := f.seedSubscription(t, 20)

	_, err := f.invoiceRepo.Create(context.Background(), domain.Invoice{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		Code:           "F-00001",
		PeriodLabel:    "Noviembre 2025",
		PeriodStart:    time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2025, time.November, 20, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2025, time.November, 20, 0, 0, 0, 0, time.UTC),
		AmountTotal:    50,
		Status:         domain.InvoiceStatusPending,
	})
	require.NoError(t, err)

	summary := f.engine.RunTick(context.Background())

	assert.Equal(t, 1, summary.RemindersQueued)
	assert.Equal(t, 1, summary.NotificationsSent)
	assert.Zero(t, summary.Suspensions)
	assert.Zero(t, summary.StepErrors)

	tasks, err := f.notifications.ListBySubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2) // recordatorio entregado + ultimátum encadenado
}

func TestRunTickEscalationSkipsMissingCustomerWithoutAbortingBatch(t *testing.T) {
	now := time.Date(2025, time.December, 20, 9, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	// Suscripción huérfana: su cliente no existe, la escalada debe fallar
	// solo para ella
	orphan, err := f.subscriptions.Create(context.Background(), domain.Subscription{
		ID:           uuid.New(),
		CustomerID:   uuid.New(),
		ContractCode: "FN-00000000",
		MonthlyRate:  50,
		PayDay:       20,
		Active:       true,
	})
	require.NoError(t, err)

	_, err = f.invoiceRepo.Create(context.Background(), domain.Invoice{
		ID:             uuid.New(),
		SubscriptionID: orphan.ID,
		Code:           "F-00002",
		PeriodLabel:    "Noviembre 2025",
		DueDate:        time.Date(2025, time.November, 20, 0, 0, 0, 0, time.UTC),
		AmountTotal:    50,
		Status:         domain.InvoiceStatusPending,
	})
	require.NoError(t, err)

	healthy := f.seedSubscription(t, 20)

	summary := f.engine.RunTick(context.Background())

	assert.Equal(t, 1, summary.StepErrors)
	assert.Equal(t, 2, summary.InvoicesGenerated) // ambas facturan diciembre

	history, err := f.invoiceRepo.ListBySubscription(context.Background(), healthy.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
