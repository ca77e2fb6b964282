package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alberthdev/fnet-billing/internal/domain"
)

func TestEscalateQueuesReminderOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251860", "+51987654321", false, 20)
	f.seedInvoice(t, sub, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)

	now := testDate(2025, time.December, 1)

	result, err := f.collection.Escalate(ctx, sub, now)
	require.NoError(t, err)
	assert.True(t, result.ReminderQueued)
	assert.False(t, result.Suspended)

	// La segunda vuelta no encola otro recordatorio
	result, err = f.collection.Escalate(ctx, sub, now)
	require.NoError(t, err)
	assert.False(t, result.ReminderQueued)

	tasks, err := f.notifications.ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.NotificationKindReminder, tasks[0].Kind)
	assert.Equal(t, domain.NotificationStatusPending, tasks[0].Status)
}

func TestEscalateWithoutPhoneRaisesAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251861", "", false, 20)
	f.seedInvoice(t, sub, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)

	result, err := f.collection.Escalate(ctx, sub, testDate(2025, time.December, 1))
	require.NoError(t, err)
	assert.False(t, result.ReminderQueued)
	assert.True(t, result.NoContact)
	assert.True(t, result.AlertRaised)

	tasks, err := f.notifications.ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.NotificationStatusNoContact, tasks[0].Status)

	alerts, err := f.alerts.ListUnread(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertKindMissingContact, alerts[0].Kind)

	// Repetir no duplica ni el aviso ni la alerta
	result, err = f.collection.Escalate(ctx, sub, testDate(2025, time.December, 2))
	require.NoError(t, err)
	assert.False(t, result.NoContact)

	count, err := f.alerts.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReminderDeliveryChainsUltimatum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251862", "+51987654321", false, 20)
	f.seedInvoice(t, sub, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)

	now := testDate(2025, time.December, 1)
	_, err := f.collection.Escalate(ctx, sub, now)
	require.NoError(t, err)

	summary, err := f.collection.DrainNotifications(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Chained)

	tasks, err := f.notifications.ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	var reminder, ultimatum domain.NotificationTask
	for _, task := range tasks {
		if task.Kind == domain.NotificationKindReminder {
			reminder = task
		} else {
			ultimatum = task
		}
	}
	assert.Equal(t, domain.NotificationStatusSent, reminder.Status)
	require.NotNil(t, reminder.SentAt)

	assert.Equal(t, domain.NotificationKindUltimatum, ultimatum.Kind)
	assert.Equal(t, domain.NotificationStatusPending, ultimatum.Status)
	// El ultimátum espera 48 horas tras la entrega del recordatorio
	assert.Equal(t, now.Add(48*time.Hour), ultimatum.ScheduledFor)
	// y anuncia el corte al vencer los días de gracia: 20/11 + 21 días
	assert.Contains(t, ultimatum.Message, "11/12/2025")

	// Antes de su hora el ultimátum no sale
	again, err := f.collection.DrainNotifications(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, again.Sent)
}

func TestSuspensionRequiresDeliveredUltimatum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251863", "+51987654321", false, 20)
	f.seedInvoice(t, sub, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)

	day1 := testDate(2025, time.December, 1)
	_, err := f.collection.Escalate(ctx, sub, day1)
	require.NoError(t, err)
	_, err = f.collection.DrainNotifications(ctx, day1)
	require.NoError(t, err)

	// Deuda más vieja que los días de gracia, pero el ultimátum sigue en cola
	day2 := testDate(2025, time.December, 15)
	result, err := f.collection.Escalate(ctx, sub, day2)
	require.NoError(t, err)
	assert.False(t, result.Suspended)
	assert.False(t, f.router.IsSuspended(sub.ClientIP))

	// Entregado el ultimátum, la siguiente vuelta ejecuta el corte
	_, err = f.collection.DrainNotifications(ctx, day2)
	require.NoError(t, err)

	result, err = f.collection.Escalate(ctx, sub, day2)
	require.NoError(t, err)
	assert.True(t, result.Suspended)
	assert.True(t, f.router.IsSuspended(sub.ClientIP))

	stored, err := f.subscriptions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestSuspensionHonorsRouterToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.settings.Set(ctx, SettingRouterEnabled, "false"))

	sub := f.seedSubscription(t, "40251864", "+51987654321", false, 20)
	f.seedInvoice(t, sub, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)

	day1 := testDate(2025, time.December, 1)
	_, err := f.collection.Escalate(ctx, sub, day1)
	require.NoError(t, err)
	_, err = f.collection.DrainNotifications(ctx, day1)
	require.NoError(t, err)

	day2 := testDate(2025, time.December, 20)
	_, err = f.collection.DrainNotifications(ctx, day2)
	require.NoError(t, err)

	result, err := f.collection.Escalate(ctx, sub, day2)
	require.NoError(t, err)
	assert.False(t, result.Suspended)

	stored, err := f.subscriptions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)
}

func TestSuspensionWithoutClientIPRaisesAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	customer, err := f.customers.Create(ctx, domain.Customer{
		DNI:       "40251865",
		FirstName: "Elena",
		LastName:  "Huamán",
		Phone:     "+51911223344",
		Active:    true,
	})
	require.NoError(t, err)

	sub, err := f.subscriptions.Create(ctx, domain.Subscription{
		ID:           uuid.New(),
		CustomerID:   customer.ID,
		ContractCode: "FN-40251865",
		MonthlyRate:  50,
		PayDay:       20,
		Active:       true,
	})
	require.NoError(t, err)

	f.seedInvoice(t, sub, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)

	day1 := testDate(2025, time.December, 1)
	_, err = f.collection.Escalate(ctx, sub, day1)
	require.NoError(t, err)
	_, err = f.collection.DrainNotifications(ctx, day1)
	require.NoError(t, err)

	day2 := testDate(2025, time.December, 15)
	_, err = f.collection.DrainNotifications(ctx, day2)
	require.NoError(t, err)

	result, err := f.collection.Escalate(ctx, sub, day2)
	require.NoError(t, err)
	assert.False(t, result.Suspended)
	assert.True(t, result.AlertRaised)

	alerts, err := f.alerts.ListUnread(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	assert.Equal(t, domain.AlertKindSuspensionFailed, alerts[len(alerts)-1].Kind)
}

func TestOnBalanceClearedReconnectsAndCancelsNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251866", "+51987654321", false, 20)

	// Suscripción cortada con un ultimátum todavía en cola
	require.NoError(t, f.router.Suspend(ctx, sub.ClientIP))
	require.NoError(t, f.subscriptions.SetActive(ctx, sub.ID, false))

	_, err := f.notifications.Create(ctx, domain.NotificationTask{
		SubscriptionID: sub.ID,
		Kind:           domain.NotificationKindUltimatum,
		Phone:          "+51987654321",
		ScheduledFor:   testDate(2025, time.December, 17),
		Status:         domain.NotificationStatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, f.collection.OnBalanceCleared(ctx, sub.ID, testDate(2025, time.December, 16)))

	stored, err := f.subscriptions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)
	assert.False(t, f.router.IsSuspended(sub.ClientIP))

	tasks, err := f.notifications.ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestFullPaymentTriggersReconnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251867", "+51987654321", false, 20)
	inv := f.seedInvoice(t, sub, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)

	require.NoError(t, f.router.Suspend(ctx, sub.ClientIP))
	require.NoError(t, f.subscriptions.SetActive(ctx, sub.ID, false))

	summary, err := f.payments.RegisterPayment(ctx, sub.ID, 50, domain.PaymentMethodYape, testDate(2025, time.December, 16))
	require.NoError(t, err)
	assert.True(t, summary.BalanceCleared)

	stored, err := f.invoiceRepo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, stored.Status)

	reactivated, err := f.subscriptions.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, reactivated.Active)
	assert.False(t, f.router.IsSuspended(sub.ClientIP))
}

func TestDrainHeldBeforeActivationDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.settings.Set(ctx, SettingNotifyActivationDate, "2030-01-01"))

	sub := f.seedSubscription(t, "40251868", "+51987654321", false, 20)
	f.seedInvoice(t, sub, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)

	now := testDate(2025, time.December, 1)
	_, err := f.collection.Escalate(ctx, sub, now)
	require.NoError(t, err)

	summary, err := f.collection.DrainNotifications(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, summary.Sent)

	tasks, err := f.notifications.ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.NotificationStatusPending, tasks[0].Status)
}

func TestDrainHoldsWhenQuotaExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.settings.Set(ctx, SettingDailyMessageQuota, "1"))

	now := testDate(2025, time.December, 1)
	for _, dni := range []string{"40251869", "40251870"} {
		sub := f.seedSubscription(t, dni, "+51987654321", false, 20)
		f.seedInvoice(t, sub, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)
		_, err := f.collection.Escalate(ctx, sub, now)
		require.NoError(t, err)
	}

	summary, err := f.collection.DrainNotifications(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Held)
}

func TestDeferUltimatum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251871", "+51987654321", false, 20)

	ultimatum, err := f.notifications.Create(ctx, domain.NotificationTask{
		SubscriptionID: sub.ID,
		Kind:           domain.NotificationKindUltimatum,
		Phone:          "+51987654321",
		ScheduledFor:   testDate(2025, time.December, 17),
		Status:         domain.NotificationStatusPending,
	})
	require.NoError(t, err)

	until := testDate(2025, time.December, 24)
	require.NoError(t, f.collection.DeferUltimatum(ctx, ultimatum.ID, until))

	stored, err := f.notifications.GetByID(ctx, ultimatum.ID)
	require.NoError(t, err)
	assert.Equal(t, until, stored.ScheduledFor)

	// Solo se postergan ultimátums pendientes
	reminder, err := f.notifications.Create(ctx, domain.NotificationTask{
		SubscriptionID: sub.ID,
		Kind:           domain.NotificationKindReminder,
		Phone:          "+51987654321",
		ScheduledFor:   testDate(2025, time.December, 17),
		Status:         domain.NotificationStatusPending,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, f.collection.DeferUltimatum(ctx, reminder.ID, until), domain.ErrInvalidInput)

	assert.ErrorIs(t, f.collection.DeferUltimatum(ctx, uuid.New(), until), domain.ErrNotFound)
}

func TestPruneAlertsKeepsUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	read, err := f.alerts.Create(ctx, domain.NewUnmatchedPaymentAlert("40251872", 50, "yape.xlsx"))
	require.NoError(t, err)
	require.NoError(t, f.alerts.MarkRead(ctx, read.ID))

	_, err = f.alerts.Create(ctx, domain.NewUnmatchedPaymentAlert("40251873", 80, "yape.xlsx"))
	require.NoError(t, err)

	removed, err := f.collection.PruneAlerts(ctx, time.Now().AddDate(0, 0, 40))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := f.alerts.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEscalateOrphanSubscriptionReportsMissingCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Contrato sin titular registrado
	orphan, err := f.subscriptions.Create(ctx, domain.Subscription{
		ID:           uuid.New(),
		CustomerID:   uuid.New(),
		ContractCode: "FN-40251874",
		MonthlyRate:  50,
		PayDay:       20,
		Active:       true,
		ClientIP:     "10.20.0.9",
	})
	require.NoError(t, err)
	f.seedInvoice(t, orphan, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)

	_, err = f.collection.Escalate(ctx, orphan, testDate(2025, time.December, 1))
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}
