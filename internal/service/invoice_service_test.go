package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alberthdev/fnet-billing/internal/billing"
	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/internal/repository"
)

func TestEnsurePeriodInvoicedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251839", "+51987654321", false, 20)
	now := testDate(2025, time.December, 20)

	first, err := f.invoices.EnsurePeriodInvoiced(ctx, sub, now)
	require.NoError(t, err)
	require.True(t, first.Created)
	assert.Equal(t, billing.PeriodDue, first.Outcome)
	assert.Equal(t, "Diciembre 2025", first.Invoice.PeriodLabel)
	assert.Equal(t, 50.0, first.Invoice.AmountTotal)
	assert.Equal(t, domain.InvoiceStatusPending, first.Invoice.Status)

	// Repetir con el mismo reloj no emite una segunda factura
	second, err := f.invoices.EnsurePeriodInvoiced(ctx, sub, now)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, billing.PeriodAlreadyCurrent, second.Outcome)

	history, err := f.invoices.History(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestEnsurePeriodInvoicedRespectsPayDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251840", "+51987654321", false, 20)

	_, err := f.invoices.EnsurePeriodInvoiced(ctx, sub, testDate(2025, time.December, 20))
	require.NoError(t, err)

	// El siguiente período no se emite antes del día de pago
	result, err := f.invoices.EnsurePeriodInvoiced(ctx, sub, testDate(2026, time.January, 10))
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, billing.PeriodNotYetDue, result.Outcome)

	result, err = f.invoices.EnsurePeriodInvoiced(ctx, sub, testDate(2026, time.January, 20))
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "Enero 2026", result.Invoice.PeriodLabel)
}

func TestApplyPaymentPartialDoesNotTouchCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251841", "+51987654321", false, 20)
	inv := f.seedInvoice(t, sub, "Diciembre 2025", testDate(2025, time.December, 20), 50, 0)

	now := testDate(2025, time.December, 22)
	updated, err := f.invoices.ApplyPayment(ctx, inv.ID, 20, domain.PaymentMethodCash, "", now)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusPending, updated.Status)
	assert.Equal(t, 20.0, updated.AmountPaid)
	assert.Nil(t, updated.PaidAt)

	// Un abono parcial no genera asiento de caja
	movements, err := f.invoiceRepo.ListRecentMovements(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestApplyPaymentSettlesWithCashMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251842", "+51987654321", false, 20)
	inv := f.seedInvoice(t, sub, "Diciembre 2025", testDate(2025, time.December, 20), 50, 20)

	now := testDate(2025, time.December, 28)
	updated, err := f.invoices.ApplyPayment(ctx, inv.ID, 30, domain.PaymentMethodYape, "", now)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusPaid, updated.Status)
	assert.Equal(t, 50.0, updated.AmountPaid)
	require.NotNil(t, updated.PaidAt)
	assert.Equal(t, now, *updated.PaidAt)

	movements, err := f.invoiceRepo.ListRecentMovements(ctx, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, inv.ID, movements[0].InvoiceID)
	assert.Equal(t, 30.0, movements[0].Amount)
	assert.Equal(t, domain.PaymentMethodYape, movements[0].Method)
	assert.Contains(t, movements[0].Description, inv.Code)

	// Una factura pagada no admite más cobros
	_, err = f.invoices.ApplyPayment(ctx, inv.ID, 10, domain.PaymentMethodCash, "", now)
	assert.ErrorIs(t, err, domain.ErrInvoiceAlreadyPaid)
}

func TestApplyPaymentRejectsVoidInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251843", "+51987654321", false, 20)
	inv := f.seedInvoice(t, sub, "Diciembre 2025", testDate(2025, time.December, 20), 50, 0)

	require.NoError(t, f.invoices.Void(ctx, inv.ID))

	_, err := f.invoices.ApplyPayment(ctx, inv.ID, 50, domain.PaymentMethodCash, "", testDate(2025, time.December, 22))
	assert.ErrorIs(t, err, domain.ErrInvoiceVoid)
}

func TestVoidFreesPeriodForRebilling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251844", "+51987654321", false, 20)
	now := testDate(2025, time.December, 20)

	first, err := f.invoices.EnsurePeriodInvoiced(ctx, sub, now)
	require.NoError(t, err)
	require.True(t, first.Created)

	require.NoError(t, f.invoices.Void(ctx, first.Invoice.ID))

	// Con la factura anulada el mismo período se puede refacturar
	second, err := f.invoices.EnsurePeriodInvoiced(ctx, sub, now)
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.Equal(t, first.Invoice.PeriodLabel, second.Invoice.PeriodLabel)
}

func TestVoidRejectsPaidInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251845", "+51987654321", false, 20)
	inv := f.seedInvoice(t, sub, "Diciembre 2025", testDate(2025, time.December, 20), 50, 0)

	_, err := f.invoices.ApplyPayment(ctx, inv.ID, 50, domain.PaymentMethodCash, "", testDate(2025, time.December, 22))
	require.NoError(t, err)

	err = f.invoices.Void(ctx, inv.ID)
	assert.ErrorIs(t, err, domain.ErrInvoiceAlreadyPaid)
}

func TestOutstandingExcludesSettledAndVoid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251846", "+51987654321", false, 20)
	older := f.seedInvoice(t, sub, "Noviembre 2025", testDate(2025, time.November, 20), 50, 0)
	newer := f.seedInvoice(t, sub, "Diciembre 2025", testDate(2025, time.December, 20), 50, 0)
	voided := f.seedInvoice(t, sub, "Octubre 2025", testDate(2025, time.October, 20), 50, 0)

	require.NoError(t, f.invoices.Void(ctx, voided.ID))
	_, err := f.invoices.ApplyPayment(ctx, newer.ID, 50, domain.PaymentMethodCash, "", testDate(2025, time.December, 22))
	require.NoError(t, err)

	outstanding, err := f.invoices.ListOutstanding(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, older.ID, outstanding[0].ID)
}

func TestInvoiceCodesDeriveFromID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251847", "+51987654321", false, 20)
	now := testDate(2025, time.December, 1)

	seen := make(map[string]bool)
	for _, label := range []string{"Octubre 2025", "Noviembre 2025", "Diciembre 2025"} {
		inv, err := f.invoices.CreateManual(ctx, sub, label, 50, testDate(2025, time.December, 20), false, now)
		require.NoError(t, err)
		assert.Equal(t, "F-"+strings.ToUpper(inv.ID.String()[:8]), inv.Code)
		assert.False(t, seen[inv.Code], "código repetido: %s", inv.Code)
		seen[inv.Code] = true
	}
}

func TestEnsurePeriodInvoicedPublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251848", "+51987654321", false, 20)
	now := testDate(2025, time.December, 20)

	result, err := f.invoices.EnsurePeriodInvoiced(ctx, sub, now)
	require.NoError(t, err)
	require.True(t, result.Created)

	require.Len(t, f.producer.invoiceEvents, 1)
	event := f.producer.invoiceEvents[0]
	assert.Equal(t, sub.ID.String(), event.SubscriptionID)
	assert.Equal(t, result.Invoice.ID.String(), event.InvoiceID)
	assert.Equal(t, result.Invoice.Code, event.Code)
	assert.Equal(t, "Diciembre 2025", event.PeriodLabel)
	assert.Equal(t, 50.0, event.Amount)

	// Repetir la llamada no emite ni publica
	_, err = f.invoices.EnsurePeriodInvoiced(ctx, sub, now)
	require.NoError(t, err)
	assert.Len(t, f.producer.invoiceEvents, 1)
}

func TestCreateAdvancePaidSettlesWithCashMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251849", "+51987654321", false, 20)
	now := testDate(2025, time.December, 28)
	period := billing.Period{
		Label:   "Enero 2026",
		Start:   testDate(2025, time.December, 20),
		End:     testDate(2026, time.January, 20),
		DueDate: testDate(2026, time.January, 20),
	}

	created, err := f.invoices.CreateAdvancePaid(ctx, sub, period, domain.PaymentMethodYape, now)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusPaid, created.Status)
	assert.Equal(t, 50.0, created.AmountPaid)
	require.NotNil(t, created.PaidAt)

	// El adelanto lleva su asiento de caja, igual que cualquier cobro
	movements, err := f.invoiceRepo.ListRecentMovements(ctx, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, created.ID, movements[0].InvoiceID)
	assert.Equal(t, 50.0, movements[0].Amount)
	assert.Contains(t, movements[0].Description, "Adelanto")
}

func TestCreateAdvancePaidRequiresMonthlyRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251853", "+51987654321", false, 20)
	sub.MonthlyRate = 0

	_, err := f.invoices.CreateAdvancePaid(ctx, sub, billing.Period{Label: "Enero 2026"}, domain.PaymentMethodCash, testDate(2025, time.December, 28))
	assert.ErrorIs(t, err, domain.ErrNoMonthlyRate)
}

// settleFailingInvoiceRepo simula una caída justo antes de liquidar
type settleFailingInvoiceRepo struct {
	repository.InvoiceRepository
}

func (r *settleFailingInvoiceRepo) SettleWithMovement(ctx context.Context, inv domain.Invoice, mv domain.CashMovement) error {
	return errors.New("connection reset")
}

func TestCreateAdvancePaidInterruptedSettleLeavesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.seedSubscription(t, "40251854", "+51987654321", false, 20)

	failing := &settleFailingInvoiceRepo{InvoiceRepository: f.invoiceRepo}
	invoices := NewInvoiceService(failing, f.settings, nil, testLogger())

	period := billing.Period{
		Label:   "Enero 2026",
		Start:   testDate(2025, time.December, 20),
		End:     testDate(2026, time.January, 20),
		DueDate: testDate(2026, time.January, 20),
	}

	_, err := invoices.CreateAdvancePaid(ctx, sub, period, domain.PaymentMethodYape, testDate(2025, time.December, 28))
	require.Error(t, err)

	// La factura quedó pendiente, nunca pagada sin su movimiento de caja
	history, err := f.invoiceRepo.ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.InvoiceStatusPending, history[0].Status)
	assert.Nil(t, history[0].PaidAt)

	movements, err := f.invoiceRepo.ListRecentMovements(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, movements)
}
