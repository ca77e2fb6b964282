package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alberthdev/fnet-billing/internal/domain"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func testSubscription(prepaid bool, payDay int) domain.Subscription {
	return domain.Subscription{
		ID:          uuid.New(),
		MonthlyRate: 50,
		Prepaid:     prepaid,
		PayDay:      payDay,
		Active:      true,
	}
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "Diciembre 2025", MonthLabel(date(2025, time.December, 5)))
	assert.Equal(t, "Enero 2026", MonthLabel(date(2026, time.January, 31)))
	assert.Equal(t, "Septiembre 2026", MonthLabel(date(2026, time.September, 1)))
}

func TestNextFirstInvoice(t *testing.T) {
	calc := NewCalculator(0)

	tests := []struct {
		name    string
		prepaid bool
		payDay  int
		today   time.Time
		wantDue time.Time
	}{
		{
			name:    "postpaid due this month",
			prepaid: false,
			payDay:  20,
			today:   date(2025, time.December, 5),
			wantDue: date(2025, time.December, 20),
		},
		{
			name:    "prepaid due next month",
			prepaid: true,
			payDay:  20,
			today:   date(2025, time.December, 5),
			wantDue: date(2026, time.January, 20),
		},
		{
			name:    "postpaid pay day clamped to month length",
			prepaid: false,
			payDay:  31,
			today:   date(2026, time.February, 10),
			wantDue: date(2026, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := testSubscription(tt.prepaid, tt.payDay)
			result := calc.Next(sub, nil, tt.today)

			require.Equal(t, PeriodDue, result.Outcome)
			assert.Equal(t, tt.wantDue, result.Period.DueDate)
			assert.Equal(t, tt.wantDue, result.Period.End)
			assert.Equal(t, tt.wantDue.AddDate(0, -1, 0), result.Period.Start)
		})
	}
}

func TestNextLabelNamesMajorityMonth(t *testing.T) {
	calc := NewCalculator(0)

	// El período de diciembre se llama igual en las dos modalidades:
	// el prepago lo factura en noviembre y el pospago en diciembre.
	prepaid := testSubscription(true, 20)
	result := calc.Next(prepaid, nil, date(2025, time.November, 25))
	require.Equal(t, PeriodDue, result.Outcome)
	assert.Equal(t, "Diciembre 2025", result.Period.Label)

	postpaid := testSubscription(false, 20)
	result = calc.Next(postpaid, nil, date(2025, time.December, 5))
	require.Equal(t, PeriodDue, result.Outcome)
	assert.Equal(t, "Diciembre 2025", result.Period.Label)
}

func TestLabelCutoverBoundary(t *testing.T) {
	calc := NewCalculator(DefaultLabelCutoverDay)

	// Día de pago en el corte: el período lleva el mes en que empieza
	onCutover := calc.build(date(2026, time.January, 16), 16)
	assert.Equal(t, "Diciembre 2025", onCutover.Label)

	// Un día después del corte: la mayoría de los días cae en el mes siguiente
	pastCutover := calc.build(date(2026, time.January, 17), 17)
	assert.Equal(t, "Enero 2026", pastCutover.Label)
}

func TestLabelCutoverConfigurable(t *testing.T) {
	calc := NewCalculator(10)

	period := calc.build(date(2026, time.January, 12), 12)
	assert.Equal(t, "Enero 2026", period.Label)

	period = calc.build(date(2026, time.January, 10), 10)
	assert.Equal(t, "Diciembre 2025", period.Label)
}

func TestNextContinuation(t *testing.T) {
	calc := NewCalculator(0)
	sub := testSubscription(false, 20)

	latest := &domain.Invoice{
		SubscriptionID: sub.ID,
		DueDate:        date(2025, time.November, 20),
		Status:         domain.InvoiceStatusPaid,
	}

	// Antes del día de pago no corresponde emitir
	result := calc.Next(sub, latest, date(2025, time.December, 10))
	assert.Equal(t, PeriodNotYetDue, result.Outcome)

	// Llegado el día de pago la siguiente vence un mes después de la última
	result = calc.Next(sub, latest, date(2025, time.December, 20))
	require.Equal(t, PeriodDue, result.Outcome)
	assert.Equal(t, date(2025, time.December, 20), result.Period.DueDate)
	assert.Equal(t, "Diciembre 2025", result.Period.Label)
}

func TestNextContinuationClampsShortMonths(t *testing.T) {
	calc := NewCalculator(0)
	sub := testSubscription(false, 30)

	latest := &domain.Invoice{
		SubscriptionID: sub.ID,
		DueDate:        date(2026, time.January, 30),
	}

	result := calc.Next(sub, latest, date(2026, time.March, 30))
	require.Equal(t, PeriodDue, result.Outcome)
	// Siguiente vencimiento: 30 de enero + 1 mes, ajustado al largo de febrero
	assert.Equal(t, date(2026, time.February, 28), result.Period.DueDate)
}

func TestNextAlreadyCurrent(t *testing.T) {
	calc := NewCalculator(0)

	t.Run("postpaid billed this month", func(t *testing.T) {
		sub := testSubscription(false, 20)
		latest := &domain.Invoice{DueDate: date(2025, time.December, 20)}

		result := calc.Next(sub, latest, date(2025, time.December, 28))
		assert.Equal(t, PeriodAlreadyCurrent, result.Outcome)
	})

	t.Run("prepaid allows one advance month", func(t *testing.T) {
		sub := testSubscription(true, 20)
		latest := &domain.Invoice{DueDate: date(2025, time.December, 20)}

		// Con la factura del mes en curso todavía puede emitir el adelanto
		result := calc.Next(sub, latest, date(2025, time.December, 28))
		require.Equal(t, PeriodDue, result.Outcome)
		assert.Equal(t, date(2026, time.January, 20), result.Period.DueDate)

		// Con el adelanto ya emitido está al día
		latest = &domain.Invoice{DueDate: date(2026, time.January, 20)}
		result = calc.Next(sub, latest, date(2025, time.December, 28))
		assert.Equal(t, PeriodAlreadyCurrent, result.Outcome)
	})
}

func TestNextRepeatSameClock(t *testing.T) {
	calc := NewCalculator(0)
	sub := testSubscription(false, 20)
	today := date(2025, time.December, 20)

	first := calc.Next(sub, nil, today)
	require.Equal(t, PeriodDue, first.Outcome)

	// Con la factura recién emitida como última, la misma vuelta no emite otra
	issued := domain.Invoice{
		SubscriptionID: sub.ID,
		DueDate:        first.Period.DueDate,
		Status:         domain.InvoiceStatusPending,
	}
	second := calc.Next(sub, &issued, today)
	assert.Equal(t, PeriodAlreadyCurrent, second.Outcome)
}

func TestFollowing(t *testing.T) {
	calc := NewCalculator(0)
	sub := testSubscription(true, 20)

	latest := domain.Invoice{DueDate: date(2026, time.January, 20)}

	period := calc.Following(sub, latest)
	assert.Equal(t, date(2026, time.February, 20), period.DueDate)
	assert.Equal(t, date(2026, time.January, 20), period.Start)
	assert.Equal(t, "Febrero 2026", period.Label)
}
