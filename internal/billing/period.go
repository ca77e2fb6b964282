// Package billing contiene el cálculo puro de períodos de facturación
// y el reparto de pagos. No toca almacenamiento ni servicios externos.
package billing

import (
	"fmt"
	"time"

	"github.com/alberthdev/fnet-billing/internal/domain"
)

// PeriodOutcome resultado del cálculo del siguiente período
type PeriodOutcome string

const (
	// PeriodDue corresponde emitir la factura del período calculado
	PeriodDue PeriodOutcome = "DUE"
	// PeriodNotYetDue todavía no llega el día de pago
	PeriodNotYetDue PeriodOutcome = "NOT_YET_DUE"
	// PeriodAlreadyCurrent la suscripción ya está al día
	PeriodAlreadyCurrent PeriodOutcome = "ALREADY_CURRENT"
)

// Period un período de facturación materializado
type Period struct {
	Label   string
	Start   time.Time
	End     time.Time
	DueDate time.Time
}

// PeriodResult resultado del calculador: o bien un período facturable
// o el motivo explícito por el que no corresponde emitir
type PeriodResult struct {
	Outcome PeriodOutcome
	Period  Period
}

// DefaultLabelCutoverDay día de corte para decidir qué mes nombra el período
const DefaultLabelCutoverDay = 16

var spanishMonths = [12]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthLabel devuelve la etiqueta "Mes Año" en español, p. ej. "Diciembre 2025"
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", spanishMonths[t.Month()-1], t.Year())
}

// Calculator calcula el siguiente período facturable de una suscripción.
// CutoverDay decide qué mes da nombre al período: con día de pago menor o
// igual al corte el período lleva el mes en que empieza; pasado el corte,
// la mayoría de los días caen en el mes siguiente y el período lleva ese.
type Calculator struct {
	CutoverDay int
}

// NewCalculator crea un calculador con el día de corte dado.
// Con cero usa DefaultLabelCutoverDay.
func NewCalculator(cutoverDay int) *Calculator {
	if cutoverDay <= 0 {
		cutoverDay = DefaultLabelCutoverDay
	}
	return &Calculator{CutoverDay: cutoverDay}
}

// clampDay devuelve la fecha con el día ajustado al largo del mes
func clampDay(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// addMonths avanza n meses manteniendo el día, ajustado al largo del mes destino
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	return clampDay(year, month+time.Month(n), day)
}

// yearMonth índice comparable año*12+mes
func yearMonth(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// label elige el mes que nombra el período según el día de corte
func (c *Calculator) label(p Period, payDay int) string {
	if payDay <= c.CutoverDay {
		return MonthLabel(p.Start)
	}
	return MonthLabel(p.End)
}

// build arma el período que vence en dueDate: cubre el mes que termina ahí
func (c *Calculator) build(dueDate time.Time, payDay int) Period {
	p := Period{
		Start:   addMonths(dueDate, -1),
		End:     dueDate,
		DueDate: dueDate,
	}
	p.Label = c.label(p, payDay)
	return p
}

// Next calcula el siguiente período facturable de la suscripción.
// latest es la última factura vigente, o nil si nunca se facturó.
// today es el reloj inyectado; solo importa la fecha.
//
// Reglas:
//   - Primera factura: prepago vence el día de pago del mes siguiente,
//     pospago el día de pago del mes en curso.
//   - Siguientes: el período continúa un mes después del último vencimiento,
//     sin huecos, recién cuando hoy alcanzó el día de pago.
//   - Nunca se factura más de un mes por delante del mes en curso.
func (c *Calculator) Next(sub domain.Subscription, latest *domain.Invoice, today time.Time) PeriodResult {
	payDay := sub.PayDay
	if payDay < 1 || payDay > 31 {
		payDay = today.Day()
	}

	if latest == nil {
		var due time.Time
		if sub.Prepaid {
			due = clampDay(today.Year(), today.Month()+1, payDay)
		} else {
			due = clampDay(today.Year(), today.Month(), payDay)
		}
		return PeriodResult{Outcome: PeriodDue, Period: c.build(due, payDay)}
	}

	// Ya existe factura previa: la siguiente vence un mes después
	due := addMonths(latest.DueDate, 1)

	lastYM := yearMonth(latest.DueDate)
	nowYM := yearMonth(today)

	if lastYM >= nowYM {
		if sub.Prepaid {
			// Prepago puede llevar una factura de adelanto; más de eso es estar al día
			if lastYM >= nowYM+1 {
				return PeriodResult{Outcome: PeriodAlreadyCurrent}
			}
		} else {
			return PeriodResult{Outcome: PeriodAlreadyCurrent}
		}
	}

	if today.Day() < payDay {
		return PeriodResult{Outcome: PeriodNotYetDue}
	}

	if yearMonth(due) > nowYM+1 {
		return PeriodResult{Outcome: PeriodAlreadyCurrent}
	}

	return PeriodResult{Outcome: PeriodDue, Period: c.build(due, payDay)}
}

// Following devuelve el período inmediatamente posterior a la factura dada,
// sin aplicar las reglas de fecha. Lo usa el reparto de pagos para generar
// facturas de meses adelantados.
func (c *Calculator) Following(sub domain.Subscription, latest domain.Invoice) Period {
	payDay := sub.PayDay
	if payDay < 1 || payDay > 31 {
		payDay = latest.DueDate.Day()
	}
	return c.build(addMonths(latest.DueDate, 1), payDay)
}
