package billing

import (
	"math"

	"github.com/alberthdev/fnet-billing/internal/domain"
)

// Application un abono planificado sobre una factura existente
type Application struct {
	Invoice domain.Invoice
	Amount  float64
}

// AllocationPlan resultado del reparto de un pago.
// FutureMonths indica cuántas facturas de adelanto hay que generar y
// marcar pagadas. Remainder es el sobrante que no alcanza para otro mes
// completo: se informa, nunca se aplica en parte.
type AllocationPlan struct {
	Applications []Application
	FutureMonths int
	Remainder    float64
	Proportional bool
}

// Allocator reparte un pago entre las facturas pendientes de una suscripción
type Allocator struct{}

// NewAllocator crea un nuevo repartidor de pagos
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Plan reparte el monto recibido sobre las facturas pendientes, de la más
// antigua a la más reciente.
//
// Con tarifa mensual conocida el reparto es por meses completos: cada
// factura pendiente recibe una unidad de la tarifa (una unidad completa
// salda también una factura con abono parcial previo), y los meses que
// sobren tras limpiar lo pendiente se convierten en facturas de adelanto.
// El sobrante menor a una tarifa se informa en Remainder.
//
// Sin tarifa conocida (rate <= 0) se reparte proporcionalmente al saldo
// de cada factura pendiente, sin generar adelantos.
func (a *Allocator) Plan(amount, rate float64, outstanding []domain.Invoice) AllocationPlan {
	if amount <= 0 {
		return AllocationPlan{}
	}

	if rate <= 0 {
		return a.planProportional(amount, outstanding)
	}

	months := int(math.Floor(amount/rate + 1e-9))
	remainder := amount - float64(months)*rate
	if remainder < 1e-9 {
		remainder = 0
	}

	plan := AllocationPlan{Remainder: remainder}
	for _, inv := range outstanding {
		if months == 0 {
			break
		}
		plan.Applications = append(plan.Applications, Application{Invoice: inv, Amount: rate})
		months--
	}
	plan.FutureMonths = months

	return plan
}

// planProportional reparte el monto según el saldo de cada factura pendiente
func (a *Allocator) planProportional(amount float64, outstanding []domain.Invoice) AllocationPlan {
	total := 0.0
	for _, inv := range outstanding {
		total += inv.Outstanding()
	}

	if total <= 0 {
		// Nada pendiente y sin tarifa: no hay dónde aplicar el pago
		return AllocationPlan{Remainder: amount, Proportional: true}
	}

	plan := AllocationPlan{Proportional: true}
	for _, inv := range outstanding {
		share := amount * inv.Outstanding() / total
		if share <= 0 {
			continue
		}
		plan.Applications = append(plan.Applications, Application{Invoice: inv, Amount: share})
	}

	return plan
}
