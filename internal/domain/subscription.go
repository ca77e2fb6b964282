package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer representa al titular de uno o más contratos de servicio
type Customer struct {
	ID           uuid.UUID `json:"id"`
	DNI          string    `json:"dni"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Address      string    `json:"address,omitempty"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
}

// FullName devuelve nombre y apellidos concatenados
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// HasPhone indica si el cliente tiene un número de contacto registrado
func (c Customer) HasPhone() bool {
	return c.Phone != ""
}

// ServicePlan representa un plan de internet con su mensualidad
type ServicePlan struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	MonthlyRate float64   `json:"monthly_rate"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Subscription representa un contrato de servicio de un cliente.
// Prepaid=true factura el mes por adelantado; false cobra el mes vencido.
type Subscription struct {
	ID             uuid.UUID `json:"id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	PlanID         uuid.UUID `json:"plan_id"`
	ContractCode   string    `json:"contract_code"`
	MonthlyRate    float64   `json:"monthly_rate"`
	Prepaid        bool      `json:"prepaid"`
	PayDay         int       `json:"pay_day"`
	Active         bool      `json:"active"`
	ClientIP       string    `json:"client_ip,omitempty"`
	InstallAddress string    `json:"install_address,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasClientIP indica si el contrato tiene IP asignada para cortes de servicio
func (s Subscription) HasClientIP() bool {
	return s.ClientIP != ""
}
