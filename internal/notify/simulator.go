package notify

import (
	"context"
	"sync"

	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// SimulatedMessenger mensajería simulada: registra el envío y lo da por
// entregado. Sirve para entornos sin API de WhatsApp configurada.
type SimulatedMessenger struct {
	log *logger.Logger
}

// NewSimulatedMessenger crea una mensajería simulada
func NewSimulatedMessenger(log *logger.Logger) *SimulatedMessenger {
	return &SimulatedMessenger{log: log}
}

// Send registra el mensaje como entregado
func (m *SimulatedMessenger) Send(ctx context.Context, phone, message string) error {
	m.log.Infow("Simulated message delivery", "phone", phone, "length", len(message))
	return nil
}

// Configured el simulador siempre está listo
func (m *SimulatedMessenger) Configured() bool {
	return true
}

// SimulatedRouter control de red simulado: mantiene en memoria el conjunto
// de direcciones suspendidas
type SimulatedRouter struct {
	suspended map[string]bool
	mutex     sync.Mutex
	log       *logger.Logger
}

// NewSimulatedRouter crea un control de red simulado
func NewSimulatedRouter(log *logger.Logger) *SimulatedRouter {
	return &SimulatedRouter{
		suspended: make(map[string]bool),
		log:       log,
	}
}

// Suspend marca la dirección como suspendida
func (r *SimulatedRouter) Suspend(ctx context.Context, address string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.suspended[address] = true
	r.log.Infow("Simulated suspension", "address", address)
	return nil
}

// Restore levanta la suspensión de la dirección
func (r *SimulatedRouter) Restore(ctx context.Context, address string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.suspended, address)
	r.log.Infow("Simulated restore", "address", address)
	return nil
}

// IsSuspended indica si la dirección figura como suspendida
func (r *SimulatedRouter) IsSuspended(address string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.suspended[address]
}
