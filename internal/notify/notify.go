// Package notify define los colaboradores externos de mensajería y de
// control de red, con implementaciones reales e intercambiables por
// simuladores. La elección se hace al construir, no en la lógica de negocio.
package notify

import "context"

// Messenger transporte de mensajes salientes al abonado
type Messenger interface {
	// Send entrega el mensaje al destino. Un error significa no entregado.
	Send(ctx context.Context, phone, message string) error
	// Configured indica si el transporte tiene credenciales utilizables
	Configured() bool
}

// RouterControl corte y reposición del servicio en el equipo de red
type RouterControl interface {
	Suspend(ctx context.Context, address string) error
	Restore(ctx context.Context, address string) error
}
