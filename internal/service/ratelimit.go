package service

import (
	"sync"
	"time"
)

// DailyQuota limita la cantidad de mensajes salientes por día calendario.
// El reloj se inyecta para poder probar el cambio de día; el contador se
// reinicia solo cuando la fecha del reloj avanza.
type DailyQuota struct {
	limit func() int
	now   func() time.Time

	mutex sync.Mutex
	day   time.Time
	sent  int
}

// NewDailyQuota crea el limitador. limit se consulta en cada intento,
// así el tope puede cambiar en caliente sin reiniciar.
func NewDailyQuota(limit func() int, now func() time.Time) *DailyQuota {
	if now == nil {
		now = time.Now
	}
	return &DailyQuota{
		limit: limit,
		now:   now,
	}
}

// Allow consume una unidad del cupo del día si queda disponible
func (q *DailyQuota) Allow() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.rollover()

	if q.sent >= q.limit() {
		return false
	}

	q.sent++
	return true
}

// Remaining devuelve el cupo restante del día
func (q *DailyQuota) Remaining() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.rollover()

	remaining := q.limit() - q.sent
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (q *DailyQuota) rollover() {
	// El día se corta en la zona horaria del reloj, no en UTC: para una
	// operación en Lima el cupo se reinicia a su medianoche local
	current := q.now()
	year, month, day := current.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, current.Location())
	if !today.Equal(q.day) {
		q.day = today
		q.sent = 0
	}
}
