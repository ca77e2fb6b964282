package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyQuotaExhaustsAndResets(t *testing.T) {
	current := time.Date(2025, time.December, 1, 10, 0, 0, 0, time.UTC)
	quota := NewDailyQuota(func() int { return 2 }, func() time.Time { return current })

	assert.True(t, quota.Allow())
	assert.True(t, quota.Allow())
	assert.False(t, quota.Allow())
	assert.Equal(t, 0, quota.Remaining())

	// El mismo día no libera cupo aunque pasen horas
	current = current.Add(6 * time.Hour)
	assert.False(t, quota.Allow())

	// El día siguiente reinicia el contador
	current = current.Add(24 * time.Hour)
	assert.Equal(t, 2, quota.Remaining())
	assert.True(t, quota.Allow())
	assert.Equal(t, 1, quota.Remaining())
}

func TestDailyQuotaRollsOverAtLocalMidnight(t *testing.T) {
	lima := time.FixedZone("America/Lima", -5*3600)
	current := time.Date(2025, time.December, 1, 18, 0, 0, 0, lima)
	quota := NewDailyQuota(func() int { return 1 }, func() time.Time { return current })

	assert.True(t, quota.Allow())
	assert.False(t, quota.Allow())

	// Las 19:00 en Lima son medianoche UTC; el cupo local sigue agotado
	current = time.Date(2025, time.December, 1, 19, 30, 0, 0, lima)
	assert.False(t, quota.Allow())
	assert.Equal(t, 0, quota.Remaining())

	// Recién la medianoche de Lima libera el cupo
	current = time.Date(2025, time.December, 2, 0, 5, 0, 0, lima)
	assert.Equal(t, 1, quota.Remaining())
	assert.True(t, quota.Allow())
}

func TestDailyQuotaLimitChangesLive(t *testing.T) {
	limit := 1
	current := time.Date(2025, time.December, 1, 10, 0, 0, 0, time.UTC)
	quota := NewDailyQuota(func() int { return limit }, func() time.Time { return current })

	assert.True(t, quota.Allow())
	assert.False(t, quota.Allow())

	// Subir el tope en caliente habilita envíos sin esperar al día siguiente
	limit = 3
	assert.True(t, quota.Allow())
	assert.Equal(t, 1, quota.Remaining())
}

func TestDailyQuotaZeroLimitBlocksAll(t *testing.T) {
	current := time.Date(2025, time.December, 1, 10, 0, 0, 0, time.UTC)
	quota := NewDailyQuota(func() int { return 0 }, func() time.Time { return current })

	assert.False(t, quota.Allow())
	assert.Equal(t, 0, quota.Remaining())
}
