package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

func newSettings() SettingsService {
	log := logger.NewWithOutput(logger.ERROR, io.Discard)
	return NewSettingsService(repository.NewInMemorySettingsRepository(log), log)
}

func TestSettingsDefaults(t *testing.T) {
	ctx := context.Background()
	settings := newSettings()

	assert.Equal(t, 21, settings.GraceDays(ctx))
	assert.Equal(t, 0, settings.ReminderOffsetDays(ctx))
	assert.Equal(t, 16, settings.LabelCutoverDay(ctx))
	assert.Equal(t, 200, settings.DailyMessageQuota(ctx))
	assert.False(t, settings.WhatsAppEnabled(ctx))
	assert.False(t, settings.RouterEnabled(ctx))
	assert.Equal(t, time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC), settings.NotifyActivationDate(ctx))

	_, ok := settings.Watermark(ctx)
	assert.False(t, ok)
}

func TestSettingsHotReload(t *testing.T) {
	ctx := context.Background()
	settings := newSettings()

	require.NoError(t, settings.Set(ctx, SettingPaymentGraceDays, "15"))
	assert.Equal(t, 15, settings.GraceDays(ctx))

	// Cada lectura vuelve al repositorio; no hay caché que invalidar
	require.NoError(t, settings.Set(ctx, SettingPaymentGraceDays, "30"))
	assert.Equal(t, 30, settings.GraceDays(ctx))
}

func TestSettingsBooleanSpellings(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		raw  string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"si", true},
		{"SI", true},
		{"0", false},
		{"no", false},
		{"NO", false},
		{"false", false},
		{"FALSE", false},
		{"cualquiera", false}, // valor inválido vuelve al por defecto
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			settings := newSettings()
			require.NoError(t, settings.Set(ctx, SettingWhatsAppEnabled, tc.raw))
			assert.Equal(t, tc.want, settings.WhatsAppEnabled(ctx))
		})
	}
}

func TestSettingsInvalidIntFallsBack(t *testing.T) {
	ctx := context.Background()
	settings := newSettings()

	require.NoError(t, settings.Set(ctx, SettingDailyMessageQuota, "muchos"))
	assert.Equal(t, 200, settings.DailyMessageQuota(ctx))
}

func TestSettingsWatermarkRoundTrip(t *testing.T) {
	ctx := context.Background()
	settings := newSettings()

	mark := time.Date(2025, time.December, 16, 14, 30, 0, 0, time.UTC)
	require.NoError(t, settings.SetWatermark(ctx, mark))

	got, ok := settings.Watermark(ctx)
	require.True(t, ok)
	assert.True(t, got.Equal(mark))
}
