package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// Claves de los ajustes de ejecución. Todas son modificables en caliente:
// el motor las relee en cada vuelta.
const (
	SettingPaymentGraceDays     = "payment_grace_days"
	SettingReminderOffsetDays   = "reminder_offset_days"
	SettingWhatsAppEnabled      = "whatsapp_enabled"
	SettingRouterEnabled        = "router_enabled"
	SettingNotifyActivationDate = "notify_activation_date"
	SettingLabelCutoverDay      = "label_cutover_day"
	SettingDailyMessageQuota    = "daily_message_quota"
	SettingCallMeBotAPIKey      = "callmebot_apikey"
	SettingMikroTikHost         = "mikrotik_host"
	SettingMikroTikUser         = "mikrotik_user"
	SettingMikroTikPassword     = "mikrotik_password"
	SettingMikroTikAddressList  = "mikrotik_address_list"
	SettingYapeWatermark        = "yape_watermark"
)

// Valores por defecto cuando la clave no existe todavía
const (
	DefaultPaymentGraceDays     = 21
	DefaultReminderOffsetDays   = 0
	DefaultDailyMessageQuota    = 200
	DefaultMikroTikAddressList  = "MOROSOS"
	DefaultNotifyActivationDate = "2026-01-10"
)

// SettingsService lectura tipada de los ajustes de ejecución
type SettingsService interface {
	GraceDays(ctx context.Context) int
	ReminderOffsetDays(ctx context.Context) int
	LabelCutoverDay(ctx context.Context) int
	DailyMessageQuota(ctx context.Context) int
	WhatsAppEnabled(ctx context.Context) bool
	RouterEnabled(ctx context.Context) bool
	NotifyActivationDate(ctx context.Context) time.Time
	Watermark(ctx context.Context) (time.Time, bool)
	SetWatermark(ctx context.Context, ts time.Time) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

type settingsService struct {
	repo repository.SettingsRepository
	log  *logger.Logger
}

// NewSettingsService crea el servicio de ajustes
func NewSettingsService(repo repository.SettingsRepository, log *logger.Logger) SettingsService {
	return &settingsService{
		repo: repo,
		log:  log,
	}
}

func (s *settingsService) intValue(ctx context.Context, key string, def int) int {
	raw, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Failed to read setting, using default", "key", key, "error", err)
		}
		return def
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		s.log.Warnw("Invalid integer setting, using default", "key", key, "value", raw)
		return def
	}

	return value
}

func (s *settingsService) boolValue(ctx context.Context, key string, def bool) bool {
	raw, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Failed to read setting, using default", "key", key, "error", err)
		}
		return def
	}

	switch raw {
	case "1", "true", "TRUE", "si", "SI":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		s.log.Warnw("Invalid boolean setting, using default", "key", key, "value", raw)
		return def
	}
}

// GraceDays días de gracia tras el vencimiento antes de autorizar el corte
func (s *settingsService) GraceDays(ctx context.Context) int {
	return s.intValue(ctx, SettingPaymentGraceDays, DefaultPaymentGraceDays)
}

// ReminderOffsetDays días tras el vencimiento antes del primer recordatorio
func (s *settingsService) ReminderOffsetDays(ctx context.Context) int {
	return s.intValue(ctx, SettingReminderOffsetDays, DefaultReminderOffsetDays)
}

// LabelCutoverDay día de corte para nombrar el período
func (s *settingsService) LabelCutoverDay(ctx context.Context) int {
	return s.intValue(ctx, SettingLabelCutoverDay, 16)
}

// DailyMessageQuota tope diario de mensajes salientes
func (s *settingsService) DailyMessageQuota(ctx context.Context) int {
	return s.intValue(ctx, SettingDailyMessageQuota, DefaultDailyMessageQuota)
}

// WhatsAppEnabled indica si la mensajería saliente está habilitada
func (s *settingsService) WhatsAppEnabled(ctx context.Context) bool {
	return s.boolValue(ctx, SettingWhatsAppEnabled, false)
}

// RouterEnabled indica si los cortes y reconexiones en el router están habilitados
func (s *settingsService) RouterEnabled(ctx context.Context) bool {
	return s.boolValue(ctx, SettingRouterEnabled, false)
}

// NotifyActivationDate fecha desde la cual se permite enviar avisos.
// Antes de esa fecha los avisos quedan encolados sin enviarse.
func (s *settingsService) NotifyActivationDate(ctx context.Context) time.Time {
	raw, err := s.repo.Get(ctx, SettingNotifyActivationDate)
	if err != nil {
		raw = DefaultNotifyActivationDate
	}

	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		s.log.Warnw("Invalid activation date setting, using default", "value", raw)
		date, _ = time.Parse("2006-01-02", DefaultNotifyActivationDate)
	}

	return date
}

// Watermark devuelve la marca de agua de ingesta de pagos y si existe
func (s *settingsService) Watermark(ctx context.Context) (time.Time, bool) {
	raw, err := s.repo.Get(ctx, SettingYapeWatermark)
	if err != nil {
		return time.Time{}, false
	}

	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.log.Warnw("Invalid watermark setting, ignoring", "value", raw)
		return time.Time{}, false
	}

	return ts, true
}

// SetWatermark avanza la marca de agua de ingesta de pagos
func (s *settingsService) SetWatermark(ctx context.Context, ts time.Time) error {
	return s.repo.Set(ctx, SettingYapeWatermark, ts.Format(time.RFC3339))
}

// Get devuelve el valor crudo de un ajuste
func (s *settingsService) Get(ctx context.Context, key string) (string, error) {
	return s.repo.Get(ctx, key)
}

// Set crea o actualiza un ajuste
func (s *settingsService) Set(ctx context.Context, key, value string) error {
	s.log.Infow("Updating setting", "key", key)
	return s.repo.Set(ctx, key, value)
}

// All devuelve todos los ajustes
func (s *settingsService) All(ctx context.Context) (map[string]string, error) {
	return s.repo.All(ctx)
}
