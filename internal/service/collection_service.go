package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/internal/kafka"
	"github.com/alberthdev/fnet-billing/internal/metrics"
	"github.com/alberthdev/fnet-billing/internal/notify"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// alertRetentionDays días que se conserva una alerta ya leída
const alertRetentionDays = 30

// ultimatumDelay espera entre el recordatorio entregado y el aviso final
const ultimatumDelay = 48 * time.Hour

// EscalateResult qué hizo la cobranza con una suscripción en esta vuelta
type EscalateResult struct {
	ReminderQueued bool
	NoContact      bool
	Suspended      bool
	AlertRaised    bool
}

// DrainSummary resultado de vaciar la cola de avisos
type DrainSummary struct {
	Sent      int
	Failed    int
	NoContact int
	Chained   int
	Held      int
}

// CollectionService la escalera de cobranza: recordatorio, ultimátum,
// corte y reconexión, guiada por la antigüedad de la deuda más vieja
type CollectionService interface {
	Reconnector
	Escalate(ctx context.Context, sub domain.Subscription, now time.Time) (EscalateResult, error)
	DrainNotifications(ctx context.Context, now time.Time) (DrainSummary, error)
	DeferUltimatum(ctx context.Context, taskID uuid.UUID, until time.Time) error
	PruneAlerts(ctx context.Context, now time.Time) (int, error)
}

type collectionService struct {
	subscriptionRepo repository.SubscriptionRepository
	customerRepo     repository.CustomerRepository
	invoiceRepo      repository.InvoiceRepository
	notificationRepo repository.NotificationRepository
	alertRepo        repository.AlertRepository
	settings         SettingsService
	messenger        notify.Messenger
	router           notify.RouterControl
	quota            *DailyQuota
	producer         kafka.Producer
	metrics          metrics.BillingMetrics
	log              *logger.Logger
}

// NewCollectionService crea el servicio de cobranza. producer y
// billingMetrics pueden ser nil.
func NewCollectionService(
	subscriptionRepo repository.SubscriptionRepository,
	customerRepo repository.CustomerRepository,
	invoiceRepo repository.InvoiceRepository,
	notificationRepo repository.NotificationRepository,
	alertRepo repository.AlertRepository,
	settings SettingsService,
	messenger notify.Messenger,
	router notify.RouterControl,
	quota *DailyQuota,
	producer kafka.Producer,
	billingMetrics metrics.BillingMetrics,
	log *logger.Logger,
) CollectionService {
	return &collectionService{
		subscriptionRepo: subscriptionRepo,
		customerRepo:     customerRepo,
		invoiceRepo:      invoiceRepo,
		notificationRepo: notificationRepo,
		alertRepo:        alertRepo,
		settings:         settings,
		messenger:        messenger,
		router:           router,
		quota:            quota,
		producer:         producer,
		metrics:          billingMetrics,
		log:              log,
	}
}

// daysPast días completos transcurridos desde la fecha dada
func daysPast(from, now time.Time) int {
	return int(now.Sub(from).Hours() / 24)
}

// Escalate avanza la cobranza de una suscripción según la antigüedad de su
// factura impaga más vieja. Encola el recordatorio cuando vence el plazo y
// ejecuta el corte recién cuando el ultimátum fue entregado y la deuda
// superó los días de gracia.
func (s *collectionService) Escalate(ctx context.Context, sub domain.Subscription, now time.Time) (EscalateResult, error) {
	var result EscalateResult

	outstanding, err := s.invoiceRepo.ListOutstanding(ctx, sub.ID)
	if err != nil {
		return result, &domain.BillingError{Op: "escalate", SubscriptionID: sub.ID, Err: err}
	}
	if len(outstanding) == 0 {
		return result, nil
	}

	oldest := outstanding[0]
	age := daysPast(oldest.DueDate, now)

	if age >= s.settings.ReminderOffsetDays(ctx) {
		queued, noContact, err := s.queueReminder(ctx, sub, oldest, now)
		if err != nil {
			return result, err
		}
		result.ReminderQueued = queued
		result.NoContact = noContact
		result.AlertRaised = noContact
	}

	if sub.Active && age > s.settings.GraceDays(ctx) {
		suspended, alerted, err := s.trySuspend(ctx, sub, oldest, now)
		if err != nil {
			return result, err
		}
		result.Suspended = suspended
		result.AlertRaised = result.AlertRaised || alerted
	}

	return result, nil
}

// queueReminder encola el recordatorio si no hay ya uno en curso.
// Sin teléfono de contacto el aviso nace NO_CONTACT y se levanta una
// alerta para el gestor en lugar de descartarlo en silencio.
func (s *collectionService) queueReminder(ctx context.Context, sub domain.Subscription, oldest domain.Invoice, now time.Time) (queued, noContact bool, err error) {
	exists, err := s.notificationRepo.ExistsWithStatus(ctx, sub.ID, domain.NotificationKindReminder,
		domain.NotificationStatusPending, domain.NotificationStatusSent, domain.NotificationStatusNoContact)
	if err != nil {
		return false, false, &domain.BillingError{Op: "queue_reminder", SubscriptionID: sub.ID, Err: err}
	}
	if exists {
		return false, false, nil
	}

	customer, err := s.customerFor(ctx, sub)
	if err != nil {
		return false, false, &domain.BillingError{Op: "queue_reminder", SubscriptionID: sub.ID, Err: err}
	}

	task := domain.NotificationTask{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		Kind:           domain.NotificationKindReminder,
		Message:        ReminderMessage(customer.FullName(), oldest.PeriodLabel, oldest.Outstanding(), oldest.DueDate),
		Phone:          customer.Phone,
		ScheduledFor:   now,
		Status:         domain.NotificationStatusPending,
		CreatedAt:      now,
	}

	if !customer.HasPhone() {
		task.Status = domain.NotificationStatusNoContact
		if _, err := s.notificationRepo.Create(ctx, task); err != nil {
			return false, false, &domain.BillingError{Op: "queue_reminder", SubscriptionID: sub.ID, Err: err}
		}

		alert := domain.NewMissingContactAlert(sub.ID, customer.FullName(), sub.ContractCode)
		if _, err := s.alertRepo.Create(ctx, alert); err != nil {
			return false, false, &domain.BillingError{Op: "queue_reminder", SubscriptionID: sub.ID, Err: err}
		}

		s.log.Warnw("Reminder short-circuited, customer has no contact phone", "subscriptionID", sub.ID, "customer", customer.FullName())
		return false, true, nil
	}

	if _, err := s.notificationRepo.Create(ctx, task); err != nil {
		return false, false, &domain.BillingError{Op: "queue_reminder", SubscriptionID: sub.ID, Err: err}
	}

	s.log.Infow("Reminder queued", "subscriptionID", sub.ID, "period", oldest.PeriodLabel, "ageDays", daysPast(oldest.DueDate, now))
	return true, false, nil
}

// trySuspend corta el servicio si el ultimátum ya fue entregado.
// Un fallo del router deja la suscripción activa y levanta una alerta;
// la siguiente vuelta reintenta.
func (s *collectionService) trySuspend(ctx context.Context, sub domain.Subscription, oldest domain.Invoice, now time.Time) (suspended, alerted bool, err error) {
	ultimatumSent, err := s.notificationRepo.ExistsWithStatus(ctx, sub.ID, domain.NotificationKindUltimatum, domain.NotificationStatusSent)
	if err != nil {
		return false, false, &domain.BillingError{Op: "suspend", SubscriptionID: sub.ID, Err: err}
	}
	if !ultimatumSent {
		return false, false, nil
	}

	if !s.settings.RouterEnabled(ctx) {
		s.log.Debugw("Suspension due but router control is disabled", "subscriptionID", sub.ID)
		return false, false, nil
	}

	customer, err := s.customerFor(ctx, sub)
	if err != nil {
		return false, false, &domain.BillingError{Op: "suspend", SubscriptionID: sub.ID, Err: err}
	}

	if !sub.HasClientIP() {
		alert := domain.NewSuspensionFailedAlert(sub.ID, customer.FullName(), "sin dirección IP asignada")
		if _, err := s.alertRepo.Create(ctx, alert); err != nil {
			return false, false, err
		}
		return false, true, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := s.router.Suspend(callCtx, sub.ClientIP); err != nil {
		s.log.Errorw("Router suspension failed", "subscriptionID", sub.ID, "address", sub.ClientIP, "error", err)
		alert := domain.NewSuspensionFailedAlert(sub.ID, customer.FullName(), err.Error())
		if _, aerr := s.alertRepo.Create(ctx, alert); aerr != nil {
			return false, false, aerr
		}
		return false, true, nil
	}

	if err := s.subscriptionRepo.SetActive(ctx, sub.ID, false); err != nil {
		return false, false, &domain.BillingError{Op: "suspend", SubscriptionID: sub.ID, Err: err}
	}

	s.log.Infow("Service suspended for nonpayment", "subscriptionID", sub.ID, "address", sub.ClientIP,
		"period", oldest.PeriodLabel, "ageDays", daysPast(oldest.DueDate, now))

	s.publishServiceEvent(ctx, kafka.TopicServiceSuspended, sub)
	s.sendCourtesy(ctx, customer, SuspensionMessage(customer.FullName(), oldest.PeriodLabel, oldest.Outstanding()), now)

	return true, false, nil
}

// DrainNotifications entrega los avisos pendientes, del más antiguo al más
// reciente. Un recordatorio entregado encadena el ultimátum dos días después.
// Los avisos no entregables por cupo o por mensajería deshabilitada quedan
// en cola para la próxima vuelta.
func (s *collectionService) DrainNotifications(ctx context.Context, now time.Time) (DrainSummary, error) {
	var summary DrainSummary

	if now.Before(s.settings.NotifyActivationDate(ctx)) {
		s.log.Debugw("Notification delivery not yet activated", "activation", s.settings.NotifyActivationDate(ctx).Format("2006-01-02"))
		return summary, nil
	}

	tasks, err := s.notificationRepo.ListDue(ctx, now, 0)
	if err != nil {
		return summary, err
	}
	if len(tasks) == 0 {
		return summary, nil
	}

	whatsappEnabled := s.settings.WhatsAppEnabled(ctx)

	for _, task := range tasks {
		if !task.HasPhone() {
			if err := s.markNoContact(ctx, task); err != nil {
				return summary, err
			}
			summary.NoContact++
			continue
		}

		if !whatsappEnabled || !s.messenger.Configured() {
			summary.Held += len(tasks) - summary.Sent - summary.Failed - summary.NoContact
			s.log.Debugw("Messaging disabled, notifications held", "held", summary.Held)
			break
		}

		if !s.quota.Allow() {
			summary.Held += len(tasks) - summary.Sent - summary.Failed - summary.NoContact
			s.log.Warnw("Daily message quota exhausted, notifications held", "held", summary.Held)
			break
		}

		if err := s.deliver(ctx, task, now, &summary); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func (s *collectionService) deliver(ctx context.Context, task domain.NotificationTask, now time.Time, summary *DrainSummary) error {
	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := s.messenger.Send(callCtx, task.Phone, task.Message)
	cancel()

	if err != nil {
		s.log.Errorw("Notification delivery failed", "taskID", task.ID, "kind", task.Kind, "error", err)
		if uerr := s.notificationRepo.UpdateStatus(ctx, task.ID, domain.NotificationStatusError, nil); uerr != nil {
			return uerr
		}
		summary.Failed++
		return nil
	}

	sentAt := now
	if err := s.notificationRepo.UpdateStatus(ctx, task.ID, domain.NotificationStatusSent, &sentAt); err != nil {
		return err
	}
	summary.Sent++
	s.log.Infow("Notification delivered", "taskID", task.ID, "kind", task.Kind, "subscriptionID", task.SubscriptionID)

	if task.Kind == domain.NotificationKindReminder {
		chained, err := s.chainUltimatum(ctx, task, now)
		if err != nil {
			return err
		}
		if chained {
			summary.Chained++
		}
	}

	return nil
}

// customerFor devuelve el titular del contrato. Una suscripción huérfana
// (sin cliente) se reporta como domain.ErrCustomerNotFound para que el
// motor la aísle sin frenar la vuelta.
func (s *collectionService) customerFor(ctx context.Context, sub domain.Subscription) (domain.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, sub.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *collectionService) markNoContact(ctx context.Context, task domain.NotificationTask) error {
	if err := s.notificationRepo.UpdateStatus(ctx, task.ID, domain.NotificationStatusNoContact, nil); err != nil {
		return err
	}

	sub, err := s.subscriptionRepo.GetByID(ctx, task.SubscriptionID)
	if err != nil {
		return err
	}
	customer, err := s.customerFor(ctx, sub)
	if err != nil {
		return err
	}

	alert := domain.NewMissingContactAlert(sub.ID, customer.FullName(), sub.ContractCode)
	_, err = s.alertRepo.Create(ctx, alert)
	return err
}

// chainUltimatum programa el ultimátum tras la entrega del recordatorio
func (s *collectionService) chainUltimatum(ctx context.Context, reminder domain.NotificationTask, now time.Time) (bool, error) {
	exists, err := s.notificationRepo.ExistsWithStatus(ctx, reminder.SubscriptionID, domain.NotificationKindUltimatum,
		domain.NotificationStatusPending, domain.NotificationStatusSent)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	outstanding, err := s.invoiceRepo.ListOutstanding(ctx, reminder.SubscriptionID)
	if err != nil {
		return false, err
	}
	if len(outstanding) == 0 {
		// Pagó entre la entrega y el encadenado
		return false, nil
	}

	sub, err := s.subscriptionRepo.GetByID(ctx, reminder.SubscriptionID)
	if err != nil {
		return false, err
	}
	customer, err := s.customerFor(ctx, sub)
	if err != nil {
		return false, err
	}

	oldest := outstanding[0]
	cutDate := oldest.DueDate.AddDate(0, 0, s.settings.GraceDays(ctx))

	task := domain.NotificationTask{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		Kind:           domain.NotificationKindUltimatum,
		Message:        UltimatumMessage(customer.FullName(), oldest.PeriodLabel, oldest.Outstanding(), cutDate),
		Phone:          customer.Phone,
		ScheduledFor:   now.Add(ultimatumDelay),
		Status:         domain.NotificationStatusPending,
		CreatedAt:      now,
	}

	if _, err := s.notificationRepo.Create(ctx, task); err != nil {
		return false, err
	}

	s.log.Infow("Ultimatum scheduled", "subscriptionID", sub.ID, "scheduledFor", task.ScheduledFor)
	return true, nil
}

// OnBalanceCleared reacciona a un pago que dejó la suscripción sin deuda:
// cancela los avisos pendientes y, si el servicio estaba cortado, lo repone.
func (s *collectionService) OnBalanceCleared(ctx context.Context, subID uuid.UUID, now time.Time) error {
	removed, err := s.notificationRepo.DeletePending(ctx, subID)
	if err != nil {
		return &domain.BillingError{Op: "balance_cleared", SubscriptionID: subID, Err: err}
	}
	if removed > 0 {
		s.log.Infow("Pending notifications cancelled after payment", "subscriptionID", subID, "removed", removed)
	}

	sub, err := s.subscriptionRepo.GetByID(ctx, subID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrSubscriptionNotFound
		}
		return err
	}

	if sub.Active {
		return nil
	}

	return s.reconnect(ctx, sub, now)
}

func (s *collectionService) reconnect(ctx context.Context, sub domain.Subscription, now time.Time) error {
	customer, err := s.customerFor(ctx, sub)
	if err != nil {
		return &domain.BillingError{Op: "reconnect", SubscriptionID: sub.ID, Err: err}
	}

	if s.settings.RouterEnabled(ctx) && sub.HasClientIP() {
		callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := s.router.Restore(callCtx, sub.ClientIP)
		cancel()

		if err != nil {
			s.log.Errorw("Router restore failed", "subscriptionID", sub.ID, "address", sub.ClientIP, "error", err)
			alert := domain.NewReconnectFailedAlert(sub.ID, customer.FullName(), err.Error())
			if _, aerr := s.alertRepo.Create(ctx, alert); aerr != nil {
				return aerr
			}
			return nil
		}
	}

	if err := s.subscriptionRepo.SetActive(ctx, sub.ID, true); err != nil {
		return &domain.BillingError{Op: "reconnect", SubscriptionID: sub.ID, Err: err}
	}

	s.log.Infow("Service reconnected after full payment", "subscriptionID", sub.ID, "address", sub.ClientIP)

	if s.metrics != nil {
		s.metrics.RecordReconnections(1)
	}
	s.publishServiceEvent(ctx, kafka.TopicServiceReconnected, sub)
	s.sendCourtesy(ctx, customer, ReconnectionMessage(customer.FullName()), now)

	return nil
}

// DeferUltimatum posterga un ultimátum pendiente, decisión manual del gestor
func (s *collectionService) DeferUltimatum(ctx context.Context, taskID uuid.UUID, until time.Time) error {
	task, err := s.notificationRepo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNotFound
		}
		return err
	}

	if task.Kind != domain.NotificationKindUltimatum || task.Status != domain.NotificationStatusPending {
		return domain.ErrInvalidInput
	}

	if err := s.notificationRepo.Reschedule(ctx, taskID, until); err != nil {
		return err
	}

	s.log.Infow("Ultimatum deferred", "taskID", taskID, "until", until)
	return nil
}

// PruneAlerts elimina las alertas leídas fuera de la ventana de retención
func (s *collectionService) PruneAlerts(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -alertRetentionDays)
	removed, err := s.alertRepo.PruneRead(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Infow("Read alerts pruned", "removed", removed, "olderThan", cutoff.Format("2006-01-02"))
	}
	return removed, nil
}

// sendCourtesy envía un mensaje de cortesía fuera de la cola de avisos,
// sin insistir si falla
func (s *collectionService) sendCourtesy(ctx context.Context, customer domain.Customer, message string, now time.Time) {
	if !s.settings.WhatsAppEnabled(ctx) || !s.messenger.Configured() || !customer.HasPhone() {
		return
	}
	if now.Before(s.settings.NotifyActivationDate(ctx)) {
		return
	}
	if !s.quota.Allow() {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := s.messenger.Send(callCtx, customer.Phone, message); err != nil {
		s.log.Warnw("Courtesy message delivery failed", "customer", customer.FullName(), "error", err)
	}
}

func (s *collectionService) publishServiceEvent(ctx context.Context, topic string, sub domain.Subscription) {
	if s.producer == nil {
		return
	}

	event := kafka.ServiceEvent{
		SubscriptionID: sub.ID.String(),
		Address:        sub.ClientIP,
	}

	if err := s.producer.PublishServiceEvent(ctx, topic, event); err != nil {
		s.log.Warnw("Failed to publish service event", "topic", topic, "subscriptionID", sub.ID, "error", err)
	}
}
