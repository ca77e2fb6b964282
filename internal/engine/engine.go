// Package engine contiene el lazo de control de cobranza: una vuelta
// periódica que factura, escala la morosidad, vacía la cola de avisos y
// poda alertas viejas. Cada paso aísla sus fallos: ninguna suscripción
// puede abortar el lote completo.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alberthdev/fnet-billing/internal/metrics"
	"github.com/alberthdev/fnet-billing/internal/repository"
	"github.com/alberthdev/fnet-billing/internal/service"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// TickSummary el resumen observable de una vuelta del motor
type TickSummary struct {
	StartedAt           time.Time     `json:"started_at"`
	Duration            time.Duration `json:"duration_ns"`
	ActiveSubscriptions int           `json:"active_subscriptions"`
	InvoicesGenerated   int           `json:"invoices_generated"`
	InvoicesSkipped     int           `json:"invoices_skipped"`
	RemindersQueued     int           `json:"reminders_queued"`
	Suspensions         int           `json:"suspensions"`
	NotificationsSent   int           `json:"notifications_sent"`
	NotificationsFailed int           `json:"notifications_failed"`
	NotificationsHeld   int           `json:"notifications_held"`
	AlertsRaised        int           `json:"alerts_raised"`
	AlertsPruned        int           `json:"alerts_pruned"`
	StepErrors          int           `json:"step_errors"`
	Skipped             bool          `json:"skipped"`
}

// Engine el motor de cobranza
type Engine struct {
	subscriptionRepo repository.SubscriptionRepository
	invoices         service.InvoiceService
	collection       service.CollectionService
	metrics          metrics.BillingMetrics
	log              *logger.Logger
	now              func() time.Time

	cron *cron.Cron

	// Solo una vuelta a la vez; un disparo que llega con otra vuelta en
	// curso se salta, la siguiente vuelve a derivar todo del estado persistido
	running sync.Mutex

	summaryMu   sync.RWMutex
	lastSummary TickSummary
}

// New crea el motor. now se inyecta para las pruebas; con nil usa time.Now.
func New(
	subscriptionRepo repository.SubscriptionRepository,
	invoices service.InvoiceService,
	collection service.CollectionService,
	billingMetrics metrics.BillingMetrics,
	log *logger.Logger,
	now func() time.Time,
) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		subscriptionRepo: subscriptionRepo,
		invoices:         invoices,
		collection:       collection,
		metrics:          billingMetrics,
		log:              log,
		now:              now,
	}
}

// Start programa la vuelta periódica según la expresión cron dada
// (p. ej. "@hourly") y arranca el planificador.
func (e *Engine) Start(schedule string) error {
	e.cron = cron.New()

	if _, err := e.cron.AddFunc(schedule, func() {
		e.RunTick(context.Background())
	}); err != nil {
		return err
	}

	e.cron.Start()
	e.log.Infow("Billing engine started", "schedule", schedule)
	return nil
}

// Stop detiene el planificador y espera a que termine la vuelta en curso
func (e *Engine) Stop() {
	if e.cron != nil {
		ctx := e.cron.Stop()
		<-ctx.Done()
	}
	e.running.Lock()
	e.running.Unlock()
	e.log.Infow("Billing engine stopped")
}

// LastSummary devuelve el resumen de la última vuelta completada
func (e *Engine) LastSummary() TickSummary {
	e.summaryMu.RLock()
	defer e.summaryMu.RUnlock()
	return e.lastSummary
}

// RunTick ejecuta una vuelta completa del motor. Es seguro invocarla en
// cualquier momento: si ya hay una vuelta en curso, se salta; cada paso
// re-deriva su trabajo del estado persistido, así que repetirla tras un
// corte a mitad de lote no duplica efectos.
func (e *Engine) RunTick(ctx context.Context) TickSummary {
	if !e.running.TryLock() {
		e.log.Warnw("Tick skipped, previous tick still running")
		return TickSummary{Skipped: true}
	}
	defer e.running.Unlock()

	now := e.now()
	summary := TickSummary{StartedAt: now}

	e.log.Infow("Engine tick started", "at", now.Format(time.RFC3339))

	e.stepInvoicing(ctx, now, &summary)
	e.stepEscalation(ctx, now, &summary)
	e.stepDrain(ctx, now, &summary)
	e.stepPrune(ctx, now, &summary)

	summary.Duration = time.Since(now)
	e.metrics.RecordTick(summary.Duration)

	e.summaryMu.Lock()
	e.lastSummary = summary
	e.summaryMu.Unlock()

	e.log.Infow("Engine tick finished",
		"durationMs", summary.Duration.Milliseconds(),
		"generated", summary.InvoicesGenerated,
		"skipped", summary.InvoicesSkipped,
		"reminders", summary.RemindersQueued,
		"suspensions", summary.Suspensions,
		"sent", summary.NotificationsSent,
		"alerts", summary.AlertsRaised,
		"errors", summary.StepErrors)

	return summary
}

// stepInvoicing asegura la factura del período para cada suscripción activa
func (e *Engine) stepInvoicing(ctx context.Context, now time.Time, summary *TickSummary) {
	subs, err := e.subscriptionRepo.GetAllActive(ctx)
	if err != nil {
		e.log.Errorw("Invoicing step failed to list subscriptions", "error", err)
		e.metrics.RecordStepFailure("invoicing")
		summary.StepErrors++
		return
	}
	summary.ActiveSubscriptions = len(subs)

	for _, sub := range subs {
		result, err := e.invoices.EnsurePeriodInvoiced(ctx, sub, now)
		if err != nil {
			e.log.Errorw("Invoicing failed for subscription", "subscriptionID", sub.ID, "error", err)
			e.metrics.RecordStepFailure("invoicing")
			summary.StepErrors++
			continue
		}
		if result.Created {
			summary.InvoicesGenerated++
		} else {
			summary.InvoicesSkipped++
		}
	}

	e.metrics.RecordInvoicesGenerated(summary.InvoicesGenerated)
}

// stepEscalation avanza la cobranza de toda suscripción con deuda.
// También las suspendidas: el corte pudo fallar la vuelta anterior.
func (e *Engine) stepEscalation(ctx context.Context, now time.Time, summary *TickSummary) {
	subs, err := e.subscriptionRepo.GetAll(ctx)
	if err != nil {
		e.log.Errorw("Escalation step failed to list subscriptions", "error", err)
		e.metrics.RecordStepFailure("escalation")
		summary.StepErrors++
		return
	}

	for _, sub := range subs {
		result, err := e.collection.Escalate(ctx, sub, now)
		if err != nil {
			e.log.Errorw("Escalation failed for subscription", "subscriptionID", sub.ID, "error", err)
			e.metrics.RecordStepFailure("escalation")
			summary.StepErrors++
			continue
		}
		if result.ReminderQueued {
			summary.RemindersQueued++
		}
		if result.Suspended {
			summary.Suspensions++
		}
		if result.AlertRaised {
			summary.AlertsRaised++
		}
	}

	e.metrics.RecordSuspensions(summary.Suspensions)
}

// stepDrain entrega los avisos pendientes de la cola
func (e *Engine) stepDrain(ctx context.Context, now time.Time, summary *TickSummary) {
	drain, err := e.collection.DrainNotifications(ctx, now)
	if err != nil {
		e.log.Errorw("Notification drain step failed", "error", err)
		e.metrics.RecordStepFailure("drain")
		summary.StepErrors++
		return
	}

	summary.NotificationsSent = drain.Sent
	summary.NotificationsFailed = drain.Failed
	summary.NotificationsHeld = drain.Held
	summary.AlertsRaised += drain.NoContact

	e.metrics.RecordNotificationsSent(drain.Sent)
	e.metrics.RecordNotificationsFailed(drain.Failed)
}

// stepPrune poda las alertas leídas fuera de la ventana de retención
func (e *Engine) stepPrune(ctx context.Context, now time.Time, summary *TickSummary) {
	pruned, err := e.collection.PruneAlerts(ctx, now)
	if err != nil {
		e.log.Errorw("Alert prune step failed", "error", err)
		e.metrics.RecordStepFailure("prune")
		summary.StepErrors++
		return
	}
	summary.AlertsPruned = pruned

	e.metrics.RecordAlertsRaised(summary.AlertsRaised)
}
