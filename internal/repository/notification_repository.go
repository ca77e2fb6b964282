package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// InMemoryNotificationRepository implementación de la cola de avisos en memoria
type InMemoryNotificationRepository struct {
	tasks map[uuid.UUID]domain.NotificationTask
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemoryNotificationRepository crea una nueva cola de avisos en memoria
func NewInMemoryNotificationRepository(log *logger.Logger) *InMemoryNotificationRepository {
	return &InMemoryNotificationRepository{
		tasks: make(map[uuid.UUID]domain.NotificationTask),
		log:   log,
	}
}

// Create encola un nuevo aviso
func (r *InMemoryNotificationRepository) Create(ctx context.Context, task domain.NotificationTask) (domain.NotificationTask, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Status == "" {
		task.Status = domain.NotificationStatusPending
	}

	r.tasks[task.ID] = task

	return task, nil
}

// GetByID devuelve un aviso por su ID
func (r *InMemoryNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.NotificationTask, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	task, exists := r.tasks[id]
	if !exists {
		return domain.NotificationTask{}, ErrNotFound
	}

	return task, nil
}

// ListDue devuelve los avisos pendientes cuya hora programada ya pasó,
// del más antiguo al más reciente
func (r *InMemoryNotificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.NotificationTask, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var due []domain.NotificationTask
	for _, task := range r.tasks {
		if task.Status == domain.NotificationStatusPending && !task.ScheduledFor.After(now) {
			due = append(due, task)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

// ListBySubscription devuelve los avisos de una suscripción
func (r *InMemoryNotificationRepository) ListBySubscription(ctx context.Context, subID uuid.UUID) ([]domain.NotificationTask, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var tasks []domain.NotificationTask
	for _, task := range r.tasks {
		if task.SubscriptionID == subID {
			tasks = append(tasks, task)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}

// ExistsWithStatus indica si la suscripción tiene un aviso del tipo dado
// en alguno de los estados indicados
func (r *InMemoryNotificationRepository) ExistsWithStatus(ctx context.Context, subID uuid.UUID, kind domain.NotificationKind, statuses ...domain.NotificationStatus) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, task := range r.tasks {
		if task.SubscriptionID != subID || task.Kind != kind {
			continue
		}
		for _, status := range statuses {
			if task.Status == status {
				return true, nil
			}
		}
	}

	return false, nil
}

// UpdateStatus cambia el estado de un aviso
func (r *InMemoryNotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus, sentAt *time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	task, exists := r.tasks[id]
	if !exists {
		return ErrNotFound
	}

	task.Status = status
	task.SentAt = sentAt
	r.tasks[id] = task

	return nil
}

// Reschedule cambia la hora programada de un aviso pendiente
func (r *InMemoryNotificationRepository) Reschedule(ctx context.Context, id uuid.UUID, scheduledFor time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	task, exists := r.tasks[id]
	if !exists {
		return ErrNotFound
	}

	task.ScheduledFor = scheduledFor
	r.tasks[id] = task

	return nil
}

// DeletePending elimina los avisos pendientes de una suscripción y
// devuelve cuántos se eliminaron
func (r *InMemoryNotificationRepository) DeletePending(ctx context.Context, subID uuid.UUID) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := 0
	for id, task := range r.tasks {
		if task.SubscriptionID == subID && task.Status == domain.NotificationStatusPending {
			delete(r.tasks, id)
			removed++
		}
	}

	return removed, nil
}

// PostgresNotificationRepository implementación de la cola de avisos sobre PostgreSQL
type PostgresNotificationRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresNotificationRepository crea una nueva cola de avisos sobre PostgreSQL
func NewPostgresNotificationRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{
		db:  db,
		log: log,
	}
}

const notificationColumns = `
	id, subscription_id, kind, message, phone, scheduled_for, sent_at, status, created_at
`

func scanNotification(row pgx.Row) (domain.NotificationTask, error) {
	var task domain.NotificationTask
	err := row.Scan(
		&task.ID,
		&task.SubscriptionID,
		&task.Kind,
		&task.Message,
		&task.Phone,
		&task.ScheduledFor,
		&task.SentAt,
		&task.Status,
		&task.CreatedAt,
	)
	return task, err
}

func (r *PostgresNotificationRepository) queryMany(ctx context.Context, query string, args ...any) ([]domain.NotificationTask, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var tasks []domain.NotificationTask
	for rows.Next() {
		task, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return tasks, nil
}

// Create encola un nuevo aviso en la base de datos
func (r *PostgresNotificationRepository) Create(ctx context.Context, task domain.NotificationTask) (domain.NotificationTask, error) {
	query := `
		INSERT INTO notification_tasks (
			id, subscription_id, kind, message, phone, scheduled_for, sent_at, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING id, created_at
	`

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = domain.NotificationStatusPending
	}

	err := r.db.QueryRow(
		ctx,
		query,
		task.ID,
		task.SubscriptionID,
		task.Kind,
		task.Message,
		task.Phone,
		task.ScheduledFor,
		task.SentAt,
		task.Status,
		time.Now(),
	).Scan(&task.ID, &task.CreatedAt)

	if err != nil {
		return domain.NotificationTask{}, fmt.Errorf("failed to create notification: %w", err)
	}

	return task, nil
}

// GetByID devuelve un aviso por su ID desde la base de datos
func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.NotificationTask, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_tasks WHERE id = $1`

	task, err := scanNotification(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotificationTask{}, ErrNotFound
		}
		return domain.NotificationTask{}, fmt.Errorf("failed to get notification: %w", err)
	}

	return task, nil
}

// ListDue devuelve los avisos pendientes cuya hora programada ya pasó
func (r *PostgresNotificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.NotificationTask, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notification_tasks
		WHERE status = 'PENDING' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`

	if limit <= 0 {
		limit = 500
	}

	return r.queryMany(ctx, query, now, limit)
}

// ListBySubscription devuelve los avisos de una suscripción
func (r *PostgresNotificationRepository) ListBySubscription(ctx context.Context, subID uuid.UUID) ([]domain.NotificationTask, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_tasks WHERE subscription_id = $1 ORDER BY created_at ASC`
	return r.queryMany(ctx, query, subID)
}

// ExistsWithStatus indica si la suscripción tiene un aviso del tipo dado
// en alguno de los estados indicados
func (r *PostgresNotificationRepository) ExistsWithStatus(ctx context.Context, subID uuid.UUID, kind domain.NotificationKind, statuses ...domain.NotificationStatus) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_tasks
			WHERE subscription_id = $1 AND kind = $2 AND status = ANY($3)
		)
	`

	statusStrings := make([]string, len(statuses))
	for i, status := range statuses {
		statusStrings[i] = string(status)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, query, subID, kind, statusStrings).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check notification status: %w", err)
	}

	return exists, nil
}

// UpdateStatus cambia el estado de un aviso en la base de datos
func (r *PostgresNotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus, sentAt *time.Time) error {
	query := `UPDATE notification_tasks SET status = $1, sent_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, status, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Reschedule cambia la hora programada de un aviso pendiente
func (r *PostgresNotificationRepository) Reschedule(ctx context.Context, id uuid.UUID, scheduledFor time.Time) error {
	query := `UPDATE notification_tasks SET scheduled_for = $1 WHERE id = $2 AND status = 'PENDING'`

	result, err := r.db.Exec(ctx, query, scheduledFor, id)
	if err != nil {
		return fmt.Errorf("failed to reschedule notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeletePending elimina los avisos pendientes de una suscripción
func (r *PostgresNotificationRepository) DeletePending(ctx context.Context, subID uuid.UUID) (int, error) {
	query := `DELETE FROM notification_tasks WHERE subscription_id = $1 AND status = 'PENDING'`

	result, err := r.db.Exec(ctx, query, subID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending notifications: %w", err)
	}

	return int(result.RowsAffected()), nil
}
