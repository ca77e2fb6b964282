package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// InMemoryAlertRepository implementación del buzón de alertas en memoria
type InMemoryAlertRepository struct {
	alerts map[uuid.UUID]domain.ManagerAlert
	mutex  sync.RWMutex
	log    *logger.Logger
}

// NewInMemoryAlertRepository crea un nuevo buzón de alertas en memoria
func NewInMemoryAlertRepository(log *logger.Logger) *InMemoryAlertRepository {
	return &InMemoryAlertRepository{
		alerts: make(map[uuid.UUID]domain.ManagerAlert),
		log:    log,
	}
}

// Create registra una nueva alerta
func (r *InMemoryAlertRepository) Create(ctx context.Context, alert domain.ManagerAlert) (domain.ManagerAlert, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	r.alerts[alert.ID] = alert

	return alert, nil
}

// ListUnread devuelve las alertas no leídas, de la más reciente a la más antigua
func (r *InMemoryAlertRepository) ListUnread(ctx context.Context) ([]domain.ManagerAlert, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var alerts []domain.ManagerAlert
	for _, alert := range r.alerts {
		if !alert.Read {
			alerts = append(alerts, alert)
		}
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})

	return alerts, nil
}

// CountUnread devuelve la cantidad de alertas no leídas
func (r *InMemoryAlertRepository) CountUnread(ctx context.Context) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	count := 0
	for _, alert := range r.alerts {
		if !alert.Read {
			count++
		}
	}

	return count, nil
}

// MarkRead marca una alerta como leída
func (r *InMemoryAlertRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	alert, exists := r.alerts[id]
	if !exists {
		return ErrNotFound
	}

	alert.Read = true
	r.alerts[id] = alert

	return nil
}

// MarkAllRead marca todas las alertas como leídas
func (r *InMemoryAlertRepository) MarkAllRead(ctx context.Context) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	updated := 0
	for id, alert := range r.alerts {
		if !alert.Read {
			alert.Read = true
			r.alerts[id] = alert
			updated++
		}
	}

	return updated, nil
}

// PruneRead elimina las alertas leídas anteriores a la fecha dada.
// Las alertas no leídas nunca se eliminan.
func (r *InMemoryAlertRepository) PruneRead(ctx context.Context, olderThan time.Time) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := 0
	for id, alert := range r.alerts {
		if alert.Read && alert.CreatedAt.Before(olderThan) {
			delete(r.alerts, id)
			removed++
		}
	}

	return removed, nil
}

// PostgresAlertRepository implementación del buzón de alertas sobre PostgreSQL
type PostgresAlertRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresAlertRepository crea un nuevo buzón de alertas sobre PostgreSQL
func NewPostgresAlertRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresAlertRepository {
	return &PostgresAlertRepository{
		db:  db,
		log: log,
	}
}

// Create registra una nueva alerta en la base de datos
func (r *PostgresAlertRepository) Create(ctx context.Context, alert domain.ManagerAlert) (domain.ManagerAlert, error) {
	query := `
		INSERT INTO manager_alerts (id, kind, title, message, subscription_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(
		ctx,
		query,
		alert.ID,
		alert.Kind,
		alert.Title,
		alert.Message,
		alert.SubscriptionID,
		alert.Read,
		alert.CreatedAt,
	).Scan(&alert.ID, &alert.CreatedAt)

	if err != nil {
		return domain.ManagerAlert{}, fmt.Errorf("failed to create alert: %w", err)
	}

	return alert, nil
}

// ListUnread devuelve las alertas no leídas desde la base de datos
func (r *PostgresAlertRepository) ListUnread(ctx context.Context) ([]domain.ManagerAlert, error) {
	query := `
		SELECT id, kind, title, message, subscription_id, read, created_at
		FROM manager_alerts
		WHERE read = FALSE
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.ManagerAlert
	for rows.Next() {
		var alert domain.ManagerAlert
		if err := rows.Scan(&alert.ID, &alert.Kind, &alert.Title, &alert.Message, &alert.SubscriptionID, &alert.Read, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

// CountUnread devuelve la cantidad de alertas no leídas
func (r *PostgresAlertRepository) CountUnread(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM manager_alerts WHERE read = FALSE`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	return count, nil
}

// MarkRead marca una alerta como leída
func (r *PostgresAlertRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE manager_alerts SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert as read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkAllRead marca todas las alertas como leídas
func (r *PostgresAlertRepository) MarkAllRead(ctx context.Context) (int, error) {
	result, err := r.db.Exec(ctx, `UPDATE manager_alerts SET read = TRUE WHERE read = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("failed to mark alerts as read: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// PruneRead elimina las alertas leídas anteriores a la fecha dada
func (r *PostgresAlertRepository) PruneRead(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM manager_alerts WHERE read = TRUE AND created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}

	return int(result.RowsAffected()), nil
}
