package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// InMemorySubscriptionRepository implementación del repositorio de suscripciones en memoria
type InMemorySubscriptionRepository struct {
	subscriptions map[uuid.UUID]domain.Subscription
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionRepository crea un nuevo repositorio de suscripciones en memoria
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subscriptions: make(map[uuid.UUID]domain.Subscription),
		log:           log,
	}
}

// Create registra una nueva suscripción
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = time.Now()

	r.subscriptions[sub.ID] = sub

	return sub, nil
}

// GetByID devuelve una suscripción por su ID
func (r *InMemorySubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sub, exists := r.subscriptions[id]
	if !exists {
		return domain.Subscription{}, ErrNotFound
	}

	return sub, nil
}

// GetByCustomerID devuelve las suscripciones de un cliente
func (r *InMemorySubscriptionRepository) GetByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var subs []domain.Subscription
	for _, sub := range r.subscriptions {
		if sub.CustomerID == customerID {
			subs = append(subs, sub)
		}
	}

	return subs, nil
}

// GetAll devuelve todas las suscripciones
func (r *InMemorySubscriptionRepository) GetAll(ctx context.Context) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	subs := make([]domain.Subscription, 0, len(r.subscriptions))
	for _, sub := range r.subscriptions {
		subs = append(subs, sub)
	}

	return subs, nil
}

// GetAllActive devuelve las suscripciones con servicio activo
func (r *InMemorySubscriptionRepository) GetAllActive(ctx context.Context) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var subs []domain.Subscription
	for _, sub := range r.subscriptions {
		if sub.Active {
			subs = append(subs, sub)
		}
	}

	return subs, nil
}

// SetActive cambia el estado del servicio de una suscripción
func (r *InMemorySubscriptionRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sub, exists := r.subscriptions[id]
	if !exists {
		return ErrNotFound
	}

	sub.Active = active
	sub.UpdatedAt = time.Now()
	r.subscriptions[id] = sub

	return nil
}

// Update actualiza una suscripción existente
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.subscriptions[sub.ID]; !exists {
		return ErrNotFound
	}

	sub.UpdatedAt = time.Now()
	r.subscriptions[sub.ID] = sub

	return nil
}

// PostgresSubscriptionRepository implementación del repositorio de suscripciones sobre PostgreSQL
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository crea un nuevo repositorio de suscripciones sobre PostgreSQL
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db:  db,
		log: log,
	}
}

const subscriptionColumns = `
	id, customer_id, plan_id, contract_code, monthly_rate, prepaid, pay_day,
	active, client_ip, install_address, started_at, created_at, updated_at
`

func scanSubscription(row pgx.Row) (domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.CustomerID,
		&sub.PlanID,
		&sub.ContractCode,
		&sub.MonthlyRate,
		&sub.Prepaid,
		&sub.PayDay,
		&sub.Active,
		&sub.ClientIP,
		&sub.InstallAddress,
		&sub.StartedAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	return sub, err
}

func (r *PostgresSubscriptionRepository) queryMany(ctx context.Context, query string, args ...any) ([]domain.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}

// Create registra una nueva suscripción en la base de datos
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (
			id, customer_id, plan_id, contract_code, monthly_rate, prepaid, pay_day,
			active, client_ip, install_address, started_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING id, created_at, updated_at
	`

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	err := r.db.QueryRow(
		ctx,
		query,
		sub.ID,
		sub.CustomerID,
		sub.PlanID,
		sub.ContractCode,
		sub.MonthlyRate,
		sub.Prepaid,
		sub.PayDay,
		sub.Active,
		sub.ClientIP,
		sub.InstallAddress,
		sub.StartedAt,
		time.Now(),
		time.Now(),
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return domain.Subscription{}, ErrNotFound
			case "23505":
				return domain.Subscription{}, ErrDuplicate
			}
		}
		return domain.Subscription{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	return sub, nil
}

// GetByID devuelve una suscripción por su ID desde la base de datos
func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Subscription{}, ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// GetByCustomerID devuelve las suscripciones de un cliente desde la base de datos
func (r *PostgresSubscriptionRepository) GetByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE customer_id = $1 ORDER BY created_at DESC`
	return r.queryMany(ctx, query, customerID)
}

// GetAll devuelve todas las suscripciones desde la base de datos
func (r *PostgresSubscriptionRepository) GetAll(ctx context.Context) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY created_at DESC`
	return r.queryMany(ctx, query)
}

// GetAllActive devuelve las suscripciones con servicio activo desde la base de datos
func (r *PostgresSubscriptionRepository) GetAllActive(ctx context.Context) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE active = TRUE ORDER BY created_at DESC`
	return r.queryMany(ctx, query)
}

// SetActive cambia el estado del servicio de una suscripción en la base de datos
func (r *PostgresSubscriptionRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE subscriptions SET active = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set subscription active state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Update actualiza una suscripción existente en la base de datos
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_id = $1, contract_code = $2, monthly_rate = $3, prepaid = $4,
			pay_day = $5, active = $6, client_ip = $7, install_address = $8,
			started_at = $9, updated_at = $10
		WHERE id = $11
	`

	result, err := r.db.Exec(
		ctx,
		query,
		sub.PlanID,
		sub.ContractCode,
		sub.MonthlyRate,
		sub.Prepaid,
		sub.PayDay,
		sub.Active,
		sub.ClientIP,
		sub.InstallAddress,
		sub.StartedAt,
		time.Now(),
		sub.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
