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

// InMemoryCustomerRepository implementación del repositorio de clientes en memoria
type InMemoryCustomerRepository struct {
	customers map[uuid.UUID]domain.Customer
	byDNI     map[string]uuid.UUID
	mutex     sync.RWMutex
	log       *logger.Logger
}

// NewInMemoryCustomerRepository crea un nuevo repositorio de clientes en memoria
func NewInMemoryCustomerRepository(log *logger.Logger) *InMemoryCustomerRepository {
	return &InMemoryCustomerRepository{
		customers: make(map[uuid.UUID]domain.Customer),
		byDNI:     make(map[string]uuid.UUID),
		log:       log,
	}
}

// Create registra un nuevo cliente
func (r *InMemoryCustomerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if customer.DNI != "" {
		if _, exists := r.byDNI[customer.DNI]; exists {
			return domain.Customer{}, ErrDuplicate
		}
	}

	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	if customer.RegisteredAt.IsZero() {
		customer.RegisteredAt = time.Now()
	}

	r.customers[customer.ID] = customer
	if customer.DNI != "" {
		r.byDNI[customer.DNI] = customer.ID
	}

	return customer, nil
}

// GetByID devuelve un cliente por su ID
func (r *InMemoryCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	customer, exists := r.customers[id]
	if !exists {
		return domain.Customer{}, ErrNotFound
	}

	return customer, nil
}

// GetByDNI devuelve un cliente por su número de DNI
func (r *InMemoryCustomerRepository) GetByDNI(ctx context.Context, dni string) (domain.Customer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, exists := r.byDNI[dni]
	if !exists {
		return domain.Customer{}, ErrNotFound
	}

	return r.customers[id], nil
}

// Update actualiza un cliente existente
func (r *InMemoryCustomerRepository) Update(ctx context.Context, customer domain.Customer) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, exists := r.customers[customer.ID]
	if !exists {
		return ErrNotFound
	}

	if existing.DNI != customer.DNI {
		delete(r.byDNI, existing.DNI)
		if customer.DNI != "" {
			r.byDNI[customer.DNI] = customer.ID
		}
	}

	r.customers[customer.ID] = customer

	return nil
}

// PostgresCustomerRepository implementación del repositorio de clientes sobre PostgreSQL
type PostgresCustomerRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresCustomerRepository crea un nuevo repositorio de clientes sobre PostgreSQL
func NewPostgresCustomerRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresCustomerRepository {
	return &PostgresCustomerRepository{
		db:  db,
		log: log,
	}
}

// Create registra un nuevo cliente en la base de datos
func (r *PostgresCustomerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	query := `
		INSERT INTO customers (
			id, dni, first_name, last_name, address, email, phone, active, registered_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING id, registered_at
	`

	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	if customer.RegisteredAt.IsZero() {
		customer.RegisteredAt = time.Now()
	}

	err := r.db.QueryRow(
		ctx,
		query,
		customer.ID,
		customer.DNI,
		customer.FirstName,
		customer.LastName,
		customer.Address,
		customer.Email,
		customer.Phone,
		customer.Active,
		customer.RegisteredAt,
	).Scan(&customer.ID, &customer.RegisteredAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Customer{}, ErrDuplicate
		}
		return domain.Customer{}, fmt.Errorf("failed to create customer: %w", err)
	}

	return customer, nil
}

// GetByID devuelve un cliente por su ID desde la base de datos
func (r *PostgresCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	query := `
		SELECT id, dni, first_name, last_name, address, email, phone, active, registered_at
		FROM customers
		WHERE id = $1
	`

	var customer domain.Customer
	err := r.db.QueryRow(ctx, query, id).Scan(
		&customer.ID,
		&customer.DNI,
		&customer.FirstName,
		&customer.LastName,
		&customer.Address,
		&customer.Email,
		&customer.Phone,
		&customer.Active,
		&customer.RegisteredAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Customer{}, ErrNotFound
		}
		return domain.Customer{}, fmt.Errorf("failed to get customer: %w", err)
	}

	return customer, nil
}

// GetByDNI devuelve un cliente por su número de DNI desde la base de datos
func (r *PostgresCustomerRepository) GetByDNI(ctx context.Context, dni string) (domain.Customer, error) {
	query := `
		SELECT id, dni, first_name, last_name, address, email, phone, active, registered_at
		FROM customers
		WHERE dni = $1
	`

	var customer domain.Customer
	err := r.db.QueryRow(ctx, query, dni).Scan(
		&customer.ID,
		&customer.DNI,
		&customer.FirstName,
		&customer.LastName,
		&customer.Address,
		&customer.Email,
		&customer.Phone,
		&customer.Active,
		&customer.RegisteredAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Customer{}, ErrNotFound
		}
		return domain.Customer{}, fmt.Errorf("failed to get customer by dni: %w", err)
	}

	return customer, nil
}

// Update actualiza un cliente existente en la base de datos
func (r *PostgresCustomerRepository) Update(ctx context.Context, customer domain.Customer) error {
	query := `
		UPDATE customers
		SET dni = $1, first_name = $2, last_name = $3, address = $4,
			email = $5, phone = $6, active = $7
		WHERE id = $8
	`

	result, err := r.db.Exec(
		ctx,
		query,
		customer.DNI,
		customer.FirstName,
		customer.LastName,
		customer.Address,
		customer.Email,
		customer.Phone,
		customer.Active,
		customer.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
