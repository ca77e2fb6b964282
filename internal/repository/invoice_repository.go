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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// InMemoryInvoiceRepository implementación del repositorio de facturas en memoria.
// Guarda también los movimientos de caja para poder aplicar pagos de forma atómica.
type InMemoryInvoiceRepository struct {
	invoices  map[uuid.UUID]domain.Invoice
	movements []domain.CashMovement
	mutex     sync.RWMutex
	log       *logger.Logger
}

// NewInMemoryInvoiceRepository crea un nuevo repositorio de facturas en memoria
func NewInMemoryInvoiceRepository(log *logger.Logger) *InMemoryInvoiceRepository {
	return &InMemoryInvoiceRepository{
		invoices: make(map[uuid.UUID]domain.Invoice),
		log:      log,
	}
}

// Create registra una nueva factura
func (r *InMemoryInvoiceRepository) Create(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = time.Now()
	}

	// Una suscripción no puede tener dos facturas vigentes del mismo período
	for _, existing := range r.invoices {
		if existing.SubscriptionID == inv.SubscriptionID &&
			existing.PeriodLabel == inv.PeriodLabel &&
			existing.Status != domain.InvoiceStatusVoid {
			return domain.Invoice{}, ErrDuplicate
		}
	}

	r.invoices[inv.ID] = inv

	return inv, nil
}

// GetByID devuelve una factura por su ID
func (r *InMemoryInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	inv, exists := r.invoices[id]
	if !exists {
		return domain.Invoice{}, ErrNotFound
	}

	return inv, nil
}

// Update actualiza una factura existente
func (r *InMemoryInvoiceRepository) Update(ctx context.Context, inv domain.Invoice) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.invoices[inv.ID]; !exists {
		return ErrNotFound
	}

	r.invoices[inv.ID] = inv

	return nil
}

// LatestBySubscription devuelve la factura vigente más reciente de una suscripción,
// ordenada por fecha de vencimiento
func (r *InMemoryInvoiceRepository) LatestBySubscription(ctx context.Context, subID uuid.UUID) (domain.Invoice, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest domain.Invoice
	found := false
	for _, inv := range r.invoices {
		if inv.SubscriptionID != subID || inv.Status == domain.InvoiceStatusVoid {
			continue
		}
		if !found || inv.DueDate.After(latest.DueDate) {
			latest = inv
			found = true
		}
	}

	if !found {
		return domain.Invoice{}, ErrNotFound
	}

	return latest, nil
}

// ListBySubscription devuelve el historial de facturas de una suscripción
func (r *InMemoryInvoiceRepository) ListBySubscription(ctx context.Context, subID uuid.UUID) ([]domain.Invoice, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var invoices []domain.Invoice
	for _, inv := range r.invoices {
		if inv.SubscriptionID == subID {
			invoices = append(invoices, inv)
		}
	}

	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].DueDate.Before(invoices[j].DueDate)
	})

	return invoices, nil
}

// ListOutstanding devuelve las facturas pendientes de una suscripción,
// de la más antigua a la más reciente
func (r *InMemoryInvoiceRepository) ListOutstanding(ctx context.Context, subID uuid.UUID) ([]domain.Invoice, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var invoices []domain.Invoice
	for _, inv := range r.invoices {
		if inv.SubscriptionID == subID && inv.Status == domain.InvoiceStatusPending {
			invoices = append(invoices, inv)
		}
	}

	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].DueDate.Before(invoices[j].DueDate)
	})

	return invoices, nil
}

// ExistsNonVoidPeriod indica si ya existe una factura vigente para el período dado
func (r *InMemoryInvoiceRepository) ExistsNonVoidPeriod(ctx context.Context, subID uuid.UUID, periodLabel string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, inv := range r.invoices {
		if inv.SubscriptionID == subID &&
			inv.PeriodLabel == periodLabel &&
			inv.Status != domain.InvoiceStatusVoid {
			return true, nil
		}
	}

	return false, nil
}

// SettleWithMovement persiste la factura actualizada y el movimiento de caja
// bajo el mismo candado
func (r *InMemoryInvoiceRepository) SettleWithMovement(ctx context.Context, inv domain.Invoice, mv domain.CashMovement) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.invoices[inv.ID]; !exists {
		return ErrNotFound
	}

	if mv.ID == uuid.Nil {
		mv.ID = uuid.New()
	}
	if mv.OccurredAt.IsZero() {
		mv.OccurredAt = time.Now()
	}

	r.invoices[inv.ID] = inv
	r.movements = append(r.movements, mv)

	return nil
}

// ListRecentMovements devuelve los últimos movimientos de caja registrados
func (r *InMemoryInvoiceRepository) ListRecentMovements(ctx context.Context, limit int) ([]domain.CashMovement, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	movements := make([]domain.CashMovement, len(r.movements))
	copy(movements, r.movements)

	sort.Slice(movements, func(i, j int) bool {
		return movements[i].OccurredAt.After(movements[j].OccurredAt)
	})

	if limit > 0 && len(movements) > limit {
		movements = movements[:limit]
	}

	return movements, nil
}

// PostgresInvoiceRepository implementación del repositorio de facturas sobre PostgreSQL
type PostgresInvoiceRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresInvoiceRepository crea un nuevo repositorio de facturas sobre PostgreSQL
func NewPostgresInvoiceRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresInvoiceRepository {
	return &PostgresInvoiceRepository{
		db:  db,
		log: log,
	}
}

const invoiceColumns = `
	id, subscription_id, code, period_label, period_start, period_end,
	due_date, amount_total, amount_paid, status, issued_at, paid_at
`

func scanInvoice(row pgx.Row) (domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.SubscriptionID,
		&inv.Code,
		&inv.PeriodLabel,
		&inv.PeriodStart,
		&inv.PeriodEnd,
		&inv.DueDate,
		&inv.AmountTotal,
		&inv.AmountPaid,
		&inv.Status,
		&inv.IssuedAt,
		&inv.PaidAt,
	)
	return inv, err
}

func (r *PostgresInvoiceRepository) queryMany(ctx context.Context, query string, args ...any) ([]domain.Invoice, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	return invoices, nil
}

// Create registra una nueva factura en la base de datos
func (r *PostgresInvoiceRepository) Create(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	query := `
		INSERT INTO invoices (
			id, subscription_id, code, period_label, period_start, period_end,
			due_date, amount_total, amount_paid, status, issued_at, paid_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING id, issued_at
	`

	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = time.Now()
	}

	err := r.db.QueryRow(
		ctx,
		query,
		inv.ID,
		inv.SubscriptionID,
		inv.Code,
		inv.PeriodLabel,
		inv.PeriodStart,
		inv.PeriodEnd,
		inv.DueDate,
		inv.AmountTotal,
		inv.AmountPaid,
		inv.Status,
		inv.IssuedAt,
		inv.PaidAt,
	).Scan(&inv.ID, &inv.IssuedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return domain.Invoice{}, ErrNotFound
			case "23505":
				return domain.Invoice{}, ErrDuplicate
			}
		}
		return domain.Invoice{}, fmt.Errorf("failed to create invoice: %w", err)
	}

	return inv, nil
}

// GetByID devuelve una factura por su ID desde la base de datos
func (r *PostgresInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Invoice{}, ErrNotFound
		}
		return domain.Invoice{}, fmt.Errorf("failed to get invoice: %w", err)
	}

	return inv, nil
}

// Update actualiza una factura existente en la base de datos
func (r *PostgresInvoiceRepository) Update(ctx context.Context, inv domain.Invoice) error {
	query := `
		UPDATE invoices
		SET amount_total = $1, amount_paid = $2, status = $3, paid_at = $4, due_date = $5
		WHERE id = $6
	`

	result, err := r.db.Exec(ctx, query, inv.AmountTotal, inv.AmountPaid, inv.Status, inv.PaidAt, inv.DueDate, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// LatestBySubscription devuelve la factura vigente más reciente de una suscripción
func (r *PostgresInvoiceRepository) LatestBySubscription(ctx context.Context, subID uuid.UUID) (domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE subscription_id = $1 AND status <> 'VOID'
		ORDER BY due_date DESC
		LIMIT 1
	`

	inv, err := scanInvoice(r.db.QueryRow(ctx, query, subID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Invoice{}, ErrNotFound
		}
		return domain.Invoice{}, fmt.Errorf("failed to get latest invoice: %w", err)
	}

	return inv, nil
}

// ListBySubscription devuelve el historial de facturas de una suscripción
func (r *PostgresInvoiceRepository) ListBySubscription(ctx context.Context, subID uuid.UUID) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE subscription_id = $1 ORDER BY due_date ASC`
	return r.queryMany(ctx, query, subID)
}

// ListOutstanding devuelve las facturas pendientes de una suscripción,
// de la más antigua a la más reciente
func (r *PostgresInvoiceRepository) ListOutstanding(ctx context.Context, subID uuid.UUID) ([]domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE subscription_id = $1 AND status = 'PENDING'
		ORDER BY due_date ASC
	`
	return r.queryMany(ctx, query, subID)
}

// ExistsNonVoidPeriod indica si ya existe una factura vigente para el período dado
func (r *PostgresInvoiceRepository) ExistsNonVoidPeriod(ctx context.Context, subID uuid.UUID, periodLabel string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE subscription_id = $1 AND period_label = $2 AND status <> 'VOID'
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, subID, periodLabel).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check invoice period: %w", err)
	}

	return exists, nil
}

// SettleWithMovement actualiza la factura e inserta el movimiento de caja
// en una sola transacción
func (r *PostgresInvoiceRepository) SettleWithMovement(ctx context.Context, inv domain.Invoice, mv domain.CashMovement) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	updateQuery := `
		UPDATE invoices
		SET amount_paid = $1, status = $2, paid_at = $3
		WHERE id = $4
	`

	result, err := tx.Exec(ctx, updateQuery, inv.AmountPaid, inv.Status, inv.PaidAt, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to update invoice in transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	if mv.ID == uuid.Nil {
		mv.ID = uuid.New()
	}
	if mv.OccurredAt.IsZero() {
		mv.OccurredAt = time.Now()
	}

	insertQuery := `
		INSERT INTO cash_movements (id, invoice_id, amount, method, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := tx.Exec(ctx, insertQuery, mv.ID, mv.InvoiceID, mv.Amount, mv.Method, mv.Description, mv.OccurredAt); err != nil {
		return fmt.Errorf("failed to insert cash movement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	return nil
}

// ListRecentMovements devuelve los últimos movimientos de caja registrados
func (r *PostgresInvoiceRepository) ListRecentMovements(ctx context.Context, limit int) ([]domain.CashMovement, error) {
	query := `
		SELECT id, invoice_id, amount, method, description, occurred_at
		FROM cash_movements
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash movements: %w", err)
	}
	defer rows.Close()

	var movements []domain.CashMovement
	for rows.Next() {
		var mv domain.CashMovement
		if err := rows.Scan(&mv.ID, &mv.InvoiceID, &mv.Amount, &mv.Method, &mv.Description, &mv.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan cash movement: %w", err)
		}
		movements = append(movements, mv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash movements: %w", err)
	}

	return movements, nil
}
