package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// InMemorySettingsRepository implementación de los ajustes de ejecución en memoria
type InMemorySettingsRepository struct {
	values map[string]string
	mutex  sync.RWMutex
	log    *logger.Logger
}

// NewInMemorySettingsRepository crea un nuevo repositorio de ajustes en memoria
func NewInMemorySettingsRepository(log *logger.Logger) *InMemorySettingsRepository {
	return &InMemorySettingsRepository{
		values: make(map[string]string),
		log:    log,
	}
}

// Get devuelve el valor de un ajuste
func (r *InMemorySettingsRepository) Get(ctx context.Context, key string) (string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	value, exists := r.values[key]
	if !exists {
		return "", ErrNotFound
	}

	return value, nil
}

// Set crea o actualiza un ajuste
func (r *InMemorySettingsRepository) Set(ctx context.Context, key, value string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.values[key] = value

	return nil
}

// All devuelve todos los ajustes
func (r *InMemorySettingsRepository) All(ctx context.Context) (map[string]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	values := make(map[string]string, len(r.values))
	for k, v := range r.values {
		values[k] = v
	}

	return values, nil
}

// PostgresSettingsRepository implementación de los ajustes sobre PostgreSQL
type PostgresSettingsRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSettingsRepository crea un nuevo repositorio de ajustes sobre PostgreSQL
func NewPostgresSettingsRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{
		db:  db,
		log: log,
	}
}

// Get devuelve el valor de un ajuste desde la base de datos
func (r *PostgresSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM system_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}

	return value, nil
}

// Set crea o actualiza un ajuste en la base de datos
func (r *PostgresSettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO system_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}

	return nil
}

// All devuelve todos los ajustes desde la base de datos
func (r *PostgresSettingsRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM system_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return values, nil
}
