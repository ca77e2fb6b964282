package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// CachedCustomerRepository implementa CustomerRepository con caché de lecturas.
// La cobranza consulta al titular en cada escalamiento, así que GetByID pasa
// primero por Redis; las escrituras refrescan la entrada. Un fallo del caché
// nunca detiene la operación: se registra y se sigue contra la base de datos.
type CachedCustomerRepository struct {
	repo  CustomerRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedCustomerRepository crea un nuevo repositorio de clientes con caché
func NewCachedCustomerRepository(
	repo CustomerRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) CustomerRepository {
	return &CachedCustomerRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create registra el cliente y lo guarda en el caché
func (r *CachedCustomerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	created, err := r.repo.Create(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	if err := r.cache.CacheCustomer(ctx, created); err != nil {
		r.log.Warnw("Failed to cache customer after creation", "error", err, "customerID", created.ID)
	}

	return created, nil
}

// GetByID devuelve un cliente, primero del caché y luego de la base de datos
func (r *CachedCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	cached, err := r.cache.GetCachedCustomer(ctx, id)
	if err != nil {
		r.log.Warnw("Error getting customer from cache", "error", err, "customerID", id)
	}

	if cached != nil {
		return *cached, nil
	}

	customer, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	if err := r.cache.CacheCustomer(ctx, customer); err != nil {
		r.log.Warnw("Failed to cache customer after fetching", "error", err, "customerID", id)
	}

	return customer, nil
}

// GetByDNI busca por documento directo en la base de datos.
// El caché indexa por ID, no por DNI.
func (r *CachedCustomerRepository) GetByDNI(ctx context.Context, dni string) (domain.Customer, error) {
	return r.repo.GetByDNI(ctx, dni)
}

// Update actualiza el cliente y refresca el caché
func (r *CachedCustomerRepository) Update(ctx context.Context, customer domain.Customer) error {
	if err := r.repo.Update(ctx, customer); err != nil {
		return err
	}

	if err := r.cache.CacheCustomer(ctx, customer); err != nil {
		r.log.Warnw("Failed to refresh customer cache after update", "error", err, "customerID", customer.ID)
	}

	return nil
}
