package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

// CachedSubscriptionRepository implementa SubscriptionRepository con caché de lecturas.
// Las lecturas por ID pasan primero por Redis; las escrituras invalidan o
// refrescan la entrada correspondiente. Un fallo del caché nunca detiene
// la operación: se registra y se sigue contra la base de datos.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository crea un nuevo repositorio con caché
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create registra la suscripción y la guarda en el caché
func (r *CachedSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	created, err := r.repo.Create(ctx, sub)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, created); err != nil {
		r.log.Warnw("Failed to cache subscription after creation", "error", err, "subscriptionID", created.ID)
	}

	return created, nil
}

// GetByID devuelve una suscripción, primero del caché y luego de la base de datos
func (r *CachedSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	cached, err := r.cache.GetCachedSubscription(ctx, id)
	if err != nil {
		r.log.Warnw("Error getting subscription from cache", "error", err, "subscriptionID", id)
	}

	if cached != nil {
		return *cached, nil
	}

	sub, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription after fetching", "error", err, "subscriptionID", id)
	}

	return sub, nil
}

// GetByCustomerID devuelve las suscripciones de un cliente.
// El listado no se cachea: cambia con cada corte o reconexión.
func (r *CachedSubscriptionRepository) GetByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error) {
	return r.repo.GetByCustomerID(ctx, customerID)
}

// GetAll devuelve todas las suscripciones
func (r *CachedSubscriptionRepository) GetAll(ctx context.Context) ([]domain.Subscription, error) {
	return r.repo.GetAll(ctx)
}

// GetAllActive devuelve las suscripciones con servicio activo
func (r *CachedSubscriptionRepository) GetAllActive(ctx context.Context) ([]domain.Subscription, error) {
	return r.repo.GetAllActive(ctx)
}

// SetActive cambia el estado del servicio e invalida la entrada del caché
func (r *CachedSubscriptionRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := r.repo.SetActive(ctx, id, active); err != nil {
		return err
	}

	if err := r.cache.DeleteCachedSubscription(ctx, id); err != nil {
		r.log.Warnw("Failed to invalidate subscription cache", "error", err, "subscriptionID", id)
	}

	return nil
}

// Update actualiza la suscripción y refresca el caché
func (r *CachedSubscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	if err := r.repo.Update(ctx, sub); err != nil {
		return err
	}

	if err := r.cache.CacheSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to refresh subscription cache after update", "error", err, "subscriptionID", sub.ID)
	}

	return nil
}
