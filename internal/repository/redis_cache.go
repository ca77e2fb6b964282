package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

const (
	// Prefijos de clave por tipo de dato
	subscriptionKeyPrefix = "subscription:"
	customerKeyPrefix     = "customer:"

	// TTL del caché
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository implementa el caché de lecturas sobre Redis
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository crea un nuevo caché Redis y verifica la conexión
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close cierra la conexión con Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheSubscription guarda una suscripción en el caché
func (r *RedisCacheRepository) CacheSubscription(ctx context.Context, sub domain.Subscription) error {
	key := fmt.Sprintf("%s%s", subscriptionKeyPrefix, sub.ID)

	data, err := json.Marshal(sub)
	if err != nil {
		r.log.Errorw("Failed to marshal subscription for caching", "error", err, "subscriptionID", sub.ID)
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache subscription in Redis", "error", err, "subscriptionID", sub.ID)
		return fmt.Errorf("failed to cache subscription: %w", err)
	}

	r.log.Debugw("Subscription cached successfully", "subscriptionID", sub.ID)
	return nil
}

// GetCachedSubscription devuelve una suscripción del caché.
// Devuelve (nil, nil) cuando la clave no existe.
func (r *RedisCacheRepository) GetCachedSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	key := fmt.Sprintf("%s%s", subscriptionKeyPrefix, id)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.log.Debugw("Subscription not found in cache", "subscriptionID", id)
			return nil, nil
		}
		r.log.Errorw("Error getting subscription from Redis", "error", err, "subscriptionID", id)
		return nil, fmt.Errorf("failed to get subscription from cache: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		r.log.Errorw("Failed to unmarshal cached subscription", "error", err, "subscriptionID", id)
		return nil, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}

	r.log.Debugw("Subscription retrieved from cache", "subscriptionID", id)
	return &sub, nil
}

// DeleteCachedSubscription elimina una suscripción del caché
func (r *RedisCacheRepository) DeleteCachedSubscription(ctx context.Context, id uuid.UUID) error {
	key := fmt.Sprintf("%s%s", subscriptionKeyPrefix, id)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Errorw("Failed to delete subscription from cache", "error", err, "subscriptionID", id)
		return fmt.Errorf("failed to delete subscription from cache: %w", err)
	}

	r.log.Debugw("Subscription deleted from cache", "subscriptionID", id)
	return nil
}

// CacheCustomer guarda un cliente en el caché
func (r *RedisCacheRepository) CacheCustomer(ctx context.Context, customer domain.Customer) error {
	key := fmt.Sprintf("%s%s", customerKeyPrefix, customer.ID)

	data, err := json.Marshal(customer)
	if err != nil {
		r.log.Errorw("Failed to marshal customer for caching", "error", err, "customerID", customer.ID)
		return fmt.Errorf("failed to marshal customer: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache customer in Redis", "error", err, "customerID", customer.ID)
		return fmt.Errorf("failed to cache customer: %w", err)
	}

	r.log.Debugw("Customer cached successfully", "customerID", customer.ID)
	return nil
}

// GetCachedCustomer devuelve un cliente del caché.
// Devuelve (nil, nil) cuando la clave no existe.
func (r *RedisCacheRepository) GetCachedCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	key := fmt.Sprintf("%s%s", customerKeyPrefix, id)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.log.Debugw("Customer not found in cache", "customerID", id)
			return nil, nil
		}
		r.log.Errorw("Error getting customer from Redis", "error", err, "customerID", id)
		return nil, fmt.Errorf("failed to get customer from cache: %w", err)
	}

	var customer domain.Customer
	if err := json.Unmarshal(data, &customer); err != nil {
		r.log.Errorw("Failed to unmarshal cached customer", "error", err, "customerID", id)
		return nil, fmt.Errorf("failed to unmarshal cached customer: %w", err)
	}

	r.log.Debugw("Customer retrieved from cache", "customerID", id)
	return &customer, nil
}

// DeleteCachedCustomer elimina un cliente del caché
func (r *RedisCacheRepository) DeleteCachedCustomer(ctx context.Context, id uuid.UUID) error {
	key := fmt.Sprintf("%s%s", customerKeyPrefix, id)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Errorw("Failed to delete customer from cache", "error", err, "customerID", id)
		return fmt.Errorf("failed to delete customer from cache: %w", err)
	}

	r.log.Debugw("Customer deleted from cache", "customerID", id)
	return nil
}
