package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alberthdev/fnet-billing/internal/domain"
	"github.com/alberthdev/fnet-billing/pkg/logger"
)

func newTestCache(t *testing.T) (*RedisCacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	log := logger.NewWithOutput(logger.ERROR, io.Discard)
	cache, err := NewRedisCacheRepository(mr.Addr(), "", 0, log)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func seedTestCustomer(t *testing.T, repo CustomerRepository, dni string) domain.Customer {
	t.Helper()
	created, err := repo.Create(context.Background(), domain.Customer{
		FirstName:    "Rosa",
		LastName:     "Quispe",
		DNI:          dni,
		Phone:        "+51987654321",
		Active:       true,
		RegisteredAt: time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return created
}

func TestCachedCustomerGetByIDServesFromCache(t *testing.T) {
	cache, _ := newTestCache(t)
	log := logger.NewWithOutput(logger.ERROR, io.Discard)
	ctx := context.Background()

	backing := NewInMemoryCustomerRepository(log)
	repo := NewCachedCustomerRepository(backing, cache, log)

	created := seedTestCustomer(t, repo, "40251850")

	// Tocar el respaldo sin pasar por el decorador: la lectura siguiente
	// debe seguir sirviendo la copia cacheada por Create
	stale := created
	stale.Phone = "+51900000000"
	require.NoError(t, backing.Update(ctx, stale))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "+51987654321", got.Phone)
}

func TestCachedCustomerGetByIDFallsBackToRepository(t *testing.T) {
	cache, mr := newTestCache(t)
	log := logger.NewWithOutput(logger.ERROR, io.Discard)
	ctx := context.Background()

	backing := NewInMemoryCustomerRepository(log)
	repo := NewCachedCustomerRepository(backing, cache, log)

	created := seedTestCustomer(t, repo, "40251851")
	mr.FlushAll()

	// Sin entrada en el caché la lectura va a la base y repuebla la clave
	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, mr.Exists("customer:"+created.ID.String()))
}

func TestCachedCustomerUpdateRefreshesCache(t *testing.T) {
	cache, _ := newTestCache(t)
	log := logger.NewWithOutput(logger.ERROR, io.Discard)
	ctx := context.Background()

	backing := NewInMemoryCustomerRepository(log)
	repo := NewCachedCustomerRepository(backing, cache, log)

	created := seedTestCustomer(t, repo, "40251852")

	created.Phone = "+51911112222"
	require.NoError(t, repo.Update(ctx, created))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "+51911112222", got.Phone)
}

func TestCachedCustomerGetByIDMissReturnsNotFound(t *testing.T) {
	cache, _ := newTestCache(t)
	log := logger.NewWithOutput(logger.ERROR, io.Discard)

	backing := NewInMemoryCustomerRepository(log)
	repo := NewCachedCustomerRepository(backing, cache, log)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
