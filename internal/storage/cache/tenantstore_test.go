package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-admin/internal/storage/cache"
	"github.com/tinywideclouds/go-push-admin/tenant"
)

// --- Mocks ---

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Tenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}
func (m *MockSource) CreateTenant(ctx context.Context, spec *tenant.TenantToCreate) (*tenant.Tenant, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}
func (m *MockSource) UpdateTenant(ctx context.Context, id string, spec *tenant.TenantToUpdate) (*tenant.Tenant, error) {
	args := m.Called(ctx, id, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}
func (m *MockSource) DeleteTenant(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func TestCachedSource_ReadAside(t *testing.T) {
	ctx := context.Background()
	fresh := &tenant.Tenant{ID: "tid", DisplayName: "acme-prod"}

	t.Run("Miss falls back to backend and populates cache", func(t *testing.T) {
		mockCache := new(MockCache)
		mockBackend := new(MockSource)
		source := cache.NewCachedTenantSource(mockBackend, mockCache, time.Hour)

		mockCache.On("Get", ctx, "pushadmin:tenants:tid", mock.Anything).Return(errors.New("miss"))
		mockBackend.On("Tenant", ctx, "tid").Return(fresh, nil)
		mockCache.On("Set", ctx, "pushadmin:tenants:tid", fresh, time.Hour).Return(nil)

		got, err := source.Tenant(ctx, "tid")
		require.NoError(t, err)
		assert.Equal(t, fresh, got)
		mockCache.AssertExpectations(t)
		mockBackend.AssertExpectations(t)
	})

	t.Run("Hit skips the backend", func(t *testing.T) {
		mockCache := new(MockCache)
		mockBackend := new(MockSource)
		source := cache.NewCachedTenantSource(mockBackend, mockCache, time.Hour)

		mockCache.On("Get", ctx, "pushadmin:tenants:tid", mock.Anything).Return(nil)

		_, err := source.Tenant(ctx, "tid")
		require.NoError(t, err)
		mockBackend.AssertNotCalled(t, "Tenant", mock.Anything, mock.Anything)
	})

	t.Run("Cache set failure is ignored", func(t *testing.T) {
		mockCache := new(MockCache)
		mockBackend := new(MockSource)
		source := cache.NewCachedTenantSource(mockBackend, mockCache, time.Hour)

		mockCache.On("Get", ctx, mock.Anything, mock.Anything).Return(errors.New("miss"))
		mockBackend.On("Tenant", ctx, "tid").Return(fresh, nil)
		mockCache.On("Set", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

		got, err := source.Tenant(ctx, "tid")
		require.NoError(t, err)
		assert.Equal(t, fresh, got)
	})
}

func TestCachedSource_ImmediateInvalidation(t *testing.T) {
	ctx := context.Background()
	updated := &tenant.Tenant{ID: "tid", DisplayName: "renamed"}

	t.Run("Update invalidates", func(t *testing.T) {
		mockCache := new(MockCache)
		mockBackend := new(MockSource)
		source := cache.NewCachedTenantSource(mockBackend, mockCache, time.Hour)

		spec := (&tenant.TenantToUpdate{}).DisplayName("renamed")
		mockBackend.On("UpdateTenant", ctx, "tid", spec).Return(updated, nil)
		mockCache.On("Del", ctx, "pushadmin:tenants:tid").Return(nil)

		got, err := source.UpdateTenant(ctx, "tid", spec)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
		mockCache.AssertExpectations(t)
	})

	t.Run("Delete invalidates even after backend success", func(t *testing.T) {
		mockCache := new(MockCache)
		mockBackend := new(MockSource)
		source := cache.NewCachedTenantSource(mockBackend, mockCache, time.Hour)

		mockBackend.On("DeleteTenant", ctx, "tid").Return(nil)
		mockCache.On("Del", ctx, "pushadmin:tenants:tid").Return(nil)

		require.NoError(t, source.DeleteTenant(ctx, "tid"))
		mockCache.AssertExpectations(t)
	})

	t.Run("Backend failure skips invalidation", func(t *testing.T) {
		mockCache := new(MockCache)
		mockBackend := new(MockSource)
		source := cache.NewCachedTenantSource(mockBackend, mockCache, time.Hour)

		mockBackend.On("DeleteTenant", ctx, "tid").Return(errors.New("backend down"))

		require.Error(t, source.DeleteTenant(ctx, "tid"))
		mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
	})
}

// TestRedisClient_RoundTrip exercises the real Redis wrapper against an
// in-process server.
func TestRedisClient_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := cache.NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	stored := &tenant.Tenant{ID: "tid", DisplayName: "acme-prod", AllowPasswordSignUp: true}

	require.NoError(t, client.Set(ctx, "pushadmin:tenants:tid", stored, time.Hour))

	var loaded tenant.Tenant
	require.NoError(t, client.Get(ctx, "pushadmin:tenants:tid", &loaded))
	assert.Equal(t, *stored, loaded)

	require.NoError(t, client.Del(ctx, "pushadmin:tenants:tid"))
	assert.Error(t, client.Get(ctx, "pushadmin:tenants:tid", &loaded), "deleted key must read as a miss")

	t.Run("TTL expiry forces a miss", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "pushadmin:tenants:ttl", stored, time.Minute))
		mr.FastForward(2 * time.Minute)
		var out tenant.Tenant
		assert.Error(t, client.Get(ctx, "pushadmin:tenants:ttl", &out))
	})
}
