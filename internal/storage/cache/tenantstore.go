// Package cache adds a Redis-backed read-aside layer in front of the tenant
// configuration source. Tenant settings change rarely but are read on every
// authenticated request path, so cache hits avoid a backend round trip while
// writes invalidate immediately.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-push-admin/tenant"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedTenantSource is a Decorator that adds read-aside caching to any
// tenant.Source.
type CachedTenantSource struct {
	realSource tenant.Source
	cache      CacheClient
	ttl        time.Duration
}

var _ tenant.Source = (*CachedTenantSource)(nil)

// NewCachedTenantSource creates the decorator.
func NewCachedTenantSource(realSource tenant.Source, cache CacheClient, ttl time.Duration) *CachedTenantSource {
	return &CachedTenantSource{
		realSource: realSource,
		cache:      cache,
		ttl:        ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedTenantSource) Tenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	key := s.cacheKey(id)
	var cached tenant.Tenant

	// 1. Try Cache
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		// Cache Hit
		return &cached, nil
	}

	// 2. Fallback to the backend
	fresh, err := s.realSource.Tenant(ctx, id)
	if err != nil {
		return nil, err
	}

	// 3. Populate Cache (Fire and Forget)
	// Caching is an optimization, not a transaction. If Redis is down we
	// just keep serving from the backend.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

// CreateTenant passes through; the new tenant is cached on first read.
func (s *CachedTenantSource) CreateTenant(ctx context.Context, spec *tenant.TenantToCreate) (*tenant.Tenant, error) {
	return s.realSource.CreateTenant(ctx, spec)
}

func (s *CachedTenantSource) UpdateTenant(ctx context.Context, id string, spec *tenant.TenantToUpdate) (*tenant.Tenant, error) {
	updated, err := s.realSource.UpdateTenant(ctx, id, spec)
	if err != nil {
		return nil, err
	}
	if err := s.invalidate(ctx, id); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTenant clears the cache even though the backend delete succeeded on
// its own: a stale cached config must not outlive the tenant.
func (s *CachedTenantSource) DeleteTenant(ctx context.Context, id string) error {
	if err := s.realSource.DeleteTenant(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

// --- Helpers ---

func (s *CachedTenantSource) invalidate(ctx context.Context, id string) error {
	// The next Tenant read is forced back to the backend, ensuring
	// immediate consistency for configuration changes.
	return s.cache.Del(ctx, s.cacheKey(id))
}

func (s *CachedTenantSource) cacheKey(id string) string {
	return fmt.Sprintf("pushadmin:tenants:%s", id)
}
