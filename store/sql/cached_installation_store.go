package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-tenant-sessions/core"
)

const installationCacheKeyPrefix = "tenant-sessions::installation::v1"

// CachedInstallationStore serves Lookup from cache. Installations never change
// in place, so invalidating on Create and Delete keeps reads consistent.
type CachedInstallationStore struct {
	base  core.InstallationStore
	cache repositorycache.CacheService
}

func NewCachedInstallationStore(
	base core.InstallationStore,
	cacheService repositorycache.CacheService,
) (*CachedInstallationStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base installation store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: installation cache service is required")
	}
	return &CachedInstallationStore{base: base, cache: cacheService}, nil
}

// InstallationCacheKey returns tenant-sessions::installation::v1::<tenant_id>
// with the tenant segment URL-path escaped.
func InstallationCacheKey(tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", fmt.Errorf("sqlstore: tenant id is required")
	}
	return installationCacheKeyPrefix + "::" + url.PathEscape(tenantID), nil
}

func (s *CachedInstallationStore) Create(ctx context.Context, installation core.Installation) (core.Installation, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	created, err := s.base.Create(ctx, installation)
	if err != nil {
		return core.Installation{}, err
	}
	if err := s.invalidate(ctx, created.TenantID); err != nil {
		return core.Installation{}, err
	}
	return created, nil
}

func (s *CachedInstallationStore) Get(ctx context.Context, tenantID string) (core.Installation, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Installation{}, fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	cacheKey, err := InstallationCacheKey(tenantID)
	if err != nil {
		return core.Installation{}, err
	}
	installation, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Installation, error) {
		return s.base.Get(ctx, tenantID)
	})
	if err != nil {
		return core.Installation{}, err
	}
	return cloneInstallation(installation), nil
}

func (s *CachedInstallationStore) Delete(ctx context.Context, tenantID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached installation store is not configured")
	}
	if err := s.base.Delete(ctx, tenantID); err != nil {
		return err
	}
	return s.invalidate(ctx, tenantID)
}

func (s *CachedInstallationStore) invalidate(ctx context.Context, tenantID string) error {
	cacheKey, err := InstallationCacheKey(tenantID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneInstallation(installation core.Installation) core.Installation {
	cloned := installation
	cloned.Scopes = append([]string(nil), installation.Scopes...)
	cloned.Metadata = copyAnyMap(installation.Metadata)
	return cloned
}

var _ core.InstallationStore = (*CachedInstallationStore)(nil)
