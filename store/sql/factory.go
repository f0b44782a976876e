package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-tenant-sessions/core"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithCredentialCodec overrides the payload codec used for sealed secrets.
func WithCredentialCodec(codec core.CredentialCodec) FactoryOption {
	return func(f *RepositoryFactory) {
		if codec != nil {
			f.codec = codec
		}
	}
}

// WithInstallationCache fronts installation reads with the given cache.
func WithInstallationCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.installationCache = cacheService
	}
}

type RepositoryFactory struct {
	db                *bun.DB
	secrets           core.SecretProvider
	codec             core.CredentialCodec
	installationCache repositorycache.CacheService

	credentialStore   *CredentialStore
	installationStore core.InstallationStore
}

func NewRepositoryFactory(secrets core.SecretProvider, opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{
		secrets: secrets,
		codec:   core.JSONCredentialCodec{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(
	client *persistence.Client,
	secrets core.SecretProvider,
	opts ...FactoryOption,
) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(secrets, opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, secrets core.SecretProvider, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(secrets, opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.credentialStore != nil && f.installationStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) CredentialStore() core.CredentialStore {
	if f == nil || f.credentialStore == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) InstallationStore() core.InstallationStore {
	if f == nil {
		return nil
	}
	return f.installationStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	if f.secrets == nil {
		return fmt.Errorf("sqlstore: secret provider is required")
	}
	credentialStore, err := NewCredentialStore(f.db, f.secrets, f.codec)
	if err != nil {
		return err
	}
	installationStore, err := NewInstallationStore(f.db, f.secrets, f.codec)
	if err != nil {
		return err
	}

	f.credentialStore = credentialStore
	f.installationStore = installationStore
	if f.installationCache != nil {
		cached, cacheErr := NewCachedInstallationStore(installationStore, f.installationCache)
		if cacheErr != nil {
			return cacheErr
		}
		f.installationStore = cached
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
