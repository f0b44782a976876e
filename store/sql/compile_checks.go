package sqlstore

import "github.com/goliatone/go-tenant-sessions/core"

var (
	_ core.CredentialStore        = (*CredentialStore)(nil)
	_ core.InstallationStore      = (*InstallationStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
