package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ SessionService   = (*Service)(nil)
	_ TenantLocker     = (*MemoryTenantLocker)(nil)
	_ BackoffScheduler = ExponentialBackoffScheduler{}
	_ CredentialCodec  = JSONCredentialCodec{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
