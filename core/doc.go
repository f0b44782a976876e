// Package core holds the tenant session domain: installations, commerce
// credentials, the grant strategies that turn them into short-lived sessions
// and the refresh serialization around them. Storage, transport and job
// adapters depend on this package, never the other way around.
package core
