// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client wrapper with timeouts, Store
// adapters the replicator commits through, the push channel dialer and
// utilities to detect the current system actor for audit purposes.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
