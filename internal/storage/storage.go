// Package storage provides the durable key-value store behind the community
// gallery. Values are opaque strings; callers own the encoding. Two durable
// backends exist: a local SQLite file for single-user runs and a Postgres
// table for server deployments.
package storage

// KVStore is a localStorage-style string store. Get reports whether the key
// was present. There is no expiry and no delete; writers replace values
// wholesale, last writer wins.
type KVStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}
