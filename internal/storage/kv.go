// Package storage remembers identity across restarts. The engine treats it
// as an opaque string key-value store; record freshness is enforced by the
// reader, never by the store.
package storage

// KV is durable key -> string storage. Values are opaque to the store.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string)
}
