// Package credstore persists the session credential pair behind a small
// key-value capability. Store implementations only move bytes; Vault layers
// the pairing rule on top: token and profile are written together and cleared
// together, never one without the other.
package credstore

import "context"

// Store is the persistent key-value capability. Implementations are
// stateless beyond their backing medium and must be safe for concurrent use.
// Save and Delete apply all given keys as one unit where the backend allows it.
type Store interface {
	// List returns all keys currently present.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the given keys. A missing key fails the
	// whole call with ErrKeyNotFound.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save writes entries, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Entry is a key-value pair. Keys are flat names without path separators.
type Entry struct {
	Key   string
	Value []byte
}
