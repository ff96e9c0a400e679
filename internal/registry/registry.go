// Package registry maps short, user-facing identifiers to real storage keys.
package registry

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Registry aliases storage keys behind short ids. Implementations must be
// safe for concurrent use.
type Registry interface {
	// Register stores shortID -> key, silently overwriting an existing entry.
	Register(shortID, key string)

	// Resolve returns the key registered for shortIDOrKey, or the input
	// itself when nothing is registered under it.
	Resolve(shortIDOrKey string) string

	// Lookup returns the key registered for shortID and whether it exists.
	Lookup(shortID string) (string, bool)

	// Len returns the number of live entries.
	Len() int
}

// Options tunes retention. Zero values keep entries for the process lifetime.
type Options struct {
	// TTL expires an entry this long after it was registered
	TTL time.Duration

	// MaxEntries caps the registry size, evicting least recently used entries first
	MaxEntries int
}

// MemoryRegistry is an in-process Registry backed by an expirable LRU.
type MemoryRegistry struct {
	entries *expirable.LRU[string, string]
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates a registry with the given retention options.
func NewMemoryRegistry(opts Options) *MemoryRegistry {
	size := opts.MaxEntries
	if size < 0 {
		size = 0
	}
	return &MemoryRegistry{
		entries: expirable.NewLRU[string, string](size, nil, opts.TTL),
	}
}

func (r *MemoryRegistry) Register(shortID, key string) {
	r.entries.Add(shortID, key)
}

func (r *MemoryRegistry) Resolve(shortIDOrKey string) string {
	if key, ok := r.entries.Get(shortIDOrKey); ok {
		return key
	}
	return shortIDOrKey
}

func (r *MemoryRegistry) Lookup(shortID string) (string, bool) {
	return r.entries.Peek(shortID)
}

func (r *MemoryRegistry) Len() int {
	return r.entries.Len()
}
