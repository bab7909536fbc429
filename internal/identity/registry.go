package identity

import (
	"sync"

	"github.com/IshaanNene/webmirror/internal/types"
)

// Registry remembers which URL owns each key so that two URLs hashing to the
// same key are reported instead of overwriting each other's artifacts.
type Registry struct {
	mu     sync.Mutex
	owners map[Key]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[Key]string)}
}

// Claim resolves rawURL and records it as the owner of the resulting key.
// Claiming the same URL twice is a no-op.
func (r *Registry) Claim(rawURL string) (Key, error) {
	key := Resolve(rawURL)

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[key]; ok && owner != rawURL {
		return key, &types.CollisionError{Key: key.String(), Existing: owner, URL: rawURL}
	}
	r.owners[key] = rawURL
	return key, nil
}

// Len returns the number of claimed keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}
