// The blobmux provider core: link registry, invocation dispatcher and the
// operation handlers that bind inbound invocations to a backend facade.
package provider

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/blobmux/blobmux/pkg/blobmux"
)

// Link is one caller's bound session: the backend client plus the alias
// table built at link creation. Both are read-only after construction.
type Link struct {
	Store   blobmux.Storage
	Aliases blobmux.AliasTable
}

// Registry is the concurrency-safe store of links by source id. Lookups
// share a read lock; mutations hold the write lock only for the map change
// itself. Client construction, which is what can actually fail, happens
// before Upsert is called.
type Registry struct {
	mu    sync.RWMutex
	links map[string]*Link
}

func NewRegistry() *Registry {
	return &Registry{links: make(map[string]*Link)}
}

// Upsert stores link for sourceID, replacing any prior entry for the same
// source.
func (r *Registry) Upsert(sourceID string, link *Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[sourceID] = link
}

// Lookup returns the link for sourceID, or an error wrapping
// blobmux.ErrUnknownLink if none is registered.
func (r *Registry) Lookup(sourceID string) (*Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	link, ok := r.links[sourceID]
	if !ok {
		return nil, errors.Wrapf(blobmux.ErrUnknownLink, "source %q", sourceID)
	}
	return link, nil
}

// Remove deletes the entry for sourceID if present; no-op otherwise.
func (r *Registry) Remove(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, sourceID)
}

// Clear removes all entries. Used at shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = make(map[string]*Link)
}

// Sources returns the registered source ids, sorted.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sources := make([]string, 0, len(r.links))
	for id := range r.links {
		sources = append(sources, id)
	}
	sort.Strings(sources)
	return sources
}
