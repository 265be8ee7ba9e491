package rag

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// Registry tracks which index answers for which call. Uploads without a call
// id go to the global index that every call falls back to.
//
// Indexes are handed out as leases. A replaced or removed index is released
// once the last lease on it is returned, so a search that started before a
// swap still runs against live data.
type Registry struct {
	mu     sync.RWMutex
	global *entry
	calls  *cache.Cache
}

type entry struct {
	idx   Index
	scope string

	mu       sync.Mutex
	leases   int
	retired  bool
	released bool
}

func (e *entry) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retired {
		return false
	}
	e.leases++
	return true
}

func (e *entry) done() {
	e.mu.Lock()
	e.leases--
	free := e.retired && e.leases == 0 && !e.released
	if free {
		e.released = true
	}
	e.mu.Unlock()

	if free {
		release(e.idx, e.scope)
	}
}

func (e *entry) retire() {
	e.mu.Lock()
	e.retired = true
	free := e.leases == 0 && !e.released
	if free {
		e.released = true
	}
	e.mu.Unlock()

	if free {
		release(e.idx, e.scope)
	}
}

// NewRegistry creates a registry whose per-call indexes expire after ttl of
// inactivity. A zero ttl never expires them.
func NewRegistry(ttl time.Duration) *Registry {
	expiration := ttl
	cleanup := ttl / 2
	if ttl <= 0 {
		expiration = cache.NoExpiration
		cleanup = 0
	}

	r := &Registry{calls: cache.New(expiration, cleanup)}
	r.calls.OnEvicted(func(_ string, v interface{}) {
		if e, ok := v.(*entry); ok {
			e.retire()
		}
	})
	return r
}

// Set makes idx the index for callID, or the global index when callID is
// empty. The previous index of that scope is released once no lease holds it.
func (r *Registry) Set(callID string, idx Index) {
	next := &entry{idx: idx, scope: scopeName(callID)}

	r.mu.Lock()
	var previous *entry
	if callID == "" {
		previous = r.global
		r.global = next
	} else {
		if v, ok := r.calls.Get(callID); ok {
			previous, _ = v.(*entry)
		}
		r.calls.SetDefault(callID, next)
	}
	r.mu.Unlock()

	if previous != nil && previous.idx != idx {
		previous.retire()
	}
}

// Acquire leases the index visible to a call: its own index first, then the
// global one. done must be called once the caller is finished searching.
func (r *Registry) Acquire(callID string) (idx Index, done func(), ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e := r.lookup(callID); e != nil && e.acquire() {
		var once sync.Once
		return e.idx, func() { once.Do(e.done) }, true
	}
	return nil, func() {}, false
}

// Has reports whether an index is visible to the call
func (r *Registry) Has(callID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(callID) != nil
}

// lookup must be called with r.mu held
func (r *Registry) lookup(callID string) *entry {
	if callID != "" {
		if v, ok := r.calls.Get(callID); ok {
			// refresh the expiry of an index that is in use
			r.calls.SetDefault(callID, v)
			return v.(*entry)
		}
	}
	return r.global
}

// RemoveCall drops the index of a call. The global index is kept.
func (r *Registry) RemoveCall(callID string) {
	if callID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Delete triggers the eviction callback which retires the entry
	r.calls.Delete(callID)
}

// Len returns the number of per-call indexes
func (r *Registry) Len() int {
	return r.calls.ItemCount()
}

// Close retires every index
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.global != nil {
		r.global.retire()
		r.global = nil
	}
	for callID := range r.calls.Items() {
		r.calls.Delete(callID)
	}
}

func scopeName(callID string) string {
	if callID == "" {
		return "global"
	}
	return "call:" + callID
}

func release(idx Index, scope string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := idx.Release(ctx); err != nil {
		log.Warn().Err(err).Str("scope", scope).Str("document_id", idx.Info().ID).Msg("Failed to release index")
		return
	}
	log.Debug().Str("scope", scope).Str("document_id", idx.Info().ID).Msg("Index released")
}
