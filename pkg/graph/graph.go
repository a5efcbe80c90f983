package graph

import (
	"quantengine/pkg/key"
)

// Graph is a mapping Key -> Task plus the two indexes described in §3.3.
// Hash (order-sensitive) is the storage identity: two Keys naming the same
// dims in a different order occupy distinct slots, and the unsorted-key
// index is what lets a lookup in the "wrong" dim order still find the one
// that was actually inserted. Not safe for concurrent use by multiple
// goroutines without external synchronization — see pkg/compute.
type Graph struct {
	tasks         map[string]Task    // key.Hash() -> Task
	keysByHash    map[string]key.Key // key.Hash() -> Key, for iteration/describe
	fullIndex     map[string]key.Key // name -> canonical full-dim Key
	unsortedIndex map[string]key.Key // key.UnsortedIdentity() -> stored Key
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		tasks:         map[string]Task{},
		keysByHash:    map[string]key.Key{},
		fullIndex:     map[string]key.Key{},
		unsortedIndex: map[string]key.Key{},
	}
}

// Insert stores task at k, replacing any prior task there, and updates
// both indexes.
func (g *Graph) Insert(k key.Key, t Task) {
	h := k.Hash()
	g.tasks[h] = t
	g.keysByHash[h] = k
	g.unsortedIndex[k.UnsortedIdentity()] = k

	if existing, ok := g.fullIndex[k.Name()]; !ok || len(k.Dims()) >= len(existing.Dims()) {
		g.fullIndex[k.Name()] = k
	}
}

// Remove deletes the task stored at k, if any, and cleans up the indexes
// if they currently point at this exact key.
func (g *Graph) Remove(k key.Key) {
	h := k.Hash()
	delete(g.tasks, h)
	delete(g.keysByHash, h)
	if cur, ok := g.unsortedIndex[k.UnsortedIdentity()]; ok && cur.Hash() == h {
		delete(g.unsortedIndex, k.UnsortedIdentity())
	}
	if cur, ok := g.fullIndex[k.Name()]; ok && cur.Hash() == h {
		delete(g.fullIndex, k.Name())
		g.recomputeFullIndex(k.Name())
	}
}

// recomputeFullIndex rebuilds the full-key entry for name after the
// previous canonical key was removed, choosing the remaining stored key
// with the most dims (ties broken arbitrarily by map iteration order,
// since insertion order is not separately tracked once a key is evicted).
func (g *Graph) recomputeFullIndex(name string) {
	var best *key.Key
	for h, k := range g.keysByHash {
		if k.Name() != name {
			continue
		}
		if best == nil || len(k.Dims()) > len(best.Dims()) {
			kk := g.keysByHash[h]
			best = &kk
		}
	}
	if best != nil {
		g.fullIndex[name] = *best
	}
}

// Pop removes and returns the task stored at k.
func (g *Graph) Pop(k key.Key) (Task, bool) {
	t, ok := g.tasks[k.Hash()]
	if ok {
		g.Remove(k)
	}
	return t, ok
}

// Get returns the task stored at k without removing it.
func (g *Graph) Get(k key.Key) (Task, bool) {
	t, ok := g.tasks[k.Hash()]
	return t, ok
}

// Has reports whether k (in exactly the dim order given) has a stored
// task.
func (g *Graph) Has(k key.Key) bool {
	_, ok := g.tasks[k.Hash()]
	return ok
}

// FullKey returns the canonical full-dimensionality Key most recently
// inserted for name, or false if nothing has been inserted under that
// name.
func (g *Graph) FullKey(name string) (key.Key, bool) {
	k, ok := g.fullIndex[name]
	return k, ok
}

// UnsortedKey returns the stored Key matching k's (name, set(dims), tag)
// identity regardless of the dim order k was given in, or false if no
// such key has been inserted.
func (g *Graph) UnsortedKey(k key.Key) (key.Key, bool) {
	stored, ok := g.unsortedIndex[k.UnsortedIdentity()]
	return stored, ok
}

// Resolve looks up k against both indexes, preferring an exact unsorted
// match and falling back to the name's full key as stored (k's own dims
// are not applied to it). Used by Computer.add to rewrite task arguments to their
// canonical stored form.
func (g *Graph) Resolve(k key.Key) (key.Key, bool) {
	if stored, ok := g.UnsortedKey(k); ok {
		return stored, true
	}
	if full, ok := g.FullKey(k.Name()); ok {
		return full, true
	}
	return key.Key{}, false
}

// Infer resolves keyLike to the full key for its name with dims outside
// requiredDims dropped, or returns keyLike unchanged if its name has no
// full key on record.
func (g *Graph) Infer(keyLike key.Key, requiredDims []string) key.Key {
	full, ok := g.FullKey(keyLike.Name())
	if !ok {
		return keyLike
	}
	allowed := make(map[string]struct{}, len(requiredDims))
	for _, d := range requiredDims {
		allowed[d] = struct{}{}
	}
	var drop []string
	for _, d := range full.Dims() {
		if _, ok := allowed[d]; !ok {
			drop = append(drop, d)
		}
	}
	return full.Drop(drop...)
}

// Keys returns every Key currently stored, in no particular order.
func (g *Graph) Keys() []key.Key {
	out := make([]key.Key, 0, len(g.keysByHash))
	for _, k := range g.keysByHash {
		out = append(out, k)
	}
	return out
}

// Len returns the number of stored tasks.
func (g *Graph) Len() int { return len(g.tasks) }
