// Package scope provides hierarchical copy-on-write maps and sets used for
// nested-scope analysis state.
//
// A child table sees every entry of its ancestors but writes only to its own
// layer. Removing an entry that an ancestor owns flattens the visible
// ancestor entries into the child first, so siblings never observe each
// other's edits and the parent is never mutated through a child.
package scope

// Map is a hierarchical map. The zero value is not usable; use NewMap.
type Map[K comparable, V any] struct {
	local  map[K]V
	parent *Map[K, V]
}

// NewMap returns an empty root map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{local: make(map[K]V)}
}

// Child returns a new map layered on top of m. Creating a child is O(1).
func (m *Map[K, V]) Child() *Map[K, V] {
	return &Map[K, V]{local: make(map[K]V), parent: m}
}

// Parent returns the enclosing map, or nil for a root or a flattened child.
func (m *Map[K, V]) Parent() *Map[K, V] {
	return m.parent
}

// Get looks up k in m and then in each ancestor.
func (m *Map[K, V]) Get(k K) (V, bool) {
	for cur := m; cur != nil; cur = cur.parent {
		if v, ok := cur.local[k]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Has reports whether k is visible from m.
func (m *Map[K, V]) Has(k K) bool {
	_, ok := m.Get(k)
	return ok
}

// Put stores k in the local layer, shadowing any ancestor entry.
func (m *Map[K, V]) Put(k K, v V) {
	m.local[k] = v
}

// Remove deletes k as seen from m. If an ancestor owns k, the visible
// ancestor entries are first copied into the local layer and the link to the
// parent is dropped. Returns whether k was present.
func (m *Map[K, V]) Remove(k K) bool {
	if _, ok := m.local[k]; ok {
		delete(m.local, k)
		if m.parent == nil || !m.parent.Has(k) {
			return true
		}
		// an ancestor still has k; fall through and detach
	} else if m.parent == nil || !m.parent.Has(k) {
		return false
	}
	m.flatten()
	delete(m.local, k)
	return true
}

// Len returns the number of distinct visible keys.
func (m *Map[K, V]) Len() int {
	n := 0
	m.Range(func(K, V) bool {
		n++
		return true
	})
	return n
}

// Range calls fn for every visible entry, innermost layer first. Shadowed
// ancestor entries are skipped. Iteration stops when fn returns false.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	if m.parent == nil {
		for k, v := range m.local {
			if !fn(k, v) {
				return
			}
		}
		return
	}
	seen := make(map[K]struct{})
	for cur := m; cur != nil; cur = cur.parent {
		for k, v := range cur.local {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if !fn(k, v) {
				return
			}
		}
	}
}

// Keys returns the visible keys in unspecified order.
func (m *Map[K, V]) Keys() []K {
	out := make([]K, 0, len(m.local))
	m.Range(func(k K, _ V) bool {
		out = append(out, k)
		return true
	})
	return out
}

// flatten copies every visible ancestor entry not shadowed locally into the
// local layer and detaches m from its parent.
func (m *Map[K, V]) flatten() {
	for cur := m.parent; cur != nil; cur = cur.parent {
		for k, v := range cur.local {
			if _, ok := m.local[k]; ok {
				continue
			}
			m.local[k] = v
		}
	}
	m.parent = nil
}
