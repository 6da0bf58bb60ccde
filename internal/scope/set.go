package scope

// Set is a hierarchical set built on Map.
type Set[T comparable] struct {
	m *Map[T, struct{}]
}

// NewSet returns an empty root set.
func NewSet[T comparable]() *Set[T] {
	return &Set[T]{m: NewMap[T, struct{}]()}
}

// Child returns a set layered on top of s.
func (s *Set[T]) Child() *Set[T] {
	return &Set[T]{m: s.m.Child()}
}

// Add inserts v into the local layer. Returns false if v was already visible.
func (s *Set[T]) Add(v T) bool {
	if s.m.Has(v) {
		return false
	}
	s.m.Put(v, struct{}{})
	return true
}

// Has reports whether v is visible.
func (s *Set[T]) Has(v T) bool {
	return s.m.Has(v)
}

// Remove deletes v, copying ancestor entries on demand.
func (s *Set[T]) Remove(v T) bool {
	return s.m.Remove(v)
}

// Len returns the number of visible members.
func (s *Set[T]) Len() int {
	return s.m.Len()
}

// Range calls fn for every visible member until fn returns false.
func (s *Set[T]) Range(fn func(T) bool) {
	s.m.Range(func(k T, _ struct{}) bool { return fn(k) })
}

// Items returns the visible members in unspecified order.
func (s *Set[T]) Items() []T {
	return s.m.Keys()
}
