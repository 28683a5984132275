package client

// Record is anything carrying a server-assigned id.
type Record interface {
	RecordID() string
}

// Set holds records with idempotent semantics: adding an id that is already
// present keeps the first copy, removing an absent id does nothing. Records
// keep insertion order.
type Set[T Record] struct {
	items []T
}

// Add reports whether the record was new.
func (s *Set[T]) Add(item T) bool {
	if s.Has(item.RecordID()) {
		return false
	}
	s.items = append(s.items, item)
	return true
}

// Remove reports whether a record with id was present.
func (s *Set[T]) Remove(id string) bool {
	for i, it := range s.items {
		if it.RecordID() == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Set[T]) Has(id string) bool {
	for _, it := range s.items {
		if it.RecordID() == id {
			return true
		}
	}
	return false
}

func (s *Set[T]) Len() int { return len(s.items) }

// Items returns a copy.
func (s *Set[T]) Items() []T {
	return append([]T(nil), s.items...)
}
