package procurement

// SelectionSet is an insertion-ordered set of registry numbers. Iteration
// follows the order identifiers were first added.
type SelectionSet struct {
	order []string
	index map[string]struct{}
}

// NewSelectionSet returns an empty set.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{index: map[string]struct{}{}}
}

// Add inserts id; adding an existing id keeps its original position.
func (s *SelectionSet) Add(id string) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
}

// Remove deletes id if present.
func (s *SelectionSet) Remove(id string) {
	if _, ok := s.index[id]; !ok {
		return
	}
	delete(s.index, id)
	for i, candidate := range s.order {
		if candidate == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Set adds or removes id depending on checked.
func (s *SelectionSet) Set(id string, checked bool) {
	if checked {
		s.Add(id)
		return
	}
	s.Remove(id)
}

// Has reports membership.
func (s *SelectionSet) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the set's cardinality.
func (s *SelectionSet) Len() int { return len(s.order) }

// Items returns a copy of the members in iteration order.
func (s *SelectionSet) Items() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Clear empties the set.
func (s *SelectionSet) Clear() {
	s.order = nil
	s.index = map[string]struct{}{}
}

// Retain drops every member for which keep returns false and reports how many
// were dropped.
func (s *SelectionSet) Retain(keep func(id string) bool) int {
	kept := s.order[:0]
	dropped := 0
	for _, id := range s.order {
		if keep(id) {
			kept = append(kept, id)
			continue
		}
		delete(s.index, id)
		dropped++
	}
	s.order = kept
	return dropped
}
