package crawler

// IdentifierSet is the ordered set of identifiers seen by one discovery run.
// Insertion order is first-seen order; membership checks are O(1).
type IdentifierSet struct {
	order []string
	seen  map[string]struct{}
}

// NewIdentifierSet returns an empty set
func NewIdentifierSet() *IdentifierSet {
	return &IdentifierSet{seen: make(map[string]struct{})}
}

// Add inserts id and reports whether it was unseen
func (s *IdentifierSet) Add(id string) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// AddAll inserts ids in order and returns the ones that were unseen
func (s *IdentifierSet) AddAll(ids []string) []string {
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.Add(id) {
			fresh = append(fresh, id)
		}
	}
	return fresh
}

// Contains reports whether id has been seen
func (s *IdentifierSet) Contains(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// Len returns the number of distinct identifiers
func (s *IdentifierSet) Len() int {
	return len(s.order)
}

// Slice returns a copy of the identifiers in first-seen order
func (s *IdentifierSet) Slice() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
