package qualification

import "github.com/google/uuid"

// Selection is the set of record ids marked for bulk action. It is owned
// by one operator session and is always kept within the current filtered
// view: filter changes prune members that fell out of it, and the set is
// cleared whenever the raw collection is refetched.
type Selection struct {
	ids map[uuid.UUID]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{ids: make(map[uuid.UUID]struct{})}
}

// Toggle flips membership of id.
func (s *Selection) Toggle(id uuid.UUID) {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// Has reports membership.
func (s *Selection) Has(id uuid.UUID) bool {
	_, ok := s.ids[id]
	return ok
}

// SelectAll replaces the set with exactly the given ids — the caller
// passes the current filtered+sorted view, never the whole collection.
func (s *Selection) SelectAll(ids []uuid.UUID) {
	s.ids = make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Clear empties the set.
func (s *Selection) Clear() {
	s.ids = make(map[uuid.UUID]struct{})
}

// Retain drops every member not present in keep, preserving the
// invariant that a selected id belongs to the visible view.
func (s *Selection) Retain(keep []uuid.UUID) {
	allowed := make(map[uuid.UUID]struct{}, len(keep))
	for _, id := range keep {
		allowed[id] = struct{}{}
	}
	for id := range s.ids {
		if _, ok := allowed[id]; !ok {
			delete(s.ids, id)
		}
	}
}

// Len reports the number of selected ids.
func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns the members in unspecified order.
func (s *Selection) IDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}
