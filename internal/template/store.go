package template

import "fmt"

// Store is the ordered list of mappings of one template. It is not safe for
// concurrent use; the editor session serializes access.
type Store struct {
	mappings []FieldMapping
	index    map[string]int
}

// NewStore returns a store seeded with mappings, keeping their order
func NewStore(mappings []FieldMapping) (*Store, error) {
	s := &Store{index: make(map[string]int, len(mappings))}
	for _, m := range mappings {
		if err := s.Add(m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a mapping
func (s *Store) Add(m FieldMapping) error {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if _, exists := s.index[m.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
	}
	s.index[m.ID] = len(s.mappings)
	s.mappings = append(s.mappings, m)
	return nil
}

// Remove deletes the mapping with id, preserving the order of the rest
func (s *Store) Remove(id string) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}

	s.mappings = append(s.mappings[:i], s.mappings[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.mappings); j++ {
		s.index[s.mappings[j].ID] = j
	}
	return nil
}

// Update applies a patch to one mapping. The box is only changed by explicit patch fields.
func (s *Store) Update(id string, patch Patch) (FieldMapping, error) {
	i, ok := s.index[id]
	if !ok {
		return FieldMapping{}, fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}

	updated := patch.Apply(s.mappings[i])
	if err := updated.Validate(); err != nil {
		return FieldMapping{}, err
	}
	s.mappings[i] = updated
	return updated, nil
}

// Get returns the mapping with id
func (s *Store) Get(id string) (FieldMapping, bool) {
	i, ok := s.index[id]
	if !ok {
		return FieldMapping{}, false
	}
	return s.mappings[i], true
}

// List returns a copy of all mappings in insertion order
func (s *Store) List() []FieldMapping {
	out := make([]FieldMapping, len(s.mappings))
	copy(out, s.mappings)
	return out
}

// Len returns the number of mappings
func (s *Store) Len() int {
	return len(s.mappings)
}
