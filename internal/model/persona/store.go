package persona

import "strings"

// Store exposes persona retrieval for handlers and the session registry.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore keeps personas in seed order with an id index.
// It is read-only after construction and safe for concurrent use.
type MemoryStore struct {
	items []Persona
	index map[string]int
}

// NewMemoryStore indexes the supplied personas. Later duplicates of an id are ignored.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{index: make(map[string]int, len(items))}
	for _, item := range items {
		key := normalizeID(item.ID)
		if _, dup := s.index[key]; dup || key == "" {
			continue
		}
		s.index[key] = len(s.items)
		s.items = append(s.items, clonePersona(item))
	}
	return s
}

// List returns every persona in seed order.
func (s *MemoryStore) List() []Persona {
	out := make([]Persona, len(s.items))
	for i, item := range s.items {
		out[i] = clonePersona(item)
	}
	return out
}

// FindByID looks a persona up; ids are matched case-insensitively.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	i, ok := s.index[normalizeID(id)]
	if !ok {
		return Persona{}, false
	}
	return clonePersona(s.items[i]), true
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func clonePersona(p Persona) Persona {
	p.QuickReplies = append([]string(nil), p.QuickReplies...)
	return p
}
