package persona

// Store exposes persona retrieval for handlers and the chat pipeline.
type Store interface {
	List() []Persona
	Find(personaType string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice; personas are static
// configuration, not user data.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the configured persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// Find looks up a persona by its type identifier.
func (s *MemoryStore) Find(personaType string) (Persona, bool) {
	for _, item := range s.items {
		if item.Type == personaType {
			return item, true
		}
	}
	return Persona{}, false
}
