package world

// MapRegistry tracks which maps have finished their own init. Implements
// ecs.MapService. Game loop only.
type MapRegistry struct {
	initialized map[int32]bool
}

func NewMapRegistry() *MapRegistry {
	return &MapRegistry{initialized: make(map[int32]bool, 8)}
}

func (m *MapRegistry) MarkInitialized(mapID int32) {
	m.initialized[mapID] = true
}

func (m *MapRegistry) IsMapInitialized(mapID int32) bool {
	return m.initialized[mapID]
}
