package ecs

// Transform is the second mandatory component: placement plus the hierarchy
// links. Parent/Children are plain entity ids into the store, never object
// references, and together they must always form a forest. Both sides of a
// link are updated inside a single attach/detach operation, so event
// handlers never observe a half-moved entity.
type Transform struct {
	Parent   EntityID
	Children []EntityID
	Anchored bool
	LocalX   float64
	LocalY   float64
}

func (t *Transform) addChild(e EntityID) {
	t.Children = append(t.Children, e)
}

func (t *Transform) removeChild(e EntityID) {
	for i, c := range t.Children {
		if c == e {
			t.Children = append(t.Children[:i], t.Children[i+1:]...)
			return
		}
	}
}

func (t *Transform) hasChild(e EntityID) bool {
	for _, c := range t.Children {
		if c == e {
			return true
		}
	}
	return false
}
