package ecs

import (
	"fmt"
	"iter"
)

// TypeID identifies a registered component type. Metadata and Transform are
// always ids 0 and 1; everything registered later depends on them, so safe
// order is simply descending TypeID.
type TypeID uint16

const (
	TypeMetadata  TypeID = 0
	TypeTransform TypeID = 1
)

// Component is any per-entity data record. Lifecycle behavior is opted into
// through the hook interfaces below.
type Component any

// Initializer is run during entity initialization, dependencies first.
// An error aborts entity creation.
type Initializer interface {
	OnInit(e EntityID) error
}

// Starter is run during entity start, in the same order as Initializer.
type Starter interface {
	OnStart(e EntityID) error
}

// ShutdownHook is run during teardown, dependents first. Errors and panics
// are logged and do not stop the remaining teardown.
type ShutdownHook interface {
	OnShutdown(e EntityID) error
}

// ChangeHook observes component add/remove so the event bus can keep its
// per-type indices current.
type ChangeHook func(e EntityID, t TypeID, added bool)

// Store is the per-component-type table set: one map per registered type,
// keyed by entity id. Game-loop goroutine only.
type Store struct {
	names    []string
	byName   map[string]TypeID
	tables   []map[EntityID]Component
	onChange ChangeHook
}

func NewStore() *Store {
	s := &Store{byName: make(map[string]TypeID, 16)}
	s.RegisterType("metadata")
	s.RegisterType("transform")
	return s
}

// RegisterType adds a component type and returns its id. Registration order
// fixes the deterministic safe order for the life of the store.
func (s *Store) RegisterType(name string) TypeID {
	if t, ok := s.byName[name]; ok {
		return t
	}
	t := TypeID(len(s.names))
	s.names = append(s.names, name)
	s.byName[name] = t
	s.tables = append(s.tables, make(map[EntityID]Component, 256))
	return t
}

func (s *Store) TypeName(t TypeID) string {
	if int(t) >= len(s.names) {
		return fmt.Sprintf("type(%d)", t)
	}
	return s.names[t]
}

func (s *Store) TypeByName(name string) (TypeID, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// SetChangeHook installs the add/remove observer. One hook; the world wires
// it to the event bus at startup.
func (s *Store) SetChangeHook(fn ChangeHook) {
	s.onChange = fn
}

func (s *Store) Add(e EntityID, t TypeID, c Component) error {
	if int(t) >= len(s.tables) {
		return fmt.Errorf("add %s to entity %d: unregistered type", s.TypeName(t), e)
	}
	if _, ok := s.tables[t][e]; ok {
		return fmt.Errorf("add %s to entity %d: %w", s.TypeName(t), e, ErrDuplicateComponent)
	}
	s.tables[t][e] = c
	if s.onChange != nil {
		s.onChange(e, t, true)
	}
	return nil
}

func (s *Store) Remove(e EntityID, t TypeID) error {
	if int(t) >= len(s.tables) {
		return fmt.Errorf("remove %s from entity %d: unregistered type", s.TypeName(t), e)
	}
	if _, ok := s.tables[t][e]; !ok {
		return fmt.Errorf("remove %s from entity %d: %w", s.TypeName(t), e, ErrComponentNotFound)
	}
	delete(s.tables[t], e)
	if s.onChange != nil {
		s.onChange(e, t, false)
	}
	return nil
}

func (s *Store) Get(e EntityID, t TypeID) (Component, error) {
	c, ok := s.TryGet(e, t)
	if !ok {
		return nil, fmt.Errorf("get %s of entity %d: %w", s.TypeName(t), e, ErrComponentNotFound)
	}
	return c, nil
}

// TryGet is the non-failing lookup.
func (s *Store) TryGet(e EntityID, t TypeID) (Component, bool) {
	if int(t) >= len(s.tables) {
		return nil, false
	}
	c, ok := s.tables[t][e]
	return c, ok
}

func (s *Store) Has(e EntityID, t TypeID) bool {
	_, ok := s.TryGet(e, t)
	return ok
}

// All yields the entity's components in safe order: dependents before
// dependencies, transform and metadata last. The sequence is lazy and valid
// for a single range.
func (s *Store) All(e EntityID) iter.Seq2[TypeID, Component] {
	return func(yield func(TypeID, Component) bool) {
		for i := len(s.tables) - 1; i >= 0; i-- {
			if c, ok := s.tables[i][e]; ok {
				if !yield(TypeID(i), c) {
					return
				}
			}
		}
	}
}

// InitOrder yields the entity's components in reverse safe order, so
// dependencies (metadata, transform) come before dependents.
func (s *Store) InitOrder(e EntityID) iter.Seq2[TypeID, Component] {
	return func(yield func(TypeID, Component) bool) {
		for i := 0; i < len(s.tables); i++ {
			if c, ok := s.tables[i][e]; ok {
				if !yield(TypeID(i), c) {
					return
				}
			}
		}
	}
}

// CountOf reports how many entities carry the given type.
func (s *Store) CountOf(t TypeID) int {
	if int(t) >= len(s.tables) {
		return 0
	}
	return len(s.tables[t])
}

// Cull removes rows whose entity no longer satisfies alive and returns how
// many were dropped. Rows for dead entities are a structural inconsistency;
// the caller logs the count.
func (s *Store) Cull(alive func(EntityID) bool) int {
	n := 0
	for t := range s.tables {
		for e := range s.tables[t] {
			if !alive(e) {
				delete(s.tables[t], e)
				n++
			}
		}
	}
	return n
}
