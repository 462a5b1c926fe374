package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prototype is the static template an entity can be allocated from.
type Prototype struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Anchored    bool     `yaml:"anchored"`
	Script      string   `yaml:"script"`   // Lua hook table name, optional
	Children    []string `yaml:"children"` // child prototype ids to spawn and attach
}

type prototypeFile struct {
	Prototypes []Prototype `yaml:"prototypes"`
}

// PrototypeTable holds all prototypes indexed by id.
type PrototypeTable struct {
	protos map[string]*Prototype
}

// LoadPrototypeTable loads prototypes from a YAML file.
func LoadPrototypeTable(path string) (*PrototypeTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prototypes: %w", err)
	}
	var f prototypeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prototypes %s: %w", path, err)
	}
	t := &PrototypeTable{protos: make(map[string]*Prototype, len(f.Prototypes))}
	for i := range f.Prototypes {
		p := &f.Prototypes[i]
		if p.ID == "" {
			return nil, fmt.Errorf("parse prototypes %s: entry %d has no id", path, i)
		}
		if _, ok := t.protos[p.ID]; ok {
			return nil, fmt.Errorf("parse prototypes %s: duplicate id %q", path, p.ID)
		}
		t.protos[p.ID] = p
	}
	return t, nil
}

// EmptyPrototypeTable is used when no data file is configured.
func EmptyPrototypeTable() *PrototypeTable {
	return &PrototypeTable{protos: make(map[string]*Prototype)}
}

func (t *PrototypeTable) Get(id string) (*Prototype, bool) {
	p, ok := t.protos[id]
	return p, ok
}

func (t *PrototypeTable) Len() int {
	return len(t.protos)
}
