package world

import (
	"fmt"

	"github.com/stationgo/server/internal/core/ecs"
	"github.com/stationgo/server/internal/core/event"
	"github.com/stationgo/server/internal/data"
	"github.com/stationgo/server/internal/scripting"
	"go.uber.org/zap"
)

// Loader implements ecs.ComponentLoader from the prototype table: it fills
// the mandatory components from the template, attaches the script component
// when the prototype names a hook table, and spawns child prototypes under
// the parent transform. Any error aborts entity creation; the world rolls
// back.
type Loader struct {
	protos     *data.PrototypeTable
	engine     *scripting.Engine
	bus        *event.Bus
	scriptType ecs.TypeID
	log        *zap.Logger
}

func NewLoader(protos *data.PrototypeTable, engine *scripting.Engine, bus *event.Bus, store *ecs.Store, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		protos:     protos,
		engine:     engine,
		bus:        bus,
		scriptType: store.RegisterType("script"),
		log:        log,
	}
}

func (l *Loader) LoadComponents(w *ecs.World, e ecs.EntityID, prototype string) error {
	p, ok := l.protos.Get(prototype)
	if !ok {
		return fmt.Errorf("no such prototype %q", prototype)
	}

	meta, err := w.Meta(e)
	if err != nil {
		return err
	}
	meta.Name = p.Name
	meta.Description = p.Description

	xf, err := w.TransformOf(e)
	if err != nil {
		return err
	}
	xf.Anchored = p.Anchored

	if p.Script != "" && l.engine != nil {
		sc := &ScriptComponent{Table: p.Script, engine: l.engine}
		if err := w.Store().Add(e, l.scriptType, sc); err != nil {
			return err
		}
		if l.bus != nil {
			table := p.Script
			event.SubscribeLocal(l.bus, e, func(ev ecs.EntityMapInit) {
				if err := l.engine.Call(table, "on_map_init", uint64(ev.Entity)); err != nil {
					l.log.Error("map-init hook failed",
						zap.String("table", table), zap.Error(err))
				}
			})
		}
	}

	for _, childID := range p.Children {
		c, err := w.Alloc(childID)
		if err != nil {
			return fmt.Errorf("spawn child %q: %w", childID, err)
		}
		if err := w.SetParent(c, e); err != nil {
			return fmt.Errorf("attach child %q: %w", childID, err)
		}
	}
	return nil
}
