package world

import (
	"github.com/stationgo/server/internal/core/ecs"
	"github.com/stationgo/server/internal/scripting"
)

// ScriptComponent routes an entity's lifecycle hooks to its prototype's Lua
// hook table. Init and start errors abort entity creation; shutdown errors
// are returned to the world, which logs and keeps tearing down.
type ScriptComponent struct {
	Table  string
	engine *scripting.Engine
}

func (c *ScriptComponent) OnInit(e ecs.EntityID) error {
	return c.engine.Call(c.Table, "on_init", uint64(e))
}

func (c *ScriptComponent) OnStart(e ecs.EntityID) error {
	return c.engine.Call(c.Table, "on_start", uint64(e))
}

func (c *ScriptComponent) OnShutdown(e ecs.EntityID) error {
	return c.engine.Call(c.Table, "on_shutdown", uint64(e))
}
