package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM that supplies prototype lifecycle
// hooks. Game-loop goroutine only. A hook table is a Lua global whose
// fields on_init, on_start, on_map_init and on_shutdown (all optional) take
// the entity's network-visible id.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates the VM and loads every .lua file in dir. A missing dir
// is not an error; an engine with no scripts answers HasHooks false for
// everything.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(dir); err != nil {
		vm.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// HasHooks reports whether a hook table with the given name exists.
func (e *Engine) HasHooks(table string) bool {
	_, ok := e.vm.GetGlobal(table).(*lua.LTable)
	return ok
}

// Call invokes table.hook(entity) if the hook is defined. A missing table
// or missing hook is a no-op; a Lua runtime error is returned to the
// caller, who applies the stage-appropriate tolerance policy.
func (e *Engine) Call(table, hook string, entity uint64) error {
	tbl, ok := e.vm.GetGlobal(table).(*lua.LTable)
	if !ok {
		return nil
	}
	fn, ok := e.vm.GetField(tbl, hook).(*lua.LFunction)
	if !ok {
		return nil
	}
	err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(entity))
	if err != nil {
		return fmt.Errorf("lua %s.%s: %w", table, hook, err)
	}
	return nil
}

// Close shuts the VM down.
func (e *Engine) Close() {
	e.vm.Close()
}
