package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, script string) *Engine {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hooks.lua"), []byte(script), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestCallInvokesHook(t *testing.T) {
	e := newTestEngine(t, `
crate = {}
function crate.on_init(id)
    last_init_id = id
end
`)
	if !e.HasHooks("crate") {
		t.Fatal("crate hook table not found")
	}
	if err := e.Call("crate", "on_init", 42); err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := e.vm.GetGlobal("last_init_id").String(); got != "42" {
		t.Fatalf("hook saw id %s", got)
	}
}

func TestCallMissingHookIsNoOp(t *testing.T) {
	e := newTestEngine(t, `crate = {}`)
	if err := e.Call("crate", "on_start", 1); err != nil {
		t.Fatalf("missing hook: %v", err)
	}
	if err := e.Call("no_such_table", "on_init", 1); err != nil {
		t.Fatalf("missing table: %v", err)
	}
}

func TestCallPropagatesLuaErrors(t *testing.T) {
	e := newTestEngine(t, `
boom = {}
function boom.on_start(id)
    error("refused")
end
`)
	if err := e.Call("boom", "on_start", 1); err == nil {
		t.Fatal("lua error swallowed")
	}
}

func TestMissingScriptDir(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "absent"), zap.NewNop())
	if err != nil {
		t.Fatalf("missing dir should not fail: %v", err)
	}
	defer e.Close()
	if e.HasHooks("anything") {
		t.Fatal("hooks found in empty engine")
	}
}
