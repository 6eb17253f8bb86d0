package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ErrFunctionNotFound is returned when ExecuteFunction targets a Lua
// function that no loaded script defines.
var ErrFunctionNotFound = errors.New("lua function not found")

// LuaEngine implements the Engine interface on a single gopher-lua
// state. The state is not safe for concurrent use, so all calls are
// serialized by a mutex.
type LuaEngine struct {
	state  *lua.LState
	config Config
	mutex  sync.Mutex
}

// NewLuaEngine creates a new Lua engine with the given configuration.
func NewLuaEngine(config Config) (*LuaEngine, error) {
	state := lua.NewState()

	engine := &LuaEngine{
		state:  state,
		config: config,
	}

	if config.EnableSandboxing {
		setupSandbox(state)
	}

	registerAPIFunctions(state)

	return engine, nil
}

// LoadScript loads a Lua script with the given name and content.
func (e *LuaEngine) LoadScript(name string, content []byte) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if err := e.state.DoString(string(content)); err != nil {
		return fmt.Errorf("failed to load script %s: %w", name, err)
	}
	return nil
}

// LoadScriptFile loads a Lua script from a file path.
func (e *LuaEngine) LoadScriptFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script file: %w", err)
	}
	return e.LoadScript(filepath.Base(path), content)
}

// LoadScriptDir loads all .lua files from a directory.
func (e *LuaEngine) LoadScriptDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read script directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lua") {
			continue
		}
		if err := e.LoadScriptFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteFunction calls a previously loaded Lua function.
func (e *LuaEngine) ExecuteFunction(ctx context.Context, funcName string, args ...interface{}) (interface{}, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	fn := e.state.GetGlobal(funcName)
	if fn == lua.LNil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, funcName)
	}

	// Bound script execution time
	if e.config.ScriptTimeoutMs > 0 {
		timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(e.config.ScriptTimeoutMs)*time.Millisecond)
		defer cancel()
		e.state.SetContext(timeoutCtx)
		defer e.state.SetContext(nil)
	}

	luaArgs := make([]lua.LValue, len(args))
	for i, arg := range args {
		luaArgs[i] = convertGoToLua(e.state, arg)
	}

	err := e.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, luaArgs...)
	if err != nil {
		return nil, fmt.Errorf("error executing lua function %s: %w", funcName, err)
	}

	result := e.state.Get(-1)
	e.state.Pop(1)

	return convertLuaToGo(result), nil
}

// Close releases the Lua state.
func (e *LuaEngine) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.state.Close()
	return nil
}
