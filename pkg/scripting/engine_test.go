package scripting

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLuaEngine_LoadScript(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	defer engine.Close()

	err = engine.LoadScript("test", []byte(`
		function hello()
			return "Hello, World!"
		end
	`))
	assert.NoError(t, err)

	err = engine.LoadScript("invalid", []byte(`
		function invalid(
			return "This is not valid Lua"
		end
	`))
	assert.Error(t, err)
}

func TestLuaEngine_ExecuteFunction(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	defer engine.Close()

	err = engine.LoadScript("test", []byte(`
		function hello()
			return "Hello, World!"
		end

		function add(a, b)
			return a + b
		end

		function get_table()
			return {
				name = "test",
				value = 123
			}
		end

		function echo_list(items)
			return items
		end
	`))
	require.NoError(t, err)

	t.Run("string return", func(t *testing.T) {
		result, err := engine.ExecuteFunction(context.Background(), "hello")
		assert.NoError(t, err)
		assert.Equal(t, "Hello, World!", result)
	})

	t.Run("with arguments", func(t *testing.T) {
		result, err := engine.ExecuteFunction(context.Background(), "add", 5, 3)
		assert.NoError(t, err)
		assert.Equal(t, float64(8), result)
	})

	t.Run("table return", func(t *testing.T) {
		result, err := engine.ExecuteFunction(context.Background(), "get_table")
		assert.NoError(t, err)

		resultMap, ok := result.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "test", resultMap["name"])
		assert.Equal(t, float64(123), resultMap["value"])
	})

	t.Run("list round trip", func(t *testing.T) {
		result, err := engine.ExecuteFunction(context.Background(), "echo_list", []interface{}{"a", "b"})
		assert.NoError(t, err)

		resultList, ok := result.([]interface{})
		require.True(t, ok)
		assert.Equal(t, []interface{}{"a", "b"}, resultList)
	})

	t.Run("missing function", func(t *testing.T) {
		_, err := engine.ExecuteFunction(context.Background(), "does_not_exist")
		assert.ErrorIs(t, err, ErrFunctionNotFound)
	})
}

func TestLuaEngine_LoadScriptFile(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	defer engine.Close()

	path := filepath.Join(t.TempDir(), "hooks.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
		function from_file()
			return "loaded"
		end
	`), 0644))

	require.NoError(t, engine.LoadScriptFile(path))

	result, err := engine.ExecuteFunction(context.Background(), "from_file")
	assert.NoError(t, err)
	assert.Equal(t, "loaded", result)
}

func TestLuaEngine_LoadScriptDir(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	defer engine.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`
		function func_a() return "a" end
	`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`
		function func_b() return "b" end
	`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not lua"), 0644))

	require.NoError(t, engine.LoadScriptDir(dir))

	result, err := engine.ExecuteFunction(context.Background(), "func_a")
	assert.NoError(t, err)
	assert.Equal(t, "a", result)

	result, err = engine.ExecuteFunction(context.Background(), "func_b")
	assert.NoError(t, err)
	assert.Equal(t, "b", result)
}

func TestLuaEngine_Sandbox(t *testing.T) {
	engine, err := NewLuaEngine(DefaultConfig())
	require.NoError(t, err)
	defer engine.Close()

	err = engine.LoadScript("sandbox", []byte(`
		function has_os()
			return os ~= nil
		end

		function has_io()
			return io ~= nil
		end
	`))
	require.NoError(t, err)

	result, err := engine.ExecuteFunction(context.Background(), "has_os")
	assert.NoError(t, err)
	assert.Equal(t, false, result)

	result, err = engine.ExecuteFunction(context.Background(), "has_io")
	assert.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestLuaEngine_SandboxDisabled(t *testing.T) {
	engine, err := NewLuaEngine(Config{EnableSandboxing: false, ScriptTimeoutMs: 1000})
	require.NoError(t, err)
	defer engine.Close()

	err = engine.LoadScript("nosandbox", []byte(`
		function has_os()
			return os ~= nil
		end
	`))
	require.NoError(t, err)

	result, err := engine.ExecuteFunction(context.Background(), "has_os")
	assert.NoError(t, err)
	assert.Equal(t, true, result)
}
