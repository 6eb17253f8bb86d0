package scripting

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// convertLuaToGo converts a Lua value to its Go equivalent. Tables
// with consecutive integer keys become slices; other tables become
// maps keyed by string.
func convertLuaToGo(value lua.LValue) interface{} {
	switch v := value.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		maxN := v.MaxN()
		if maxN > 0 {
			// Array-like table
			slice := make([]interface{}, 0, maxN)
			for i := 1; i <= maxN; i++ {
				slice = append(slice, convertLuaToGo(v.RawGetInt(i)))
			}
			return slice
		}

		result := make(map[string]interface{})
		v.ForEach(func(key, val lua.LValue) {
			result[key.String()] = convertLuaToGo(val)
		})
		return result
	default:
		return nil
	}
}

// convertGoToLua converts a Go value to its Lua equivalent.
func convertGoToLua(L *lua.LState, value interface{}) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []interface{}:
		table := L.NewTable()
		for _, item := range v {
			table.Append(convertGoToLua(L, item))
		}
		return table
	case []string:
		table := L.NewTable()
		for _, item := range v {
			table.Append(lua.LString(item))
		}
		return table
	case map[string]interface{}:
		table := L.NewTable()
		for key, val := range v {
			L.SetField(table, key, convertGoToLua(L, val))
		}
		return table
	default:
		return lua.LString(fmt.Sprintf("%v", value))
	}
}
