package luahost

import (
	"github.com/formmailer/formmailer/pkg/form"
	lua "github.com/yuin/gopher-lua"
)

// valueToLua converts a submitted value: scalars become strings, lists become sequences.
func valueToLua(ls *lua.LState, v form.Value) lua.LValue {
	if !v.IsList() {
		return lua.LString(v.String())
	}
	return stringsToLua(ls, v.Strings())
}

func stringsToLua(ls *lua.LState, items []string) *lua.LTable {
	lt := ls.NewTable()
	for _, s := range items {
		lt.Append(lua.LString(s))
	}
	return lt
}

// luaToString returns strings and numbers as text.
func luaToString(lv lua.LValue) (string, bool) {
	switch v := lv.(type) {
	case lua.LString:
		return string(v), true
	case lua.LNumber:
		return v.String(), true
	}
	return "", false
}
