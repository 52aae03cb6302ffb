package luahost

import (
	"errors"
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

const (
	formMailerName         = "formmailer"
	formMailerRegistryName = "formmailer_registry"
	formMailerBeforeName   = "formmailer_before"
	formMailerAfterName    = "formmailer_after"
)

// FormMailer is the formmailer global, it collects the functions a script defines.
type FormMailer struct {
	Validators *FuncRegistry
	Filters    *FuncRegistry
	Modifiers  *FuncRegistry
	Before     FormMailerBeforeFuncs
	After      FormMailerAfterFuncs
}

// FuncRegistry holds named functions, as in `function formmailer.validator.kana(value, param)`.
type FuncRegistry struct {
	kind  string
	funcs map[string]*lua.LFunction
}

func newFuncRegistry(kind string) *FuncRegistry {
	return &FuncRegistry{kind: kind, funcs: make(map[string]*lua.LFunction)}
}

// Func returns the function registered as name, or nil.
func (r *FuncRegistry) Func(name string) *lua.LFunction {
	return r.funcs[name]
}

// Names returns the registered names in sorted order.
func (r *FuncRegistry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type FormMailerBeforeFuncs struct {
	MailSent *lua.LFunction
}

type FormMailerAfterFuncs struct {
	SubmissionSent *lua.LFunction
}

func registerFormMailerTypes(ls *lua.LState) {
	// formmailer type.
	mt := ls.NewTypeMetatable(formMailerName)
	ls.SetField(mt, "__index", ls.NewFunction(formMailerIndex))

	// formmailer.validator, .filter and .modifier type.
	mt = ls.NewTypeMetatable(formMailerRegistryName)
	ls.SetField(mt, "__index", ls.NewFunction(formMailerRegistryIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(formMailerRegistryNewIndex))

	// formmailer.before type.
	mt = ls.NewTypeMetatable(formMailerBeforeName)
	ls.SetField(mt, "__index", ls.NewFunction(formMailerBeforeIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(formMailerBeforeNewIndex))

	// formmailer.after type.
	mt = ls.NewTypeMetatable(formMailerAfterName)
	ls.SetField(mt, "__index", ls.NewFunction(formMailerAfterIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(formMailerAfterNewIndex))

	// formmailer global.
	ud := wrapUserData(ls, formMailerName, &FormMailer{
		Validators: newFuncRegistry("validator"),
		Filters:    newFuncRegistry("filter"),
		Modifiers:  newFuncRegistry("modifier"),
	})
	ls.SetGlobal(formMailerName, ud)
}

func wrapUserData(ls *lua.LState, typeName string, val any) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(typeName))

	return ud
}

func getFormMailer(ls *lua.LState) (*FormMailer, error) {
	lv := ls.GetGlobal(formMailerName)
	if lv == nil || lv == lua.LNil {
		return nil, errors.New("formmailer object was nil")
	}

	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, fmt.Errorf("formmailer object was type %s instead of UserData", lv.Type())
	}

	val, ok := ud.Value.(*FormMailer)
	if !ok {
		return nil, fmt.Errorf("formmailer object (%v) could not be cast", ud.Value)
	}

	return val, nil
}

func checkFormMailer(ls *lua.LState, pos int) *FormMailer {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*FormMailer); ok {
		return val
	}
	ls.ArgError(1, formMailerName+" expected")
	return nil
}

func checkFuncRegistry(ls *lua.LState, pos int) *FuncRegistry {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*FuncRegistry); ok {
		return val
	}
	ls.ArgError(1, formMailerRegistryName+" expected")
	return nil
}

func checkFormMailerBefore(ls *lua.LState, pos int) *FormMailerBeforeFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*FormMailerBeforeFuncs); ok {
		return val
	}
	ls.ArgError(1, formMailerBeforeName+" expected")
	return nil
}

func checkFormMailerAfter(ls *lua.LState, pos int) *FormMailerAfterFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*FormMailerAfterFuncs); ok {
		return val
	}
	ls.ArgError(1, formMailerAfterName+" expected")
	return nil
}

// formmailer getter.
func formMailerIndex(ls *lua.LState) int {
	fm := checkFormMailer(ls, 1)
	field := ls.CheckString(2)

	// Push the requested field's value onto the stack.
	switch field {
	case "validator":
		ls.Push(wrapUserData(ls, formMailerRegistryName, fm.Validators))
	case "filter":
		ls.Push(wrapUserData(ls, formMailerRegistryName, fm.Filters))
	case "modifier":
		ls.Push(wrapUserData(ls, formMailerRegistryName, fm.Modifiers))
	case "before":
		ls.Push(wrapUserData(ls, formMailerBeforeName, &fm.Before))
	case "after":
		ls.Push(wrapUserData(ls, formMailerAfterName, &fm.After))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// formmailer.validator (and friends) getter.
func formMailerRegistryIndex(ls *lua.LState) int {
	r := checkFuncRegistry(ls, 1)
	name := ls.CheckString(2)
	ls.Push(funcOrNil(r.funcs[name]))

	return 1
}

// formmailer.validator (and friends) setter.
func formMailerRegistryNewIndex(ls *lua.LState) int {
	r := checkFuncRegistry(ls, 1)
	name := ls.CheckString(2)
	if name == "" {
		ls.RaiseError("invalid formmailer.%s name %q", r.kind, name)
	}
	if ls.Get(3) == lua.LNil {
		delete(r.funcs, name)
		return 0
	}
	r.funcs[name] = ls.CheckFunction(3)

	return 0
}

// formmailer.before getter.
func formMailerBeforeIndex(ls *lua.LState) int {
	before := checkFormMailerBefore(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "mail_sent":
		ls.Push(funcOrNil(before.MailSent))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// formmailer.before setter.
func formMailerBeforeNewIndex(ls *lua.LState) int {
	before := checkFormMailerBefore(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "mail_sent":
		before.MailSent = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid formmailer.before index %q", index)
	}

	return 0
}

// formmailer.after getter.
func formMailerAfterIndex(ls *lua.LState) int {
	after := checkFormMailerAfter(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "submission_sent":
		ls.Push(funcOrNil(after.SubmissionSent))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// formmailer.after setter.
func formMailerAfterNewIndex(ls *lua.LState) int {
	after := checkFormMailerAfter(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "submission_sent":
		after.SubmissionSent = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid formmailer.after index %q", index)
	}

	return 0
}

func funcOrNil(f *lua.LFunction) lua.LValue {
	if f == nil {
		return lua.LNil
	}

	return f
}
