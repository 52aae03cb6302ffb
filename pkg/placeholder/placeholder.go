// Package placeholder replaces [+name+] tokens in templates with submitted
// values.  The full token grammar is
//
//	[+name:modifiers|filter(param)+]
//
// where the modifier chain and the filter are both optional.
package placeholder

import (
	"regexp"
	"strings"

	"github.com/formmailer/formmailer/pkg/extension"
	"github.com/formmailer/formmailer/pkg/form"
)

// DefaultJoin separates list elements when no filter is given.
const DefaultJoin = "<br/>"

// Blank is rendered in place of empty values on screens where an empty cell
// would collapse the layout.
const Blank = "&nbsp;"

var (
	token    = regexp.MustCompile(`(?is)\[\+([^+|]+)(\|(.*?)(\((.+?)\))?)?\+\]`)
	anyToken = regexp.MustCompile(`(?is)\[\+.+?\+\]`)
)

// Extensions supplies user defined filters and modifiers.
type Extensions interface {
	Filter(name string) (extension.Filter, bool)
	Modifier(name string) (extension.Modifier, bool)
}

// Engine performs placeholder substitution.
type Engine struct {
	// Ext is consulted for filters and modifiers that are not built in.  May
	// be nil.
	Ext Extensions
	// Modifiers enables the name:modifier syntax.  When disabled a colon is
	// part of the placeholder name.
	Modifiers bool

	filters map[string]builtinFilter
}

// NewEngine returns an Engine with the built-in filters and modifiers
// enabled.
func NewEngine(ext Extensions) *Engine {
	return &Engine{Ext: ext, Modifiers: true, filters: builtinFilters()}
}

// Replace substitutes every placeholder in text whose name is present in
// values.  Placeholders for unknown names are left in place so a later pass
// may fill or Clear them.  List values are joined with join unless a filter
// decides otherwise.
func (e *Engine) Replace(text string, values map[string]form.Value, join string) string {
	if text == "" || !strings.Contains(text, "[+") {
		return text
	}
	return token.ReplaceAllStringFunc(text, func(tok string) string {
		m := token.FindStringSubmatch(tok)
		name, modifiers := m[1], ""
		hasModifiers := false
		if e.Modifiers {
			if i := strings.IndexByte(name, ':'); i >= 0 {
				name, modifiers, hasModifiers = name[:i], name[i+1:], true
			}
		}
		v, ok := values[name]
		if !ok {
			return tok
		}
		if hasModifiers {
			v = form.Scalar(e.modify(v.Join(join), modifiers))
		}
		return e.filter(v, m[3], m[5], join)
	})
}

// modify runs the modifier chain.  Blank counts as empty going in and an
// empty result is rendered as Blank.
func (e *Engine) modify(s, chain string) string {
	if s == Blank {
		s = ""
	}
	for _, call := range splitModifiers(chain) {
		if fn, ok := builtinModifiers[call.name]; ok {
			s = fn(s, call.param)
			continue
		}
		if e.Ext != nil {
			if fn, ok := e.Ext.Modifier(call.name); ok {
				s = fn(s, call.param)
			}
		}
	}
	if s == "" {
		return Blank
	}
	return s
}

func (e *Engine) filter(v form.Value, name, param, join string) string {
	if name == "" {
		return v.Join(join)
	}
	filters := e.filters
	if filters == nil {
		filters = builtinFilters()
	}
	if fn, ok := filters[name]; ok {
		return fn(v, param, join)
	}
	if e.Ext != nil {
		if fn, ok := e.Ext.Filter(name); ok {
			return fn(v, param)
		}
	}
	return ""
}

// Clear removes every remaining placeholder from text.
func Clear(text string) string {
	return anyToken.ReplaceAllString(text, "")
}

// Strings wraps plain strings as scalar values.
func Strings(m map[string]string) map[string]form.Value {
	out := make(map[string]form.Value, len(m))
	for k, v := range m {
		out[k] = form.Scalar(v)
	}
	return out
}

// Merge returns the union of the maps; earlier maps win on duplicate keys.
func Merge(maps ...map[string]form.Value) map[string]form.Value {
	out := make(map[string]form.Value)
	for i := len(maps) - 1; i >= 0; i-- {
		for k, v := range maps[i] {
			out[k] = v
		}
	}
	return out
}
