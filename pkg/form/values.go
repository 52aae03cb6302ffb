package form

import (
	"regexp"
	"strings"
)

// Reserved field names that steer the submission flow and never become part
// of the submitted data.
const (
	ModeField  = "_mode"
	TokenField = "_cffm_token"
	ReturnFlag = "return"
)

// Value is a submitted field value, either a single string or a list of
// strings for array style fields such as name="colors[]".
type Value struct {
	scalar string
	list   []string
	isList bool
}

// Scalar returns a single string Value.
func Scalar(s string) Value {
	return Value{scalar: s}
}

// List returns a list Value holding a copy of items.
func List(items ...string) Value {
	return Value{list: append([]string{}, items...), isList: true}
}

// IsList reports whether v holds a list.
func (v Value) IsList() bool {
	return v.isList
}

// String returns the scalar value, or the list elements joined with a comma.
func (v Value) String() string {
	if v.isList {
		return strings.Join(v.list, ",")
	}
	return v.scalar
}

// Strings returns the list elements, or a one element slice for a scalar.
func (v Value) Strings() []string {
	if v.isList {
		return append([]string{}, v.list...)
	}
	return []string{v.scalar}
}

// Join joins list elements with sep; a scalar is returned unchanged.
func (v Value) Join(sep string) string {
	if v.isList {
		return strings.Join(v.list, sep)
	}
	return v.scalar
}

// IsEmpty is true for the empty string and for an empty list.
func (v Value) IsEmpty() bool {
	if v.isList {
		return len(v.list) == 0
	}
	return v.scalar == ""
}

// Contains reports whether s equals the scalar or is an element of the list.
func (v Value) Contains(s string) bool {
	if !v.isList {
		return v.scalar == s
	}
	for _, e := range v.list {
		if e == s {
			return true
		}
	}
	return false
}

// Map applies fn to the scalar or to every list element.
func (v Value) Map(fn func(string) string) Value {
	if !v.isList {
		return Scalar(fn(v.scalar))
	}
	out := make([]string, len(v.list))
	for i, e := range v.list {
		out[i] = fn(e)
	}
	return Value{list: out, isList: true}
}

// Equal compares kind and content.
func (v Value) Equal(o Value) bool {
	if v.isList != o.isList {
		return false
	}
	if !v.isList {
		return v.scalar == o.scalar
	}
	if len(v.list) != len(o.list) {
		return false
	}
	for i := range v.list {
		if v.list[i] != o.list[i] {
			return false
		}
	}
	return true
}

// Values is the submitted form: field values in order of first submission.
// The zero value is not usable; create one with NewValues.
type Values struct {
	keys []string
	m    map[string]Value
}

// NewValues returns an empty Values.
func NewValues() *Values {
	return &Values{m: make(map[string]Value)}
}

// Get returns the value of name and whether it was submitted.
func (vs *Values) Get(name string) (Value, bool) {
	if vs == nil {
		return Value{}, false
	}
	v, ok := vs.m[name]
	return v, ok
}

// Value returns the value of name, the empty scalar if it was not submitted.
func (vs *Values) Value(name string) Value {
	v, _ := vs.Get(name)
	return v
}

// Has reports whether name was submitted.
func (vs *Values) Has(name string) bool {
	_, ok := vs.Get(name)
	return ok
}

// Set stores v under name, appending name to the key order when new.
func (vs *Values) Set(name string, v Value) {
	if _, ok := vs.m[name]; !ok {
		vs.keys = append(vs.keys, name)
	}
	vs.m[name] = v
}

// SetString stores a scalar value.
func (vs *Values) SetString(name, s string) {
	vs.Set(name, Scalar(s))
}

// Delete removes name.
func (vs *Values) Delete(name string) {
	if _, ok := vs.m[name]; !ok {
		return
	}
	delete(vs.m, name)
	for i, k := range vs.keys {
		if k == name {
			vs.keys = append(vs.keys[:i], vs.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the field names in submission order.
func (vs *Values) Keys() []string {
	if vs == nil {
		return nil
	}
	return append([]string{}, vs.keys...)
}

// Len returns the number of fields.
func (vs *Values) Len() int {
	if vs == nil {
		return 0
	}
	return len(vs.keys)
}

// Clone returns a deep copy.
func (vs *Values) Clone() *Values {
	c := NewValues()
	for _, k := range vs.Keys() {
		v := vs.m[k]
		if v.isList {
			v = List(v.list...)
		}
		c.Set(k, v)
	}
	return c
}

// Equal reports whether vs and o hold the same fields with equal values.
// Field order is not significant; list element order is.
func (vs *Values) Equal(o *Values) bool {
	if vs.Len() != o.Len() {
		return false
	}
	for _, k := range vs.Keys() {
		ov, ok := o.Get(k)
		if !ok || !vs.m[k].Equal(ov) {
			return false
		}
	}
	return true
}

// Map returns the values keyed by field name, for placeholder substitution.
func (vs *Values) Map() map[string]Value {
	m := make(map[string]Value, vs.Len())
	for _, k := range vs.Keys() {
		m[k] = vs.m[k]
	}
	return m
}

// Pair is one raw name/value pair in request order.
type Pair struct {
	Name  string
	Value string
}

var trailingBlankLines = regexp.MustCompile(`(?m)\n+$`)

// Sanitize builds Values from raw request pairs.  The mode and token fields
// are dropped, NUL bytes removed, line breaks normalized to LF and runs of
// blank lines collapsed.  Names ending in [] accumulate into a list.
func Sanitize(pairs []Pair) *Values {
	vs := NewValues()
	for _, p := range pairs {
		if p.Name == ModeField || p.Name == TokenField {
			continue
		}
		s := CleanString(p.Value)
		if name, ok := strings.CutSuffix(p.Name, "[]"); ok {
			prev, _ := vs.Get(name)
			items := []string{}
			if prev.isList {
				items = prev.list
			}
			vs.Set(name, Value{list: append(items, s), isList: true})
			continue
		}
		vs.SetString(p.Name, s)
	}
	return vs
}

// CleanString applies the per value normalization of Sanitize.
func CleanString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return trailingBlankLines.ReplaceAllString(s, "\n")
}
