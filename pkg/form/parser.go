package form

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/formmailer/formmailer/pkg/sanitize"
)

// ErrNoForm is returned when a template contains no <form> element.
var ErrNoForm = errors.New("no form tag")

// Rule is one validator invocation from a valid="..." attribute.
type Rule struct {
	Name  string
	Param string
}

// Field is the schema of one named control, recovered from the template.
type Field struct {
	Name     string
	Type     string
	Required bool
	Rules    []Rule
	Label    string
}

// Schema lists fields in order of first appearance in the template.
type Schema []Field

// Lookup returns the field called name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Label returns the label of field name, or name itself when the field is
// unknown or unlabeled.
func (s Schema) Label(name string) string {
	if f, ok := s.Lookup(name); ok && f.Label != "" {
		return f.Label
	}
	return name
}

const labelByFor = `(?is)<label\s[^>]*?for=(?:"%[1]s"|'%[1]s')[^>]*>(.*?)</label>`

var (
	formBlock  = regexp.MustCompile(`(?is)<form\b[^>]*>(.+)</form>`)
	controlTag = regexp.MustCompile(`(?is)<(input|textarea|select)\b[^>]*?\sname=(?:"([^"]+)"|'([^']+)')[^>]*>`)
	ruleToken  = regexp.MustCompile(`^([^(]+)(\(([^)]*)\))?$`)

	labelCache sync.Map // element id -> *regexp.Regexp
)

// ExtractForm returns the markup between the first <form> opening tag and
// the last </form> closing tag.
func ExtractForm(html string) (string, error) {
	m := formBlock.FindStringSubmatch(html)
	if m == nil {
		return "", ErrNoForm
	}
	return m[1], nil
}

// Parse recovers the field schema from the form in html.  Every named input,
// textarea and select yields one field; later controls sharing a name are
// ignored.  The valid attribute has the form "required:rules:label", where
// rules is a comma separated list of name(param) tokens.
func Parse(html string) (Schema, error) {
	block, err := ExtractForm(html)
	if err != nil {
		return nil, err
	}
	var schema Schema
	seen := make(map[string]bool)
	for _, m := range controlTag.FindAllStringSubmatch(block, -1) {
		tag, kind := m[0], strings.ToLower(m[1])
		name := m[2]
		if name == "" {
			name = m[3]
		}
		name = strings.ReplaceAll(name, "[]", "")
		if seen[name] {
			continue
		}
		seen[name] = true

		f := Field{Name: name, Type: kind}
		if kind == "input" {
			f.Type = "text"
			if t, ok := attr(tag, "type"); ok && t != "" {
				f.Type = strings.ToLower(t)
			}
		}
		var rules string
		if valid, ok := attr(tag, "valid"); ok {
			// Parts after the third are ignored.
			parts := strings.Split(valid, ":")
			f.Required = truthy(parts[0])
			if len(parts) > 1 {
				rules = parts[1]
			}
			if len(parts) > 2 {
				f.Label = parts[2]
			}
		}
		f.Rules = ParseRules(rules)
		if f.Label == "" {
			if id, ok := attr(tag, "id"); ok && id != "" {
				f.Label = findLabel(html, id)
			}
		}
		schema = append(schema, f)
	}
	return schema, nil
}

// ParseRules splits a comma separated rule list.  Malformed tokens are
// skipped.
func ParseRules(s string) []Rule {
	var rules []Rule
	for _, tok := range strings.Split(s, ",") {
		m := ruleToken.FindStringSubmatch(strings.TrimSpace(tok))
		if m == nil {
			continue
		}
		rules = append(rules, Rule{Name: m[1], Param: m[3]})
	}
	return rules
}

func findLabel(html, id string) string {
	re := labelPattern(id)
	m := re.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return sanitize.InnerText(m[1])
}

func labelPattern(id string) *regexp.Regexp {
	if re, ok := labelCache.Load(id); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(fmt.Sprintf(labelByFor, regexp.QuoteMeta(id)))
	labelCache.Store(id, re)
	return re
}

// truthy mirrors the loose boolean used in templates and config chunks:
// anything but "" and "0" is true.
func truthy(s string) bool {
	return s != "" && s != "0"
}
