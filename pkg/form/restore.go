package form

import (
	"regexp"
	"strings"

	"github.com/formmailer/formmailer/pkg/stringutil"
)

var (
	openControl   = regexp.MustCompile(`(?is)<(input|textarea|select)([^>]*?)([\s/]*?)>`)
	optionTag     = regexp.MustCompile(`(?is)<option([^>]*?)\svalue=(?:"([^"]*)"|'([^']*)')([^>]*>)`)
	selectedAttr  = regexp.MustCompile(`(?is)\s*selected(?:=(?:"selected"|'selected'))?`)
	closingTagFor = map[string]string{"select": "</select>", "textarea": "</textarea>"}
	skipOnRestore = map[string]bool{"submit": true, "image": true, "file": true, "button": true, "reset": true, "hidden": true}
)

// Restore writes values back into the controls of html so a form can be
// redisplayed with what the visitor entered.  Text style inputs get a value
// attribute, checkboxes and radio buttons a checked attribute, select options
// a selected attribute and textareas their content.  Only the matched control
// markup is rewritten; everything else is copied through unchanged.
func Restore(html string, values *Values) string {
	var b strings.Builder
	b.Grow(len(html))
	last := 0
	textIndex := make(map[string]int)
	for _, loc := range openControl.FindAllStringSubmatchIndex(html, -1) {
		if loc[0] < last {
			// Inside the body of a select or textarea already consumed.
			continue
		}
		kind := strings.ToLower(html[loc[2]:loc[3]])
		attrs := html[loc[4]:loc[5]]
		tail := html[loc[6]:loc[7]]
		start, end := loc[0], loc[1]
		body := ""
		if closing, ok := closingTagFor[kind]; ok {
			i := strings.Index(strings.ToLower(html[end:]), closing)
			if i < 0 {
				continue
			}
			body = html[end : end+i]
			end += i + len(closing)
		}
		orig := html[start:end]
		replaced := restoreControl(kind, attrs, tail, body, orig, values, textIndex)
		b.WriteString(html[last:start])
		b.WriteString(replaced)
		last = end
	}
	b.WriteString(html[last:])
	return b.String()
}

func restoreControl(kind, attrs, tail, body, orig string, values *Values, textIndex map[string]int) string {
	name, ok := attr(attrs, "name")
	if !ok {
		return orig
	}
	name = strings.ReplaceAll(name, "[]", "")
	if name == ModeField {
		return orig
	}
	typ := kind
	if kind == "input" {
		typ, _ = attr(attrs, "type")
		typ = strings.ToLower(typ)
		if typ == "" {
			typ = "text"
		}
	}
	if skipOnRestore[typ] {
		return orig
	}
	value, submitted := values.Get(name)

	switch {
	case kind == "input" && typ == "checkbox":
		v, ok := attr(attrs, "value")
		if !ok || !submitted || !value.Contains(v) {
			return orig
		}
		return "<" + orig[1:1+len(kind)] + attrs + ` checked="checked"` + tail + ">"
	case kind == "input" && typ == "radio":
		v, ok := attr(attrs, "value")
		if !ok || !submitted || value.IsList() || value.String() != v {
			return orig
		}
		return "<" + orig[1:1+len(kind)] + attrs + ` checked="checked"` + tail + ">"
	case kind == "input":
		s := value.String()
		if value.IsList() {
			// Repeated text inputs for an array field take successive elements.
			items := value.Strings()
			i := textIndex[name]
			textIndex[name]++
			s = ""
			if i < len(items) {
				s = items[i]
			}
		}
		escaped := `value="` + stringutil.EncodeHTML(s, false) + `"`
		if m, ok := findAttr(attrs, "value"); ok {
			attrs = attrs[:m.start] + " " + escaped + attrs[m.end:]
		} else {
			attrs += " " + escaped
		}
		return "<" + orig[1:1+len(kind)] + attrs + tail + ">"
	case kind == "select":
		return restoreSelect(orig, body, value, submitted)
	case kind == "textarea":
		if !submitted || value.IsEmpty() {
			return orig
		}
		open := orig[:len(orig)-len(body)-len("</textarea>")]
		return open + stringutil.EncodeHTML(value.Join("\n"), false) + "</textarea>"
	}
	return orig
}

// restoreSelect clears any preselected option and selects the ones matching
// value.  Selects with fewer than two options are left alone.
func restoreSelect(orig, body string, value Value, submitted bool) string {
	opts := optionTag.FindAllStringSubmatchIndex(body, -1)
	if len(opts) < 2 {
		return orig
	}
	open := orig[:len(orig)-len(body)-len("</select>")]
	var b strings.Builder
	b.WriteString(open)
	last := 0
	for _, loc := range opts {
		v := ""
		if loc[4] >= 0 {
			v = body[loc[4]:loc[5]]
		} else {
			v = body[loc[6]:loc[7]]
		}
		before := selectedAttr.ReplaceAllString(body[loc[2]:loc[3]], "")
		after := selectedAttr.ReplaceAllString(body[loc[8]:loc[9]], "")
		valueAttr := body[loc[3]:loc[8]]
		b.WriteString(body[last:loc[0]])
		b.WriteString("<option" + before + valueAttr)
		if submitted && value.Contains(v) {
			b.WriteString(` selected="selected"`)
		}
		b.WriteString(after)
		last = loc[1]
	}
	b.WriteString(body[last:])
	b.WriteString("</select>")
	return b.String()
}
