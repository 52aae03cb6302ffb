package form

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/formmailer/formmailer/pkg/stringutil"
)

// Modes written into the hidden mode field.
const (
	ModeConfirm = "conf"
	ModeSend    = "send"
)

var (
	errorBlock    = regexp.MustCompile(`(?is)<iferror\.?([^>]+?)?>(.+?)</iferror>`)
	anyErrorBlock = regexp.MustCompile(`(?is)<iferror.*?>.+?</iferror>`)
	groupedFields = regexp.MustCompile(`^\((.+?)\)$`)
	formOpen      = regexp.MustCompile(`(?i)<form\b[^>]*>`)
	formClose     = regexp.MustCompile(`(?i)</form>`)
	validAttr     = regexp.MustCompile(`(?i)\svalid=(?:".+?"|'.+?')`)
	sendtoAttr    = regexp.MustCompile(`(?i)\ssendto=(?:".+?"|'.+?')`)
	classAttr     = regexp.MustCompile(`(?i)\sclass=(?:"([^"]*)"|'([^']*)')`)
	tagEnd        = regexp.MustCompile(`\s*/?>$`)
)

// ApplyErrorBlocks resolves <iferror>...</iferror> blocks.  A bare block is
// kept when there is any error, <iferror.name> when field name has an error
// and <iferror.(a,b)> when any listed field has one.  Kept blocks lose their
// delimiters; the rest are removed entirely.
func ApplyErrorBlocks(html string, errs *Errors) string {
	return errorBlock.ReplaceAllStringFunc(html, func(block string) string {
		m := errorBlock.FindStringSubmatch(block)
		qualifier, inner := m[1], m[2]
		if errorBlockMatches(qualifier, errs) {
			return inner
		}
		return ""
	})
}

func errorBlockMatches(qualifier string, errs *Errors) bool {
	if qualifier == "" {
		return !errs.Empty()
	}
	if g := groupedFields.FindStringSubmatch(qualifier); g != nil {
		for _, f := range strings.Split(g[1], ",") {
			if errs.Has(strings.ReplaceAll(f, " ", "")) {
				return true
			}
		}
		return false
	}
	return errs.Has(qualifier)
}

// StripErrorBlocks removes every <iferror> block.
func StripErrorBlocks(html string) string {
	return anyErrorBlock.ReplaceAllString(html, "")
}

// AssignErrorClass appends class to the class attribute of every control
// belonging to a field with errors, adding the attribute when missing.
func AssignErrorClass(html string, errs *Errors, class string) string {
	if class == "" || errs.Empty() {
		return html
	}
	for _, field := range errs.Fields() {
		q := regexp.QuoteMeta(field)
		re := regexp.MustCompile(`(?is)<(input|textarea|select)[^>]*?\sname=(?:"` + q + `(?:\[\])?"|'` + q + `(?:\[\])?')[^/>]*/?>`)
		html = re.ReplaceAllStringFunc(html, func(tag string) string {
			if m := classAttr.FindStringSubmatchIndex(tag); m != nil {
				// Append inside the existing quotes.
				closeQuote := m[3]
				if m[2] < 0 {
					closeQuote = m[5]
				}
				return tag[:closeQuote] + " " + class + tag[closeQuote:]
			}
			selfClose := ""
			if strings.EqualFold(tag[1:6], "input") {
				selfClose = " /"
			}
			return tagEnd.ReplaceAllString(tag, "") + fmt.Sprintf(` class="%s"`, class) + selfClose + ">"
		})
	}
	return html
}

// AddHiddenTags inserts a hidden input for every submitted value before each
// </form>, so the values travel with the next post.  List values produce one
// name[] input per element.
func AddHiddenTags(html string, values *Values) string {
	var tags []string
	for _, k := range values.Keys() {
		if k == ModeField {
			continue
		}
		v := values.Value(k)
		name := stringutil.EncodeHTML(k, false)
		if !v.IsList() {
			tags = append(tags, hiddenInput(name, v.String()))
			continue
		}
		for _, item := range v.Strings() {
			tags = append(tags, hiddenInput(name+"[]", item))
		}
	}
	if len(tags) == 0 {
		return html
	}
	return strings.ReplaceAll(html, "</form>", strings.Join(tags, "\n")+"</form>")
}

func hiddenInput(escapedName, value string) string {
	return fmt.Sprintf(`<input type="hidden" name="%s" value="%s" />`, escapedName, stringutil.EncodeHTML(value, false))
}

// AddToken inserts the one-time token field before each </form>.
func AddToken(html, token string) string {
	field := hiddenInput(TokenField, token)
	return formClose.ReplaceAllStringFunc(html, func(closing string) string {
		return field + closing
	})
}

// AddModeMarker inserts the hidden mode field right after each <form> tag.
func AddModeMarker(html, mode string) string {
	field := hiddenInput(ModeField, mode)
	return formOpen.ReplaceAllStringFunc(html, func(open string) string {
		return open + field
	})
}

// StripDirectives removes valid and sendto attributes so the validation
// markup never reaches the browser.
func StripDirectives(html string) string {
	return sendtoAttr.ReplaceAllString(validAttr.ReplaceAllString(html, ""), "")
}

// DynamicSendTo reads the value/sendto attribute pairs of the options of the
// select, or the radio buttons, named field.  The result maps a submitted
// value to its recipient list.  Nil is returned when the field is not in the
// schema or carries no pairs.
func DynamicSendTo(html string, schema Schema, field string) map[string]string {
	f, ok := schema.Lookup(field)
	if !ok {
		return nil
	}
	q := regexp.QuoteMeta(field)
	var candidates []string
	switch f.Type {
	case "select":
		sel := regexp.MustCompile(`(?is)<select[^>]*?\sname=(?:"` + q + `"|'` + q + `')[^>]*>(.+?)</select>`)
		if m := sel.FindStringSubmatch(html); m != nil {
			candidates = sendToOption.FindAllString(m[1], -1)
		}
	case "radio":
		radio := regexp.MustCompile(`(?i)<input[^>]*?\sname=(?:"` + q + `"|'` + q + `')[^>]*>`)
		candidates = radio.FindAllString(html, -1)
	}
	table := make(map[string]string)
	for _, c := range candidates {
		var value, sendto string
		pairs := sendToPair.FindAllStringSubmatch(c, -1)
		if len(pairs) != 2 {
			continue
		}
		for _, p := range pairs {
			s := p[2]
			if s == "" {
				s = p[3]
			}
			if strings.EqualFold(p[1], "value") {
				value = s
			} else {
				sendto = s
			}
		}
		if value != "" && sendto != "" {
			table[value] = sendto
		}
	}
	if len(table) == 0 {
		return nil
	}
	return table
}

var (
	sendToOption = regexp.MustCompile(`(?is)<option.+?</option>`)
	sendToPair   = regexp.MustCompile(`(?i)\b(value|sendto)=(?:"([^"]+)"|'([^']+)')`)
)
