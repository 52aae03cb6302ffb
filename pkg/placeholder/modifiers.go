package placeholder

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/formmailer/formmailer/pkg/sanitize"
	"github.com/formmailer/formmailer/pkg/stringutil"
)

type modifierCall struct {
	name  string
	param string
}

// splitModifiers parses a chain such as limit=`20`:ucase.  Parameters may be
// quoted with backticks, double or single quotes.
func splitModifiers(chain string) []modifierCall {
	var calls []modifierCall
	for chain != "" {
		end := strings.IndexAny(chain, ":=")
		if end < 0 {
			calls = append(calls, modifierCall{name: chain})
			break
		}
		call := modifierCall{name: chain[:end]}
		rest := chain[end+1:]
		if chain[end] == '=' {
			call.param, rest = modifierParam(rest)
		}
		if call.name != "" {
			calls = append(calls, call)
		}
		chain = rest
	}
	return calls
}

// modifierParam reads one parameter and returns it with the remainder of the
// chain after the next separator.
func modifierParam(s string) (param, rest string) {
	if s != "" && strings.ContainsRune("`\"'", rune(s[0])) {
		if end := strings.IndexByte(s[1:], s[0]); end >= 0 {
			param, rest = s[1:1+end], s[2+end:]
			rest = strings.TrimPrefix(rest, ":")
			return param, rest
		}
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

var builtinModifiers = map[string]func(s, param string) string{
	"ucase": func(s, _ string) string { return strings.ToUpper(s) },
	"lcase": func(s, _ string) string { return strings.ToLower(s) },
	"ucfirst": func(s, _ string) string {
		r, n := utf8.DecodeRuneInString(s)
		if n == 0 {
			return s
		}
		return string(unicode.ToUpper(r)) + s[n:]
	},
	"len": func(s, _ string) string { return strconv.Itoa(utf8.RuneCountInString(s)) },
	"limit": func(s, param string) string {
		n, err := strconv.Atoi(param)
		if err != nil {
			n = 100
		}
		if r := []rune(s); len(r) > n {
			return string(r[:n])
		}
		return s
	},
	"default": func(s, param string) string {
		if s == "" {
			return param
		}
		return s
	},
	"nl2br":      func(s, _ string) string { return stringutil.NL2BR(s) },
	"esc":        func(s, _ string) string { return stringutil.EscapeHTML(s) },
	"strip_tags": func(s, _ string) string { return sanitize.InnerText(s) },
}
