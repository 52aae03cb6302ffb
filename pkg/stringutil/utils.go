package stringutil

import (
	"errors"
	"strings"

	"github.com/formmailer/formmailer/pkg/kana"
)

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Platform dependent characters that many Japanese mail clients render
// incorrectly, mapped to portable spellings.
var platformCharReplacer = strings.NewReplacer(
	"①", "(1)", "②", "(2)", "③", "(3)", "④", "(4)", "⑤", "(5)",
	"⑥", "(6)", "⑦", "(7)", "⑧", "(8)", "⑨", "(9)", "⑩", "(10)",
	"⑪", "(11)", "⑫", "(12)", "⑬", "(13)", "⑭", "(14)", "⑮", "(15)",
	"⑯", "(16)", "⑰", "(17)", "⑱", "(18)", "⑲", "(19)", "⑳", "(20)",
	"Ⅰ", "I", "Ⅱ", "II", "Ⅲ", "III", "Ⅳ", "IV", "Ⅴ", "V",
	"Ⅵ", "VI", "Ⅶ", "VII", "Ⅷ", "VIII", "Ⅸ", "IX", "Ⅹ", "X",
	"㍉", "ミリ", "㌔", "キロ", "㌢", "センチ", "㍍", "メートル", "㌘", "グラム",
	"㌧", "トン", "㌃", "アール", "㌶", "ヘクタール", "㍑", "リットル", "㍗", "ワット",
	"㌍", "カロリー", "㌦", "ドル", "㌣", "セント", "㌫", "パーセント", "㍊", "ミリバール",
	"㌻", "ページ", "㎜", "mm", "㎝", "cm", "㎞", "km", "㎎", "mg",
	"㎏", "kg", "㏄", "cc", "㎡", "平方メートル", "㍻", "平成", "〝", "「",
	"〟", "」", "№", "No.", "㏍", "k.k.", "℡", "Tel", "㊤", "(上)",
	"㊥", "(中)", "㊦", "(下)", "㊧", "(左)", "㊨", "(右)", "㈱", "(株)",
	"㈲", "(有)", "㈹", "(代)", "㍾", "明治", "㍽", "大正", "㍼", "昭和",
)

// EscapeHTML escapes the five HTML special characters, including both quote
// styles.
func EscapeHTML(s string) string {
	return htmlReplacer.Replace(s)
}

// EncodeHTML escapes s for display in an HTML page.  Half-width katakana are
// widened and platform dependent characters are folded to portable text.  When
// nl2br is set a <br /> is inserted before every line break.
func EncodeHTML(s string, nl2br bool) string {
	s = FoldPlatformChars(EscapeHTML(s))
	if nl2br {
		s = NL2BR(s)
	}
	return s
}

// FoldPlatformChars widens half-width katakana and replaces platform dependent
// characters such as circled digits and unit ligatures.
func FoldPlatformChars(s string) string {
	return platformCharReplacer.Replace(kana.Convert(s, "KV"))
}

// NL2BR inserts "<br />" before each newline sequence.
func NL2BR(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\r' && c != '\n' {
			b.WriteByte(c)
			continue
		}
		b.WriteString("<br />")
		b.WriteByte(c)
		if i+1 < len(s) && (s[i+1] == '\r' || s[i+1] == '\n') && s[i+1] != c {
			b.WriteByte(s[i+1])
			i++
		}
	}
	return b.String()
}

// SliceContains returns true if s is present in slice.
func SliceContains(slice []string, s string) bool {
	for _, v := range slice {
		if s == v {
			return true
		}
	}
	return false
}

// SplitTrim splits s on sep, trims surrounding space from each element and
// drops empty elements.
func SplitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseFormName trims a form name taken from a URL and rejects empty names and ones containing
// control characters.
func ParseFormName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("form name must not be empty")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return "", errors.New("form name contains a control character")
		}
	}
	return name, nil
}

// MakePathPrefixer returns a function that joins basePath onto absolute URL paths.  An empty
// basePath leaves paths unchanged.
func MakePathPrefixer(basePath string) func(string) string {
	basePath = strings.Trim(basePath, "/")
	if basePath == "" {
		return func(path string) string { return path }
	}
	basePath = "/" + basePath
	return func(path string) string {
		return basePath + "/" + strings.TrimLeft(path, "/")
	}
}
