package placeholder

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/formmailer/formmailer/pkg/form"
)

type builtinFilter func(v form.Value, param, join string) string

func builtinFilters() map[string]builtinFilter {
	return map[string]builtinFilter{
		"implode":    implode,
		"implodetag": implodeTag,
		"num":        eachJoined(formatNumber),
		"dateformat": eachJoined(formatDate),
		"sprintf":    eachJoined(sprintf),
	}
}

// eachJoined applies fn to a scalar, or to every list element joining the
// results with the placeholder separator.
func eachJoined(fn func(s, param string) string) builtinFilter {
	return func(v form.Value, param, join string) string {
		return v.Map(func(s string) string { return fn(s, param) }).Join(join)
	}
}

// implode joins a list with param; the two characters \n in param stand for
// a line break.
func implode(v form.Value, param, _ string) string {
	return v.Join(strings.ReplaceAll(param, `\n`, "\n"))
}

// implodeTag wraps each element in <param>...</param>.
func implodeTag(v form.Value, param, _ string) string {
	var b strings.Builder
	for _, s := range v.Strings() {
		fmt.Fprintf(&b, "<%[1]s>%[2]s</%[1]s>", param, s)
	}
	return b.String()
}

var numberPrinter = message.NewPrinter(language.English)

// formatNumber rounds to a whole number and groups thousands with commas.
// Non numeric input is returned unchanged.
func formatNumber(s, _ string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	return numberPrinter.Sprintf("%d", int64(math.Round(f)))
}

var strftimeTokens = strings.NewReplacer(
	"%Y", "Y", "%y", "y", "%m", "m", "%d", "d", "%H", "H", "%M", "i",
	"%S", "s", "%B", "F", "%b", "M", "%A", "l", "%a", "D", "%e", "j",
	"%I", "h", "%p", "A", "%w", "w",
)

// formatDate parses s as a date and formats it with param, a date token
// string such as "Y/m/d H:i".  strftime style %-tokens are translated first.
// Unparseable input is returned unchanged.
func formatDate(s, param string) string {
	t, err := dateparse.ParseIn(strings.TrimSpace(s), time.Local)
	if err != nil {
		return s
	}
	if strings.Contains(param, "%") {
		param = strftimeTokens.Replace(param)
	}
	return FormatDate(t, param)
}

var printfVerb = regexp.MustCompile(`%[-+ 0#]*\d*(?:\.\d+)?([bcdeEfFgGosuxX])`)

// sprintf formats s with the printf style template param.  The argument is
// converted to a number when the first verb calls for one.
func sprintf(s, param string) string {
	m := printfVerb.FindStringSubmatch(param)
	if m == nil {
		return param
	}
	format := strings.NewReplacer("%u", "%d", "%F", "%f").Replace(param)
	switch m[1] {
	case "b", "c", "d", "o", "u", "x", "X":
		f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return fmt.Sprintf(format, int64(f))
	case "e", "E", "f", "F", "g", "G":
		f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return fmt.Sprintf(format, f)
	}
	return fmt.Sprintf(format, s)
}
