package validate

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/formmailer/formmailer/pkg/form"
	"github.com/formmailer/formmailer/pkg/kana"
	"github.com/formmailer/formmailer/pkg/policy"
	"github.com/formmailer/formmailer/pkg/upload"
)

var (
	numeric       = regexp.MustCompile(`^\s*[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?\s*$`)
	lenParam      = regexp.MustCompile(`([0-9]+)?(-)?([0-9]+)?`)
	rangeParam    = regexp.MustCompile(`([0-9-]+)?(~)?([0-9-]+)?`)
	digitDash     = regexp.MustCompile(`([0-9])ー`)
	nonDigit      = regexp.MustCompile(`[^0-9]`)
	endsIn4       = regexp.MustCompile(`[0-9]{4}$`)
	telChars      = regexp.MustCompile(`[^0-9\-+]`)
	urlPattern    = regexp.MustCompile(`^https?://.+\..+`)
	errOutOfRange = errRule("Value is out of range")
)

func builtinRules() map[string]Rule {
	return map[string]Rule{
		"num":       ruleNum,
		"email":     ruleEmail,
		"len":       ruleLen,
		"range":     ruleRange,
		"sameas":    ruleSameAs,
		"tel":       ruleTel,
		"zip":       ruleZip,
		"allowtype": ruleAllowType,
		"allowsize": ruleAllowSize,
		"convert":   convertRule("K", false),
		"zenhan":    convertRule("VKas", true),
		"hanzen":    convertRule("VKAS", false),
		"url":       ruleURL,
		"vericode":  ruleVericode,
	}
}

// normalize rewrites the current value with the kana flags and returns it.
func normalize(c *Call, flags string) form.Value {
	v := c.Current().Map(func(s string) string { return kana.Convert(s, flags) })
	c.Set(v)
	return v
}

// all reports whether every element of v satisfies fn.
func all(v form.Value, fn func(string) bool) bool {
	for _, s := range v.Strings() {
		if !fn(s) {
			return false
		}
	}
	return true
}

func ruleNum(c *Call) error {
	if all(normalize(c, "n"), numeric.MatchString) {
		return nil
	}
	return errRule("Enter half-width digits")
}

func ruleEmail(c *Call) error {
	if all(normalize(c, "a"), policy.ValidEmail) {
		return nil
	}
	return errRule("Invalid email address format")
}

func ruleLen(c *Call) error {
	m := lenParam.FindStringSubmatch(c.Param)
	lo, sep, hi := m[1], m[2], m[3]
	length := utf8.RuneCountInString(c.Value.String())
	lower, _ := strconv.Atoi(lo)
	upper, _ := strconv.Atoi(hi)
	switch {
	case lo != "" && sep == "" && hi == "":
		if length != lower {
			return fmt.Errorf("Enter exactly %s characters", lo)
		}
	case lo == "" && sep != "" && hi != "":
		if length > upper {
			return fmt.Errorf("Enter at most %s characters", hi)
		}
	case lo != "" && sep != "" && hi == "":
		if length < lower {
			return fmt.Errorf("Enter at least %s characters", lo)
		}
	case lo != "" && sep != "" && hi != "":
		if length < lower || length > upper {
			return fmt.Errorf("Enter %s to %s characters", lo, hi)
		}
	}
	return nil
}

// ruleRange compares the raw value numerically. A single bound without '~' is an upper bound.
func ruleRange(c *Call) error {
	m := rangeParam.FindStringSubmatch(c.Param)
	lo, sep, hi := m[1], m[2], m[3]
	if lo == "" && hi == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(c.Value.String()), 64)
	if err != nil {
		return errOutOfRange
	}
	bound := func(s string) float64 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	switch {
	case lo != "" && sep == "":
		if bound(lo) < value {
			return errOutOfRange
		}
	case lo == "":
		if bound(hi) < value {
			return errOutOfRange
		}
	default:
		if value < bound(lo) {
			return errOutOfRange
		}
		if hi != "" && bound(hi) < value {
			return errOutOfRange
		}
	}
	return nil
}

// ruleSameAs clears the field on mismatch so the value is not echoed back.
func ruleSameAs(c *Call) error {
	if c.Value.Equal(c.Values.Value(c.Param)) {
		return nil
	}
	c.Values.Delete(c.Field)
	return fmt.Errorf("Does not match &laquo; %s &raquo;", c.Schema.Label(c.Param))
}

func ruleTel(c *Call) error {
	v := normalize(c, "a").Map(func(s string) string { return digitDash.ReplaceAllString(s, "$1-") })
	c.Set(v)
	for _, s := range v.Strings() {
		minLen := 5
		if strings.HasPrefix(s, "0") {
			minLen = 10
		}
		if !endsIn4.MatchString(s) {
			return errRule("Enter a valid phone number")
		}
		digits := nonDigit.ReplaceAllString(s, "")
		if telChars.MatchString(digits) || len(digits) < minLen {
			return errRule("Enter digits and hyphens correctly")
		}
	}
	return nil
}

func ruleZip(c *Call) error {
	v := normalize(c, "as").Map(func(s string) string { return nonDigit.ReplaceAllString(s, "") })
	c.Set(v)
	if !all(v, func(s string) bool { return len(s) == 7 }) {
		return errRule("Enter digits and hyphens correctly")
	}
	c.Set(v.Map(func(s string) string { return s[:3] + "-" + s[3:] }))
	return nil
}

func ruleAllowType(c *Call) error {
	f, ok := c.Ctx.uploaded(c.Field)
	if !ok {
		return nil
	}
	allowed := strings.Split(c.Param, "|")
	ins := c.Ctx.Inspector
	if ins == nil {
		ins = upload.Sniffer{}
	}
	info := upload.Resolve(ins, f)
	if info.Token == "" {
		return errRule("File type is not allowed")
	}
	for _, t := range allowed {
		if strings.TrimSpace(t) == info.Token {
			return nil
		}
	}
	return errRule("File type is not allowed")
}

func ruleAllowSize(c *Call) error {
	f, ok := c.Ctx.uploaded(c.Field)
	if !ok {
		return nil
	}
	kb, err := strconv.ParseFloat(strings.TrimSpace(c.Param), 64)
	if err != nil || kb <= 0 {
		return errRule("File size limit is not configured correctly")
	}
	size := f.Size
	if info, err := os.Stat(f.TempPath); err == nil {
		size = info.Size()
	} else if size <= 0 {
		return errRule("File upload failed")
	}
	if float64(size) <= kb*1024 {
		return nil
	}
	return fmt.Errorf("Choose a file of at most %s KB", c.Param)
}

// convertRule applies a kana conversion and always passes.
func convertRule(defaultFlags string, fixDash bool) Rule {
	return func(c *Call) error {
		flags := c.Param
		if flags == "" {
			flags = defaultFlags
		}
		v := normalize(c, flags)
		if fixDash {
			c.Set(v.Map(func(s string) string { return digitDash.ReplaceAllString(s, "$1-") }))
		}
		return nil
	}
}

func ruleURL(c *Call) error {
	if all(c.Value, urlPattern.MatchString) {
		return nil
	}
	return errRule("Enter a valid URL")
}

// ruleVericode clears the field on mismatch.
func ruleVericode(c *Call) error {
	if c.Ctx == nil || !c.Ctx.Captcha {
		return nil
	}
	if c.Value.String() == c.Ctx.Veriword {
		return nil
	}
	c.Set(form.Scalar(""))
	return errRule("Input is not correct")
}
