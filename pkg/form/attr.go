package form

import (
	"regexp"
	"sync"
)

// attrMatch locates one attribute inside a tag.
type attrMatch struct {
	start, end int // span of ` name="value"` including the leading space
	value      string
	quote      byte
}

var attrPatterns sync.Map // attribute name -> *regexp.Regexp

func attrPattern(name string) *regexp.Regexp {
	if re, ok := attrPatterns.Load(name); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?i)\s` + regexp.QuoteMeta(name) + `=(?:"([^"]*)"|'([^']*)')`)
	actual, _ := attrPatterns.LoadOrStore(name, re)
	return actual.(*regexp.Regexp)
}

// findAttr returns the first occurrence of attribute name in tag.
func findAttr(tag, name string) (attrMatch, bool) {
	loc := attrPattern(name).FindStringSubmatchIndex(tag)
	if loc == nil {
		return attrMatch{}, false
	}
	m := attrMatch{start: loc[0], end: loc[1]}
	if loc[2] >= 0 {
		m.value, m.quote = tag[loc[2]:loc[3]], '"'
	} else {
		m.value, m.quote = tag[loc[4]:loc[5]], '\''
	}
	return m, true
}

// attr returns the value of attribute name in tag.
func attr(tag, name string) (string, bool) {
	m, ok := findAttr(tag, name)
	return m.value, ok
}
