// Package sanitize cleans user supplied markup before it is rendered into
// outgoing HTML mail, and extracts plain text from template fragments.
package sanitize

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	styleSafe    = regexp.MustCompile(".*")
	markupPolicy = bluemonday.UGCPolicy().
			AllowElements("center", "font").
			AllowAttrs("color", "size").OnElements("font").
			AllowAttrs("style").Matching(styleSafe).Globally()
	strictPolicy = bluemonday.StrictPolicy()
	spaceRun     = regexp.MustCompile(`\s+`)
)

// Markup sanitizes a submitted value that is allowed to carry HTML.  Inline
// styles survive, restricted to a set of presentational properties.
func Markup(input string) (string, error) {
	filtered, err := filterStyleAttrs(input)
	if err != nil {
		return "", err
	}
	return markupPolicy.Sanitize(filtered), nil
}

// Strict removes every tag from input, leaving escaped text.
func Strict(input string) string {
	return strictPolicy.Sanitize(input)
}

// InnerText returns the text content of an HTML fragment with runs of white
// space collapsed, e.g. the visible caption of a <label> element.
func InnerText(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(spaceRun.ReplaceAllString(b.String(), " "))
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func filterStyleAttrs(input string) (string, error) {
	b := &bytes.Buffer{}
	if err := rewriteStyleAttrs(b, strings.NewReader(input)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// rewriteStyleAttrs copies the token stream from r to w, passing every style
// attribute through cleanStyle.  Tags without attributes are copied verbatim.
func rewriteStyleAttrs(w io.Writer, r io.Reader) error {
	bw := bufio.NewWriter(w)
	z := html.NewTokenizer(r)
	var tag bytes.Buffer
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return err
			}
			return bw.Flush()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr {
				if _, err := bw.Write(z.Raw()); err != nil {
					return err
				}
				continue
			}
			tag.Reset()
			tag.WriteByte('<')
			tag.Write(name)
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				value := string(val)
				if strings.EqualFold(string(key), "style") {
					if value = cleanStyle(value); value == "" {
						continue
					}
				}
				tag.WriteByte(' ')
				tag.Write(key)
				tag.WriteString(`="`)
				tag.WriteString(html.EscapeString(value))
				tag.WriteByte('"')
			}
			if tt == html.SelfClosingTagToken {
				tag.WriteByte('/')
			}
			tag.WriteByte('>')
			if _, err := bw.Write(tag.Bytes()); err != nil {
				return err
			}
		default:
			if _, err := bw.Write(z.Raw()); err != nil {
				return err
			}
		}
	}
}
