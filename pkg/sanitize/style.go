package sanitize

import (
	"strings"

	"github.com/gorilla/css/scanner"
)

// Properties permitted in the style attribute of submitted markup.  Layout
// affecting properties such as position and display are left out so a value
// cannot break the surrounding mail template.
var mailProperties = map[string]bool{
	"background-color": true,
	"border":           true,
	"border-collapse":  true,
	"color":            true,
	"font-family":      true,
	"font-size":        true,
	"font-style":       true,
	"font-weight":      true,
	"letter-spacing":   true,
	"line-height":      true,
	"margin":           true,
	"margin-bottom":    true,
	"margin-left":      true,
	"margin-right":     true,
	"margin-top":       true,
	"padding":          true,
	"padding-bottom":   true,
	"padding-left":     true,
	"padding-right":    true,
	"padding-top":      true,
	"text-align":       true,
	"text-decoration":  true,
	"vertical-align":   true,
	"white-space":      true,
	"width":            true,
}

type styleState int

const (
	expectProperty styleState = iota
	copyDeclaration
	skipDeclaration
)

// cleanStyle drops every declaration whose property is not in mailProperties.
// Malformed input yields an empty string.
func cleanStyle(decl string) string {
	var b strings.Builder
	state := expectProperty
	scan := scanner.New(decl)
	for {
		t := scan.Next()
		switch t.Type {
		case scanner.TokenEOF:
			return b.String()
		case scanner.TokenError:
			return ""
		}
		endOfDecl := t.Type == scanner.TokenChar && t.Value == ";"
		switch state {
		case expectProperty:
			switch {
			case t.Type == scanner.TokenS:
			case t.Type == scanner.TokenIdent && mailProperties[strings.ToLower(t.Value)]:
				b.WriteString(t.Value)
				state = copyDeclaration
			case endOfDecl:
			default:
				state = skipDeclaration
			}
		case copyDeclaration:
			b.WriteString(t.Value)
			if endOfDecl {
				state = expectProperty
			}
		case skipDeclaration:
			if endOfDecl {
				state = expectProperty
			}
		}
	}
}
