// Package kana converts between full-width and half-width forms of Latin
// letters, digits, symbols and Japanese kana.  Conversions are selected with
// the single letter flags used by Japanese form processors:
//
//	r / R  full-width letters to half-width / the reverse
//	n / N  full-width digits to half-width / the reverse
//	a / A  full-width letters, digits and symbols to half-width / the reverse
//	s / S  full-width space to half-width / the reverse
//	k / K  full-width katakana to half-width katakana / the reverse
//	h / H  full-width hiragana to half-width katakana / the reverse
//	c / C  full-width katakana to hiragana / the reverse
//	V      with K or H, merge a voiced sound mark into the preceding kana
package kana

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	hiraganaFirst = 0x3041
	hiraganaLast  = 0x3096
	katakanaFirst = 0x30A1
	katakanaLast  = 0x30F6
	kanaOffset    = katakanaFirst - hiraganaFirst

	halfKanaFirst = 0xFF61
	halfKanaLast  = 0xFF9F

	combiningVoiced     = '゙'
	combiningSemiVoiced = '゚'
	halfVoiced          = 'ﾞ'
	halfSemiVoiced      = 'ﾟ'
)

type flags struct {
	r, R, n, N, a, A, s, S, k, K, h, H, c, C, V bool
}

func parseFlags(letters string) flags {
	var f flags
	for _, c := range letters {
		switch c {
		case 'r':
			f.r = true
		case 'R':
			f.R = true
		case 'n':
			f.n = true
		case 'N':
			f.N = true
		case 'a':
			f.a = true
		case 'A':
			f.A = true
		case 's':
			f.s = true
		case 'S':
			f.S = true
		case 'k':
			f.k = true
		case 'K':
			f.K = true
		case 'h':
			f.h = true
		case 'H':
			f.H = true
		case 'c':
			f.c = true
		case 'C':
			f.C = true
		case 'V':
			f.V = true
		}
	}
	return f
}

// Convert applies the conversions named by letters to s.  Unknown flag letters
// are ignored.
func Convert(s, letters string) string {
	if s == "" || letters == "" {
		return s
	}
	f := parseFlags(letters)
	if f.k || f.h {
		// Voiced katakana have no single half-width form; decompose so the
		// marks can be mapped separately.
		s = norm.NFD.String(s)
	}
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	narrowedKana := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		wasKana := narrowedKana
		narrowedKana = false
		switch {
		case isWideASCII(r) && (f.a || (f.r && isWideLetter(r)) || (f.n && isWideDigit(r))):
			if f.a && !f.r && !f.n && isExcludedSymbol(r-0xFEE0) {
				b.WriteRune(r)
				continue
			}
			b.WriteRune(r - 0xFEE0)
		case isNarrowASCII(r) && (f.A || (f.R && isNarrowLetter(r)) || (f.N && isNarrowDigit(r))):
			if f.A && !f.R && !f.N && isExcludedSymbol(r) {
				b.WriteRune(r)
				continue
			}
			b.WriteRune(r + 0xFEE0)
		case r == '　' && f.s:
			b.WriteRune(' ')
		case r == ' ' && f.S:
			b.WriteRune('　')
		case isHalfKana(r) && (f.K || f.H):
			wide := widen(r)
			if f.V && i+1 < len(runes) && (runes[i+1] == halfVoiced || runes[i+1] == halfSemiVoiced) {
				if merged, ok := mergeVoiced(wide, runes[i+1]); ok {
					wide = merged
					i++
				}
			}
			if f.H && !f.K && isKatakana(wide) {
				wide -= kanaOffset
			}
			b.WriteRune(wide)
		case (r == combiningVoiced || r == combiningSemiVoiced) && wasKana:
			if r == combiningVoiced {
				b.WriteRune(halfVoiced)
			} else {
				b.WriteRune(halfSemiVoiced)
			}
		case isHiragana(r) && f.h:
			b.WriteRune(narrow(r + kanaOffset))
			narrowedKana = true
		case isKatakanaOrMark(r) && f.k:
			b.WriteRune(narrow(r))
			narrowedKana = true
		case isKatakana(r) && f.c:
			b.WriteRune(r - kanaOffset)
		case isHiragana(r) && f.C:
			b.WriteRune(r + kanaOffset)
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if f.k || f.h {
		// Recompose anything left untouched by the decomposition above.
		out = norm.NFC.String(out)
	}
	return out
}

func isWideASCII(r rune) bool  { return r >= 0xFF01 && r <= 0xFF5E }
func isWideLetter(r rune) bool { return (r >= 'Ａ' && r <= 'Ｚ') || (r >= 'ａ' && r <= 'ｚ') }
func isWideDigit(r rune) bool  { return r >= '０' && r <= '９' }

func isNarrowASCII(r rune) bool  { return r >= 0x21 && r <= 0x7E }
func isNarrowLetter(r rune) bool { return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') }
func isNarrowDigit(r rune) bool  { return r >= '0' && r <= '9' }

// isExcludedSymbol reports the quote, backslash and tilde characters left
// alone by the a/A conversions.
func isExcludedSymbol(r rune) bool {
	return r == '"' || r == '\'' || r == '\\' || r == '~'
}

func isHiragana(r rune) bool { return r >= hiraganaFirst && r <= hiraganaLast }
func isKatakana(r rune) bool { return r >= katakanaFirst && r <= katakanaLast }
func isHalfKana(r rune) bool { return r >= halfKanaFirst && r <= halfKanaLast }

func isKatakanaOrMark(r rune) bool {
	if isKatakana(r) {
		return true
	}
	switch r {
	case 'ー', '・', '、', '。', '「', '」', '゛', '゜':
		return true
	}
	return false
}

func narrow(r rune) rune {
	switch r {
	case '゛':
		return halfVoiced
	case '゜':
		return halfSemiVoiced
	}
	if n := width.LookupRune(r).Narrow(); n != 0 {
		return n
	}
	return r
}

func widen(r rune) rune {
	switch r {
	case halfVoiced:
		return '゛'
	case halfSemiVoiced:
		return '゜'
	}
	if w := width.LookupRune(r).Wide(); w != 0 {
		return w
	}
	return r
}

// mergeVoiced composes a full-width kana with a following half-width voiced or
// semi-voiced mark, reporting false when no composed form exists.
func mergeVoiced(base, mark rune) (rune, bool) {
	combining := combiningVoiced
	if mark == halfSemiVoiced {
		combining = combiningSemiVoiced
	}
	composed := []rune(norm.NFC.String(string([]rune{base, combining})))
	if len(composed) != 1 {
		return 0, false
	}
	return composed[0], true
}
