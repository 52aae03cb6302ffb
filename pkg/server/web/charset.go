package web

import (
	"github.com/formmailer/formmailer/pkg/form"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// pageEncoding returns the encoding of a form's charset, or nil for UTF-8 and unknown names.
func pageEncoding(charset string) encoding.Encoding {
	if charset == "" {
		return nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		log.Warn().Str("module", "web").Str("charset", charset).Msg("Unknown charset, using utf-8")
		return nil
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return nil
	}
	return enc
}

// charsetName is the name announced in the Content-Type header.
func charsetName(enc encoding.Encoding) string {
	if enc == nil {
		return "utf-8"
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return "utf-8"
	}
	return name
}

// decodePairs converts posted text from the page encoding to UTF-8.
func decodePairs(enc encoding.Encoding, pairs []form.Pair) []form.Pair {
	if enc == nil {
		return pairs
	}
	dec := enc.NewDecoder()
	out := make([]form.Pair, len(pairs))
	for i, p := range pairs {
		out[i] = p
		if s, err := dec.String(p.Name); err == nil {
			out[i].Name = s
		}
		if s, err := dec.String(p.Value); err == nil {
			out[i].Value = s
		}
	}
	return out
}

// encodePage converts a rendered page to the page encoding.  Characters the encoding lacks
// become numeric character references.
func encodePage(enc encoding.Encoding, html string) string {
	if enc == nil {
		return html
	}
	s, err := encoding.HTMLEscapeUnsupported(enc.NewEncoder()).String(html)
	if err != nil {
		log.Warn().Str("module", "web").Err(err).Msg("Failed to encode page")
		return html
	}
	return s
}
