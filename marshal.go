package gojahttp

import (
	"net/http"
	"strings"
	"unicode/utf8"
)

// Response is the marshaled result of a completed HTTP exchange, in the
// shape script callbacks receive it.
type Response struct {
	Status  int
	Body    string
	Headers map[string]string
}

// marshalBody decodes a response body as UTF-8 text. Invalid sequences are
// replaced with U+FFFD rather than failing; decoding never errors.
func marshalBody(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// flattenHeader reduces a header multimap to a single-valued mapping,
// preserving name case as delivered by the transport. Duplicate names
// collapse to the last value, mirroring dictionary assignment.
func flattenHeader(h http.Header) map[string]string {
	m := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			m[name] = values[len(values)-1]
		}
	}
	return m
}
