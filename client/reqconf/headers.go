package reqconf

import (
	"maps"
	"net/http"
	"regexp"
	"slices"
	"strings"
)

// Entry is a single header name/value pair.
type Entry struct {
	Name  string
	Value string
}

// Headers is an immutable header set. Set and Del return a new value and
// never modify the receiver, so a Headers can be shared between pipeline
// stages. The zero value is an empty set.
type Headers struct {
	h http.Header
}

// NewHeaders builds a header set from the given entries, appending values
// for repeated names.
func NewHeaders(entries ...Entry) Headers {
	h := make(http.Header, len(entries))
	for _, e := range entries {
		h.Add(e.Name, e.Value)
	}

	return Headers{h: h}
}

// HeadersFromMap builds a header set from a plain name/value mapping.
func HeadersFromMap(m map[string]string) Headers {
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}

	return Headers{h: h}
}

// HeadersFromHTTP copies h into a header set, canonicalizing names.
func HeadersFromHTTP(h http.Header) Headers {
	out := make(http.Header, len(h))
	for name, values := range h {
		for _, v := range values {
			out.Add(name, v)
		}
	}

	return Headers{h: out}
}

// Get returns the first value for name, matched case-insensitively.
func (hs Headers) Get(name string) string {
	return hs.h.Get(name)
}

// Has reports whether name is present.
func (hs Headers) Has(name string) bool {
	_, ok := hs.h[http.CanonicalHeaderKey(name)]
	return ok
}

// Set returns a copy with name replaced by value.
func (hs Headers) Set(name, value string) Headers {
	cpy := hs.clone()
	cpy.Set(name, value)

	return Headers{h: cpy}
}

// Del returns a copy without name.
func (hs Headers) Del(name string) Headers {
	cpy := hs.clone()
	cpy.Del(name)

	return Headers{h: cpy}
}

// Len returns the number of distinct header names.
func (hs Headers) Len() int {
	return len(hs.h)
}

// Entries returns the header set as an ordered list of pairs, sorted by
// canonical name. Multiple values for one name are joined with ", ".
func (hs Headers) Entries() []Entry {
	names := slices.Sorted(maps.Keys(hs.h))

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Value: strings.Join(hs.h[name], ", ")})
	}

	return entries
}

// HTTP returns a copy of the set as an [http.Header].
func (hs Headers) HTTP() http.Header {
	return hs.clone()
}

// Union returns the union of hs and overlay. A name present in overlay
// replaces every value hs holds for it.
func (hs Headers) Union(overlay Headers) Headers {
	out := hs.clone()
	for name, values := range overlay.h {
		out[name] = slices.Clone(values)
	}

	return Headers{h: out}
}

func (hs Headers) clone() http.Header {
	if hs.h == nil {
		return make(http.Header)
	}

	return hs.h.Clone()
}

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// ParseRawHeaders converts a raw response header block, one
// "Name: value" pair per line, into a header set. Lines without a name or
// colon are skipped. Values are trimmed, may be empty and may themselves
// contain ": ".
func ParseRawHeaders(raw string) Headers {
	h := make(http.Header)
	for _, line := range lineBreaks.Split(strings.TrimSpace(raw), -1) {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		h.Add(name, strings.TrimSpace(value))
	}

	return Headers{h: h}
}

// FormatRawHeaders is the inverse of [ParseRawHeaders], writing one
// "name: value\r\n" line per entry with lower-cased names.
func FormatRawHeaders(h http.Header) string {
	var b strings.Builder
	for _, e := range HeadersFromHTTP(h).Entries() {
		b.WriteString(strings.ToLower(e.Name))
		b.WriteString(": ")
		b.WriteString(e.Value)
		b.WriteString("\r\n")
	}

	return b.String()
}
