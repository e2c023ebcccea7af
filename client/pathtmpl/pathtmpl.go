// Package pathtmpl parses colon-style path templates such as
// "/users/:id/posts/:slug?" and compiles them against request data.
//
// A parameter is a colon followed by a name made of letters, digits and
// underscores. It may carry a custom pattern in parentheses and one
// modifier:
//
//	/files/:id(\d+)   value must match \d+
//	/docs/:lang?      optional; the "/" before it is dropped when absent
//	/tree/:path*      zero or more segments
//	/tree/:path+      one or more segments
//
// A backslash escapes the next character, so `\:` is a literal colon.
package pathtmpl

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/adamwoolhether/routefetch/internal/coerce"
)

var (
	ErrSyntax       = errors.New("invalid path template")
	ErrMissingParam = errors.New("missing path parameter")
	ErrInvalidParam = errors.New("invalid path parameter")
)

// Token is one named parameter of a template.
type Token struct {
	Name     string
	Prefix   string
	Pattern  string
	Modifier string

	re *regexp.Regexp
}

// Optional reports whether the token may be omitted.
func (t Token) Optional() bool {
	return t.Modifier == "?" || t.Modifier == "*"
}

// Repeat reports whether the token accepts a list of segments.
func (t Token) Repeat() bool {
	return t.Modifier == "*" || t.Modifier == "+"
}

// part is either literal text or, when param is true, the token at index.
type part struct {
	literal string
	param   bool
	index   int
}

// Template is a parsed path template. It is read-only after Parse and safe
// for concurrent use.
type Template struct {
	raw    string
	parts  []part
	tokens []Token
}

// MustParse is like Parse but panics on error.
func MustParse(template string) *Template {
	t, err := Parse(template)
	if err != nil {
		panic(err)
	}

	return t
}

// Parse tokenizes template.
func Parse(template string) (*Template, error) {
	t := Template{raw: template}

	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(template); {
		c := template[i]

		switch c {
		case '\\':
			if i+1 >= len(template) {
				return nil, fmt.Errorf("%w: trailing escape at %d", ErrSyntax, i)
			}
			lit.WriteByte(template[i+1])
			i += 2
			continue

		case ':':
			name, n := readName(template[i+1:])
			if name == "" {
				return nil, fmt.Errorf("%w: missing parameter name at %d", ErrSyntax, i)
			}
			i += 1 + n

			tok := Token{Name: name}

			if i < len(template) && template[i] == '(' {
				pattern, n, err := readPattern(template[i:])
				if err != nil {
					return nil, fmt.Errorf("%w: parameter %q: %w", ErrSyntax, name, err)
				}
				tok.Pattern = pattern
				i += n
			}

			if i < len(template) && strings.IndexByte("?*+", template[i]) >= 0 {
				tok.Modifier = string(template[i])
				i++
			}

			// A separator directly before the parameter belongs to it, so
			// an absent optional parameter takes its separator with it.
			if s := lit.String(); s != "" && (strings.HasSuffix(s, "/") || strings.HasSuffix(s, ".")) {
				tok.Prefix = s[len(s)-1:]
				lit.Reset()
				lit.WriteString(s[:len(s)-1])
			}

			if tok.Pattern != "" {
				re, err := regexp.Compile(`^(?:` + tok.Pattern + `)$`)
				if err != nil {
					return nil, fmt.Errorf("%w: parameter %q: %w", ErrSyntax, name, err)
				}
				tok.re = re
			}

			for _, existing := range t.tokens {
				if existing.Name == name {
					return nil, fmt.Errorf("%w: duplicate parameter %q", ErrSyntax, name)
				}
			}

			flush()
			t.parts = append(t.parts, part{param: true, index: len(t.tokens)})
			t.tokens = append(t.tokens, tok)
			continue
		}

		lit.WriteByte(c)
		i++
	}
	flush()

	return &t, nil
}

// String returns the template source.
func (t *Template) String() string {
	return t.raw
}

// Tokens returns a copy of the template's parameter tokens in order.
func (t *Template) Tokens() []Token {
	out := make([]Token, len(t.tokens))
	copy(out, t.tokens)

	return out
}

// Compile substitutes data into the template. With no tokens the template
// is returned unchanged and data is never read.
func (t *Template) Compile(data map[string]any) (string, error) {
	if len(t.tokens) == 0 {
		return t.raw, nil
	}

	var b strings.Builder
	for _, p := range t.parts {
		if !p.param {
			b.WriteString(p.literal)
			continue
		}

		tok := &t.tokens[p.index]
		v, ok := data[tok.Name]
		if !ok || v == nil {
			if tok.Optional() {
				continue
			}
			return "", fmt.Errorf("%w: %q", ErrMissingParam, tok.Name)
		}

		if tok.Repeat() {
			values, isList := v.([]any)
			if !isList {
				if ss, isStrings := v.([]string); isStrings {
					for _, s := range ss {
						values = append(values, s)
					}
				} else {
					values = []any{v}
				}
			}

			if len(values) == 0 {
				if tok.Modifier == "*" {
					continue
				}
				return "", fmt.Errorf("%w: %q must not be empty", ErrMissingParam, tok.Name)
			}

			for _, item := range values {
				seg, err := tok.segment(item)
				if err != nil {
					return "", err
				}
				b.WriteString(tok.Prefix)
				b.WriteString(seg)
			}
			continue
		}

		switch v.(type) {
		case []any, []string, map[string]any:
			return "", fmt.Errorf("%w: %q expects a single value, got %T", ErrInvalidParam, tok.Name, v)
		}

		seg, err := tok.segment(v)
		if err != nil {
			return "", err
		}
		b.WriteString(tok.Prefix)
		b.WriteString(seg)
	}

	return b.String(), nil
}

// Residual returns data without the keys consumed by path parameters. The
// caller's map is never modified. With no tokens data itself is returned,
// or an empty map when data is nil.
func (t *Template) Residual(data map[string]any) map[string]any {
	if len(t.tokens) == 0 {
		if data == nil {
			return map[string]any{}
		}
		return data
	}

	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, tok := range t.tokens {
		delete(out, tok.Name)
	}

	return out
}

func (t *Token) segment(v any) (string, error) {
	s := coerce.String(v)
	if s == "" {
		return "", fmt.Errorf("%w: %q must not be empty", ErrInvalidParam, t.Name)
	}
	if t.re != nil && !t.re.MatchString(s) {
		return "", fmt.Errorf("%w: %q value %q does not match %q", ErrInvalidParam, t.Name, s, t.Pattern)
	}

	return url.PathEscape(s), nil
}

func readName(s string) (string, int) {
	n := 0
	for n < len(s) {
		c := s[n]
		if c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			n++
			continue
		}
		break
	}

	return s[:n], n
}

// readPattern reads a balanced parenthesised pattern starting at s[0].
func readPattern(s string) (string, int, error) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
			if depth > 1 && (i+1 >= len(s) || s[i+1] != '?') {
				return "", 0, errors.New("capturing groups are not allowed in a pattern")
			}
		case ')':
			depth--
			if depth == 0 {
				if i == 1 {
					return "", 0, errors.New("empty pattern")
				}
				return s[1:i], i + 1, nil
			}
		}
	}

	return "", 0, errors.New("unbalanced pattern")
}
