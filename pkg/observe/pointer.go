package observe

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotFound is returned when a pointer does not reference a value.
	ErrNotFound = errors.New("observe: pointer not found")

	// ErrInvalidPointer is returned for a non-empty pointer without a leading slash.
	ErrInvalidPointer = errors.New("observe: invalid pointer")
)

var (
	escaper   = strings.NewReplacer("~", "~0", "/", "~1")
	unescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// Escape encodes a reference token for use in a JSON Pointer.
func Escape(token string) string {
	return escaper.Replace(token)
}

// Unescape decodes an escaped reference token.
func Unescape(token string) string {
	return unescaper.Replace(token)
}

// Join builds a pointer from unescaped reference tokens.
func Join(tokens ...string) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(Escape(t))
	}
	return b.String()
}

// Parse splits a pointer into unescaped reference tokens.
// The empty pointer yields no tokens.
func Parse(pointer string) ([]string, error) {
	if pointer == "" {
		return nil, nil
	}
	if pointer[0] != '/' {
		return nil, ErrInvalidPointer
	}
	tokens := strings.Split(pointer[1:], "/")
	for i, t := range tokens {
		tokens[i] = Unescape(t)
	}
	return tokens, nil
}

// Resolve returns the value referenced by pointer inside root.
// It walks *Object, *Array, map[string]any and []any values. Private keys
// are not addressable.
func Resolve(root any, pointer string) (any, error) {
	tokens, err := Parse(pointer)
	if err != nil {
		return nil, err
	}
	cur := root
	for _, tok := range tokens {
		next, ok := step(cur, tok)
		if !ok {
			return nil, ErrNotFound
		}
		cur = next
	}
	return cur, nil
}

func step(v any, tok string) (any, bool) {
	switch v := v.(type) {
	case *Object:
		if IsPrivate(tok) {
			return nil, false
		}
		return v.Lookup(tok)
	case map[string]any:
		if IsPrivate(tok) {
			return nil, false
		}
		next, ok := v[tok]
		return next, ok
	case *Array:
		i, ok := index(tok, v.Len())
		if !ok {
			return nil, false
		}
		return v.At(i), true
	case []any:
		i, ok := index(tok, len(v))
		if !ok {
			return nil, false
		}
		return v[i], true
	}
	return nil, false
}

func index(tok string, n int) (int, bool) {
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(tok)
	if err != nil || i >= n {
		return 0, false
	}
	return i, true
}
