package env

import (
	"fmt"
	"strings"
)

const (
	placeholderPrefix = "${"
	placeholderSuffix = "}"
	valueSeparator    = ":"
)

// Resolve replaces ${key} and ${key:default} placeholders in text with
// property values. Placeholders may nest, both in keys and in resolved
// values. A placeholder without a value or default is an error, as is a
// placeholder that refers back to itself.
func (e *Environment) Resolve(text string) (string, error) {
	return e.resolve(text, map[string]bool{})
}

func (e *Environment) resolve(text string, visiting map[string]bool) (string, error) {
	start := strings.Index(text, placeholderPrefix)
	if start < 0 {
		return text, nil
	}

	var b strings.Builder
	for start >= 0 {
		end := matchingSuffix(text, start+len(placeholderPrefix))
		if end < 0 {
			break
		}
		b.WriteString(text[:start])

		inner, err := e.resolve(text[start+len(placeholderPrefix):end], visiting)
		if err != nil {
			return "", err
		}
		key, def, hasDefault := strings.Cut(inner, valueSeparator)
		if visiting[key] {
			return "", fmt.Errorf("%w: circular reference to ${%s}", ErrUnresolvable, key)
		}

		var value string
		if raw, ok := e.Property(key); ok {
			visiting[key] = true
			value, err = e.resolve(stringify(raw), visiting)
			delete(visiting, key)
			if err != nil {
				return "", err
			}
		} else if hasDefault {
			value = def
		} else {
			return "", fmt.Errorf("%w: ${%s}", ErrUnresolvable, key)
		}
		b.WriteString(value)

		text = text[end+len(placeholderSuffix):]
		start = strings.Index(text, placeholderPrefix)
	}
	b.WriteString(text)
	return b.String(), nil
}

func matchingSuffix(text string, from int) int {
	depth := 0
	for i := from; i < len(text); i++ {
		switch {
		case strings.HasPrefix(text[i:], placeholderPrefix):
			depth++
			i += len(placeholderPrefix) - 1
		case strings.HasPrefix(text[i:], placeholderSuffix):
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}
