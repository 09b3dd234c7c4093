package env

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

const bindTag = "mapstructure"

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// Bind copies the properties under prefix onto target, a pointer to a struct
// whose fields carry mapstructure tags. Each tagged field is looked up as
// prefix.tag using relaxed names; nested structs extend the prefix with their
// own tag. Fields without a matching property keep their current value.
// String values have placeholders resolved and are weakly converted, so
// "true", "5s" and "a,b" bind onto bool, time.Duration and []string fields.
func Bind(e *Environment, prefix string, target any) error {
	rv := reflect.ValueOf(target)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: got %T", ErrBindTarget, target)
	}

	lookup := &attachedSource{sources: e.sources}
	input, err := collect(e, lookup, strings.TrimSuffix(prefix, "."), rv.Elem().Type())
	if err != nil {
		return err
	}
	if len(input) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          bindTag,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBind, err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("%w to %s: %w", ErrBind, prefix, err)
	}
	return nil
}

func collect(e *Environment, lookup PropertySource, prefix string, t reflect.Type) (map[string]any, error) {
	out := make(map[string]any)
	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get(bindTag), ",")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		if isNestedStruct(field.Type) {
			nested, err := collect(e, lookup, key, field.Type)
			if err != nil {
				return nil, err
			}
			if len(nested) > 0 {
				out[name] = nested
			}
			continue
		}

		raw, ok := lookup.Property(key)
		if !ok {
			continue
		}
		if s, isString := raw.(string); isString {
			resolved, err := e.Resolve(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrBind, key, err)
			}
			raw = strings.TrimSpace(resolved)
		}
		out[name] = raw
	}
	return out, nil
}

func isNestedStruct(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	if t.PkgPath() == "time" {
		return false
	}
	return !reflect.PointerTo(t).Implements(textUnmarshalerType)
}
