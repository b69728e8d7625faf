package snapshot

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// ErrUnrepresentable reports content that cannot live inside a state value.
var ErrUnrepresentable = errors.New("snapshot: unrepresentable value")

// ErrNotObject reports a value that is representable but not a keyed mapping.
var ErrNotObject = errors.New("snapshot: value is not an object")

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Copy returns a deep copy of value in JSON shape. The result shares no
// mutable reference with the input.
//
// Generic values (nil, bool, string, numbers, map[string]any, []any) are
// copied structurally and numbers keep their Go type. Typed maps and slices
// become map[string]any and []any, pointers are dereferenced, and structs or
// values implementing json.Marshaler / encoding.TextMarshaler are normalized
// through a JSON round trip. Anything else fails with ErrUnrepresentable.
func Copy(value any) (any, error) {
	c := copier{visiting: map[uintptr]struct{}{}}
	return c.copy(reflect.ValueOf(value), "$")
}

// Object copies value and requires the result to be a keyed mapping.
func Object(value any) (map[string]any, error) {
	out, err := Copy(value)
	if err != nil {
		return nil, err
	}
	obj, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, describe(value))
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

// Merge assigns every top-level key of partial over base and returns base.
// Nested values are replaced, never merged.
func Merge(base, partial map[string]any) map[string]any {
	if base == nil {
		base = make(map[string]any, len(partial))
	}
	for key, value := range partial {
		base[key] = value
	}
	return base
}

type copier struct {
	visiting map[uintptr]struct{}
}

func (c copier) copy(v reflect.Value, path string) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface && marshals(v.Type()) {
		return c.roundTrip(v, path)
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Interface(), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w at %s: %v", ErrUnrepresentable, path, f)
		}
		return v.Interface(), nil
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return c.copy(v.Elem(), path)
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		if marshals(v.Type()) {
			return c.roundTrip(v, path)
		}
		leave, err := c.enter(v, path)
		if err != nil {
			return nil, err
		}
		defer leave()
		return c.copy(v.Elem(), path)
	case reflect.Map:
		return c.copyMap(v, path)
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Len() > 0 {
			leave, err := c.enter(v, path)
			if err != nil {
				return nil, err
			}
			defer leave()
		}
		return c.copyList(v, path)
	case reflect.Array:
		return c.copyList(v, path)
	case reflect.Struct:
		return c.roundTrip(v, path)
	default:
		return nil, fmt.Errorf("%w at %s: %s", ErrUnrepresentable, path, v.Type())
	}
}

func (c copier) copyMap(v reflect.Value, path string) (any, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w at %s: map key %s", ErrUnrepresentable, path, v.Type().Key())
	}
	if v.IsNil() {
		return map[string]any(nil), nil
	}
	leave, err := c.enter(v, path)
	if err != nil {
		return nil, err
	}
	defer leave()

	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		value, err := c.copy(iter.Value(), path+"."+key)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

func (c copier) copyList(v reflect.Value, path string) (any, error) {
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		value, err := c.copy(v.Index(i), path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}

// roundTrip normalizes v through its JSON encoding. The decoded value is
// already fresh, numbers come back as float64.
func (c copier) roundTrip(v reflect.Value, path string) (any, error) {
	if err := c.acyclic(v, path); err != nil {
		return nil, err
	}
	payload, err := codec.Marshal(v.Interface())
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrUnrepresentable, path, err)
	}
	var out any
	if err := codec.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrUnrepresentable, path, err)
	}
	return out, nil
}

// acyclic walks the reference graph below v so cycles hidden behind struct
// fields are reported instead of overflowing the encoder.
func (c copier) acyclic(v reflect.Value, path string) error {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
		leave, err := c.enter(v, path)
		if err != nil {
			return err
		}
		defer leave()
		switch v.Kind() {
		case reflect.Pointer:
			return c.acyclic(v.Elem(), path)
		case reflect.Map:
			iter := v.MapRange()
			for iter.Next() {
				if err := c.acyclic(iter.Value(), path); err != nil {
					return err
				}
			}
		default:
			for i := 0; i < v.Len(); i++ {
				if err := c.acyclic(v.Index(i), path); err != nil {
					return err
				}
			}
		}
	case reflect.Interface:
		if !v.IsNil() {
			return c.acyclic(v.Elem(), path)
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := c.acyclic(v.Index(i), path); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if err := c.acyclic(v.Field(i), path+"."+v.Type().Field(i).Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c copier) enter(v reflect.Value, path string) (func(), error) {
	ptr := v.Pointer()
	if _, seen := c.visiting[ptr]; seen {
		return nil, fmt.Errorf("%w at %s: cycle detected", ErrUnrepresentable, path)
	}
	c.visiting[ptr] = struct{}{}
	return func() { delete(c.visiting, ptr) }, nil
}

func marshals(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType)
}

func describe(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}
