// Package snapshot deep-copies state values at every boundary crossing of a
// store.
//
// A state value is JSON shaped: nil, bool, string, numbers, map[string]any and
// []any, nested arbitrarily. Copy is a structural copy, not a serialization
// round trip, so numbers keep their Go type and no precision is lost for
// generic input.
//
// Policy for content that cannot be represented is to fail loudly. Functions,
// channels, complex numbers, unsafe pointers, NaN or infinite floats, maps
// keyed by anything other than strings and reference cycles all return an
// error wrapping ErrUnrepresentable. Nothing is ever dropped silently.
//
// Richer Go values are normalized into JSON shape instead of rejected:
//
//	typed maps/slices/arrays -> map[string]any / []any
//	pointers                 -> the copied pointee (nil -> nil)
//	structs, json.Marshaler,
//	encoding.TextMarshaler   -> JSON round trip via json-iterator
//
// so a caller writing a struct reads back the map a JSON client would see.
package snapshot
