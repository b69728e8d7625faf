// Package state owns the authoritative state value of a single store.
//
// Responsibilities:
//   - Container is the only holder of the current value; nobody else ever
//     receives a reference to it.
//   - Read hands out a fresh deep copy on every call.
//   - Write copies the partial value in, shallow-merges it over a copy of the
//     current value and publishes the result as the new current value.
//
// Data flow:
//
//	Write(partial) -> snapshot.Object(partial) -> snapshot.Merge(copy(current), patch)
//	               -> current = merged -> mirror hook -> change hook
//
// Lazy initialization:
//
//	The initializer runs on the first Read or Write, never at construction.
//	A nil initializer yields an empty mapping. Results that are not keyed
//	mappings (including nil) fail with ErrInvalidShape.
//
// Locking:
//
//	The current value is replaced, never mutated, so copies are taken from a
//	stable reference. No lock is held while the initializer or the hooks run,
//	which keeps re-entrant Read/Write calls from hooks safe.
package state
