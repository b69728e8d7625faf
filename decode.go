package store

import (
	"fmt"

	"github.com/goliatone/go-store/internal/hydrate"
)

// DecodeOption configures Decode.
type DecodeOption[T any] func(*decodeConfig[T])

type decodeConfig[T any] struct {
	options []hydrate.DecoderOption[T]
}

// DecodeDisallowUnknown rejects state keys T has no field for.
func DecodeDisallowUnknown[T any]() DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		cfg.options = append(cfg.options, hydrate.WithDisallowUnknownFields[T]())
	}
}

// DecodeUseNumber keeps numbers held in interface fields as json.Number.
func DecodeUseNumber[T any]() DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		cfg.options = append(cfg.options, hydrate.WithUseNumber[T]())
	}
}

// DecodeBefore rewrites the snapshot before decoding.
func DecodeBefore[T any](hook func(State) (State, error)) DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		if hook == nil {
			return
		}
		cfg.options = append(cfg.options, hydrate.WithPreHook[T](func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
			return hook(payload)
		}))
	}
}

// DecodeAfter validates or adjusts the decoded value.
func DecodeAfter[T any](hook func(*T) error) DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		if hook == nil {
			return
		}
		cfg.options = append(cfg.options, hydrate.WithPostHook[T](func(_ hydrate.Context, value *T) error {
			return hook(value)
		}))
	}
}

// Decode reads a snapshot of s and decodes it into T.
func Decode[T any](s *Store, opts ...DecodeOption[T]) (T, error) {
	var zero T
	if s == nil {
		return zero, fmt.Errorf("store: decode: store is nil")
	}
	current, err := s.GetState()
	if err != nil {
		return zero, err
	}
	cfg := decodeConfig[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	decoder := hydrate.NewDecoder[T](cfg.options...)
	return decoder.Decode(hydrate.Context{StoreID: s.id.String(), Store: s.name}, current)
}
