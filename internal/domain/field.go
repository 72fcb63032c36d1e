package domain

import "encoding/json"

// Field is a published value that remembers whether it was sourced from real
// data or filled with a default. Only Value reaches the wire.
type Field[T any] struct {
	Value T
	Known bool
}

// Known wraps a sourced value
func Known[T any](v T) Field[T] {
	return Field[T]{Value: v, Known: true}
}

// Defaulted wraps a placeholder value
func Defaulted[T any](v T) Field[T] {
	return Field[T]{Value: v}
}

// IsDefaulted reports whether the value is a placeholder
func (f Field[T]) IsDefaulted() bool {
	return !f.Known
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Value)
}

// UnmarshalJSON treats any value read back from the wire as known.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &f.Value); err != nil {
		return err
	}
	f.Known = true
	return nil
}
