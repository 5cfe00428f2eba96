package utils

import (
	"bytes"
	"encoding/json"
)

// Patch distinguishes the three states a field of a partial-update payload
// can be in: absent, present but null, and present with a value. Absent
// fields must leave the stored value untouched while an explicit null
// clears it, so a plain pointer is not enough.
type Patch[T any] struct {
	present bool
	value   *T
}

func NewPatch[T any](value T) Patch[T] {
	return Patch[T]{present: true, value: &value}
}

func NullPatch[T any]() Patch[T] {
	return Patch[T]{present: true}
}

// Present reports whether the field appeared in the payload at all
func (p Patch[T]) Present() bool {
	return p.present
}

// Null reports whether the field was present with an explicit null
func (p Patch[T]) Null() bool {
	return p.present && p.value == nil
}

func (p Patch[T]) Value() T {
	if p.value == nil {
		var zero T
		return zero
	}

	return *p.value
}

func (p Patch[T]) ValuePtr() *T {
	return p.value
}

// UnmarshalJSON is only invoked for keys present in the document, which is
// what makes the absent vs null distinction observable after decoding.
func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	p.present = true

	if bytes.Equal(data, []byte("null")) {
		p.value = nil
		return nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	p.value = &value
	return nil
}

func (p Patch[T]) MarshalJSON() ([]byte, error) {
	if !p.present || p.value == nil {
		return []byte("null"), nil
	}

	return json.Marshal(*p.value)
}
