package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Validator turns a raw response body into data, or reports why it cannot.
// A non-empty message list means the body was rejected.
type Validator interface {
	Validate(raw []byte) (any, []string)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(raw []byte) (any, []string)

// Validate calls f.
func (f ValidatorFunc) Validate(raw []byte) (any, []string) {
	return f(raw)
}

// selfValidator is implemented by types with their own invariants.
type selfValidator interface {
	Validate() error
}

// JSON returns a Validator that strictly decodes the body into T. Unknown
// fields and trailing data are rejected. If *T or T implements
// Validate() error, it is called after decoding.
func JSON[T any]() Validator {
	return ValidatorFunc(func(raw []byte) (any, []string) {
		var v T
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&v); err != nil {
			return nil, []string{fmt.Sprintf("decode: %v", err)}
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			return nil, []string{"decode: unexpected data after JSON value"}
		}

		var sv selfValidator
		switch x := any(&v).(type) {
		case selfValidator:
			sv = x
		default:
			sv, _ = any(v).(selfValidator)
		}
		if sv != nil {
			if err := sv.Validate(); err != nil {
				return nil, splitErrors(err)
			}
		}
		return v, nil
	})
}

// AnyJSON returns a Validator accepting any well-formed JSON document.
func AnyJSON() Validator {
	return ValidatorFunc(func(raw []byte) (any, []string) {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, []string{fmt.Sprintf("decode: %v", err)}
		}
		return v, nil
	})
}

// splitErrors flattens errors.Join results into one message each.
func splitErrors(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, splitErrors(e)...)
		}
		return msgs
	}
	return []string{err.Error()}
}
