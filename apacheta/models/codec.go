package models

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/teranos/yanantin/errors"
)

// Encode serialises v as JSON. Non-finite floats cannot be encoded and fail here.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode record")
	}
	return data, nil
}

// Decode parses data into a T. Unknown fields are rejected and records
// are validated after decoding.
func Decode[T any](data []byte) (T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, errors.Wrapf(err, "decode %T", out)
	}
	if _, err := dec.Token(); err != io.EOF {
		return out, errors.Newf("decode %T: trailing data", out)
	}
	if r, ok := any(out).(Record); ok {
		if err := r.Validate(); err != nil {
			return out, errors.Wrapf(err, "decode %T", out)
		}
	}
	return out, nil
}

// Clone deep-copies v through its JSON form.
func Clone[T any](v T) (T, error) {
	data, err := Encode(v)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](data)
}

// SameJSON reports whether a and b encode to identical bytes.
func SameJSON(a, b any) bool {
	x, err := Encode(a)
	if err != nil {
		return false
	}
	y, err := Encode(b)
	if err != nil {
		return false
	}
	return bytes.Equal(x, y)
}
