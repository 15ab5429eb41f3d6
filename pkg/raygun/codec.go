// codec.go encodes and decodes collector payloads.

package raygun

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal encodes a wire payload.
func Marshal(v any) ([]byte, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	return b, nil
}

// Unmarshal decodes a wire payload into v.
func Unmarshal(data []byte, v any) error {
	if err := codec.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "decode payload")
	}
	return nil
}

// MarshalCrashReport encodes a crash report for delivery.
func MarshalCrashReport(report *CrashReport) ([]byte, error) {
	if report == nil {
		return nil, errors.New("nil crash report")
	}
	return Marshal(report)
}

// ValidPayload reports whether b is a well-formed JSON payload.
func ValidPayload(b []byte) bool {
	return len(b) > 0 && codec.Valid(b)
}

// Indent re-encodes a JSON payload with two-space indentation.
func Indent(data []byte) ([]byte, error) {
	var v any
	if err := Unmarshal(data, &v); err != nil {
		return nil, err
	}
	b, err := codec.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "indent payload")
	}
	return b, nil
}
