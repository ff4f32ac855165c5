// Package encoding converts the EUC-KR fixed-size name fields found in
// Ragnarok Online model files.
package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// ErrNameTooLong is returned when an encoded name does not fit its field.
var ErrNameTooLong = errors.New("encoding: name too long for field")

// DecodeName reads a null-terminated EUC-KR field as UTF-8. Bytes that are
// not valid EUC-KR are kept as-is.
func DecodeName(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	if isASCII(field) {
		return string(field)
	}
	out, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), field)
	if err != nil || !utf8.Valid(out) {
		return string(field)
	}
	return string(out)
}

// EncodeName converts s to EUC-KR and pads it with zeros to size bytes. One
// byte is reserved for the terminator.
func EncodeName(s string, size int) ([]byte, error) {
	encoded, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(s))
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", s, err)
	}
	if len(encoded) >= size {
		return nil, fmt.Errorf("%w: %q needs %d bytes, field holds %d", ErrNameTooLong, s, len(encoded)+1, size)
	}
	field := make([]byte, size)
	copy(field, encoded)
	return field, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
