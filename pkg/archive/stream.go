// Package archive persists runtime skeletons and animations in a tagged,
// versioned little-endian binary stream.
package archive

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	gomath "math"
)

// Archive errors.
var (
	ErrUnsupported = errors.New("archive: unsupported object")
	ErrCorrupt     = errors.New("archive: corrupt stream")
)

// Object tags and the versions written by this package.
const (
	SkeletonTag      = "ozz-skeleton"
	SkeletonVersion  = 2
	AnimationTag     = "ozz-animation"
	AnimationVersion = 7
)

const (
	maxTagLen    = 64
	maxStringLen = 1 << 16
	maxKeys      = 1 << 24
)

// writer accumulates the first error so callers can check once.
type writer struct {
	w   *bufio.Writer
	err error
	buf [8]byte
}

func newWriter(w io.Writer) *writer {
	return &writer{w: bufio.NewWriter(w)}
}

func (w *writer) bytes(b []byte) {
	if w.err == nil {
		_, w.err = w.w.Write(b)
	}
}

func (w *writer) u8(v uint8) {
	w.buf[0] = v
	w.bytes(w.buf[:1])
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	w.bytes(w.buf[:2])
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.bytes(w.buf[:4])
}

func (w *writer) f32(v float32) {
	w.u32(gomath.Float32bits(v))
}

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.bytes([]byte(s))
}

// header writes a null-terminated tag followed by the version.
func (w *writer) header(tag string, version uint32) {
	w.bytes(append([]byte(tag), 0))
	w.u32(version)
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// reader mirrors writer. Short reads turn into ErrCorrupt.
type reader struct {
	r   *bufio.Reader
	err error
	buf [8]byte
}

func newReader(r io.Reader) *reader {
	return &reader{r: bufio.NewReader(r)}
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) bytes(b []byte) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrCorrupt, err))
	}
}

func (r *reader) u8() uint8 {
	r.bytes(r.buf[:1])
	return r.buf[0]
}

func (r *reader) u16() uint16 {
	r.bytes(r.buf[:2])
	return binary.LittleEndian.Uint16(r.buf[:2])
}

func (r *reader) u32() uint32 {
	r.bytes(r.buf[:4])
	return binary.LittleEndian.Uint32(r.buf[:4])
}

func (r *reader) f32() float32 {
	return gomath.Float32frombits(r.u32())
}

// count reads a length prefix and rejects it above limit.
func (r *reader) count(what string, limit int) int {
	n := r.u32()
	if r.err == nil && n > uint32(limit) {
		r.fail(fmt.Errorf("%w: %s count %d exceeds %d", ErrCorrupt, what, n, limit))
	}
	if r.err != nil {
		return 0
	}
	return int(n)
}

func (r *reader) str() string {
	n := r.count("string length", maxStringLen)
	if n == 0 {
		return ""
	}
	b := make([]byte, n)
	r.bytes(b)
	return string(b)
}

// header reads the tag and version at the start of an object.
func (r *reader) header() (string, uint32) {
	if r.err != nil {
		return "", 0
	}
	tag, err := r.r.ReadSlice(0)
	if err != nil || len(tag) > maxTagLen {
		r.fail(fmt.Errorf("%w: missing object tag", ErrCorrupt))
		return "", 0
	}
	name := string(tag[:len(tag)-1])
	return name, r.u32()
}

// expect checks that the next object is tag at version.
func (r *reader) expect(tag string, version uint32) {
	got, v := r.header()
	if r.err != nil {
		return
	}
	if got != tag {
		r.fail(fmt.Errorf("%w: tag %q, want %q", ErrUnsupported, got, tag))
		return
	}
	if v != version {
		r.fail(fmt.Errorf("%w: %s version %d, want %d", ErrUnsupported, tag, v, version))
	}
}
