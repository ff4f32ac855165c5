// Package grf reads Ragnarok Online GRF 0x200 archives, the container RSM
// models ship in.
package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/encoding"
)

// Archive errors.
var (
	ErrInvalidMagic       = errors.New("grf: invalid magic")
	ErrUnsupportedVersion = errors.New("grf: unsupported version")
	ErrCorrupt            = errors.New("grf: corrupt archive")
	ErrNotFound           = errors.New("grf: file not found")
	ErrEncrypted          = errors.New("grf: encrypted entries are not supported")
)

const (
	grfMagic   = "Master of Magic"
	headerSize = 46
	entrySize  = 17
	version200 = 0x200

	// Entry flags.
	flagFile     = 0x01
	flagMixCrypt = 0x02
	flagDES      = 0x04
)

type header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32 // stored as count + seed + 7
	Version       uint32
}

// Entry describes one file of the archive.
type Entry struct {
	Name           string // normalized: forward slashes, lower case
	CompressedSize uint32
	AlignedSize    uint32
	Size           uint32
	Flags          uint8
	Offset         uint32 // relative to the end of the header
}

// Encrypted reports whether the entry uses one of the GRF DES variants.
func (e *Entry) Encrypted() bool {
	return e.Flags&(flagMixCrypt|flagDES) != 0
}

// Archive is an opened GRF archive. It is not safe for concurrent use when
// backed by a file opened with Open.
type Archive struct {
	r       io.ReaderAt
	closer  io.Closer
	entries map[string]*Entry
}

// Open opens a GRF archive file.
func Open(filePath string) (*Archive, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	a, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}
	a.closer = file
	return a, nil
}

// NewReader reads the file table of an archive held by r.
func NewReader(r io.ReaderAt) (*Archive, error) {
	var h header
	if err := binary.Read(io.NewSectionReader(r, 0, headerSize), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if string(h.Magic[:]) != grfMagic {
		return nil, ErrInvalidMagic
	}
	if h.Version != version200 {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, h.Version)
	}
	if h.FileCount < h.Seed+7 {
		return nil, fmt.Errorf("%w: file count %d below seed", ErrCorrupt, h.FileCount)
	}

	a := &Archive{r: r, entries: make(map[string]*Entry)}
	if err := a.readTable(int64(h.TableOffset)+headerSize, int(h.FileCount-h.Seed-7)); err != nil {
		return nil, err
	}

	logger.Named("grf").Debug("opened archive", zap.Int("files", len(a.entries)))
	return a, nil
}

func (a *Archive) readTable(offset int64, count int) error {
	var sizes [8]byte
	if _, err := a.r.ReadAt(sizes[:], offset); err != nil {
		return fmt.Errorf("%w: table sizes: %v", ErrCorrupt, err)
	}
	packed := binary.LittleEndian.Uint32(sizes[0:])
	unpacked := binary.LittleEndian.Uint32(sizes[4:])

	table, err := inflate(io.NewSectionReader(a.r, offset+8, int64(packed)), unpacked)
	if err != nil {
		return fmt.Errorf("%w: file table: %v", ErrCorrupt, err)
	}

	pos := 0
	for range count {
		end := bytes.IndexByte(table[pos:], 0)
		if end < 0 || pos+end+1+entrySize > len(table) {
			return fmt.Errorf("%w: file table truncated", ErrCorrupt)
		}
		name := encoding.DecodeName(table[pos : pos+end])
		pos += end + 1

		e := &Entry{
			Name:           normalize(name),
			CompressedSize: binary.LittleEndian.Uint32(table[pos:]),
			AlignedSize:    binary.LittleEndian.Uint32(table[pos+4:]),
			Size:           binary.LittleEndian.Uint32(table[pos+8:]),
			Flags:          table[pos+12],
			Offset:         binary.LittleEndian.Uint32(table[pos+13:]),
		}
		pos += entrySize

		// Directories carry no file flag.
		if e.Flags&flagFile != 0 {
			a.entries[e.Name] = e
		}
	}
	return nil
}

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Entries returns every file entry sorted by name.
func (a *Archive) Entries() []*Entry {
	list := make([]*Entry, 0, len(a.entries))
	for _, e := range a.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Stat returns the entry for name.
func (a *Archive) Stat(name string) (*Entry, bool) {
	e, ok := a.entries[normalize(name)]
	return e, ok
}

// Glob returns the sorted names matching pattern, using path.Match syntax
// on normalized names.
func (a *Archive) Glob(pattern string) ([]string, error) {
	pattern = normalize(pattern)
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	var names []string
	for _, e := range a.Entries() {
		if ok, _ := path.Match(pattern, e.Name); ok {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// Read returns the uncompressed contents of name.
func (a *Archive) Read(name string) ([]byte, error) {
	e, ok := a.Stat(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if e.Encrypted() {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, name)
	}

	section := io.NewSectionReader(a.r, int64(e.Offset)+headerSize, int64(e.CompressedSize))
	if e.CompressedSize == e.Size {
		data := make([]byte, e.Size)
		if _, err := io.ReadFull(section, data); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
		}
		return data, nil
	}

	data, err := inflate(section, e.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return data, nil
}

func inflate(r io.Reader, size uint32) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
}
