package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/Faultbox/midgard-anim/pkg/encoding"
)

// maxNameSize bounds an encoded entry name, terminator included.
const maxNameSize = 256

// Write packs files, keyed by archive path, into a GRF 0x200 archive with
// every entry compressed and unencrypted. Entries are written in name order.
func Write(w io.Writer, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var body, table bytes.Buffer
	for _, name := range names {
		field, err := encoding.EncodeName(name, maxNameSize)
		if err != nil {
			return err
		}
		packed, err := deflate(files[name])
		if err != nil {
			return err
		}
		aligned := (len(packed) + 7) &^ 7

		offset := body.Len()
		body.Write(packed)
		body.Write(make([]byte, aligned-len(packed)))

		table.Write(field[:bytes.IndexByte(field, 0)+1])
		var e [entrySize]byte
		binary.LittleEndian.PutUint32(e[0:], uint32(len(packed)))
		binary.LittleEndian.PutUint32(e[4:], uint32(aligned))
		binary.LittleEndian.PutUint32(e[8:], uint32(len(files[name])))
		e[12] = flagFile
		binary.LittleEndian.PutUint32(e[13:], uint32(offset))
		table.Write(e[:])
	}

	packedTable, err := deflate(table.Bytes())
	if err != nil {
		return err
	}

	h := header{
		TableOffset: uint32(body.Len()),
		FileCount:   uint32(len(names)) + 7,
		Version:     version200,
	}
	copy(h.Magic[:], grfMagic)

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, &h); err != nil {
		return err
	}
	out.Write(body.Bytes())
	binary.Write(&out, binary.LittleEndian, [2]uint32{uint32(len(packedTable)), uint32(table.Len())})
	out.Write(packedTable)

	if _, err := w.Write(out.Bytes()); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
