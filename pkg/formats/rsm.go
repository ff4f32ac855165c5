// Package formats reads the node hierarchy and keyframes of Ragnarok Online
// RSM models so they can be imported as skeletons and animations.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"
	"os"

	"github.com/Faultbox/midgard-anim/pkg/encoding"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidRSMCount       = errors.New("invalid RSM element count")
)

const (
	rsmNameSize    = 40
	rsmReserved    = 16
	maxRSMNodes    = 1024
	maxRSMElements = 1 << 20
)

// RSMVersion represents the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// Supported reports whether the node layout of this version is known.
func (v RSMVersion) Supported() bool {
	return v.Major == 1 && v.Minor >= 1 && v.Minor <= 5
}

// RSMPosKey is a position keyframe (versions before 1.5).
type RSMPosKey struct {
	Frame    int32
	Position [3]float32
}

// RSMRotKey is a rotation keyframe, quaternion stored x, y, z, w.
type RSMRotKey struct {
	Frame      int32
	Quaternion [4]float32
}

// RSMScaleKey is a scale keyframe (version 1.5).
type RSMScaleKey struct {
	Frame int32
	Scale [3]float32
}

// RSMNode is one node of the model hierarchy. Mesh payloads are skipped;
// only their sizes are kept.
type RSMNode struct {
	Name   string
	Parent string // empty for the root

	Matrix   [9]float32 // mesh-only 3x3 transform
	Offset   [3]float32 // mesh pivot
	Position [3]float32 // translation relative to the parent
	RotAngle float32    // radians
	RotAxis  [3]float32
	Scale    [3]float32

	TextureIDs  []int32
	VertexCount int
	FaceCount   int

	PosKeys   []RSMPosKey
	RotKeys   []RSMRotKey
	ScaleKeys []RSMScaleKey
}

// RSM is a parsed model.
type RSM struct {
	Version    RSMVersion
	AnimLength int32 // in frames, see the importer for the frame rate
	Shading    int32
	Alpha      float32
	Textures   []string
	RootNode   string
	Nodes      []RSMNode
}

// rsmReader is a bounds-checked little-endian cursor with a sticky error.
type rsmReader struct {
	data []byte
	off  int
	err  error
}

func (r *rsmReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = fmt.Errorf("%w at offset %d", ErrTruncatedRSMData, r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *rsmReader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *rsmReader) i32() int32 {
	if b := r.take(4); b != nil {
		return int32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func (r *rsmReader) f32() float32 {
	if b := r.take(4); b != nil {
		return gomath.Float32frombits(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func (r *rsmReader) floats(dst []float32) {
	for i := range dst {
		dst[i] = r.f32()
	}
}

func (r *rsmReader) name() string {
	return encoding.DecodeName(r.take(rsmNameSize))
}

func (r *rsmReader) count(what string, limit int) int {
	n := r.i32()
	if r.err == nil && (n < 0 || int(n) > limit) {
		r.err = fmt.Errorf("%w: %d %s", ErrInvalidRSMCount, n, what)
	}
	if r.err != nil {
		return 0
	}
	return int(n)
}

// ParseRSM parses RSM data from a byte slice.
func ParseRSM(data []byte) (*RSM, error) {
	r := &rsmReader{data: data}

	if magic := r.take(4); r.err != nil {
		return nil, ErrTruncatedRSMData
	} else if string(magic) != "GRSM" {
		return nil, ErrInvalidRSMMagic
	}

	rsm := &RSM{Version: RSMVersion{Major: r.u8(), Minor: r.u8()}}
	if r.err == nil && !rsm.Version.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	rsm.AnimLength = r.i32()
	rsm.Shading = r.i32()
	rsm.Alpha = 1
	if rsm.Version.AtLeast(1, 4) {
		rsm.Alpha = float32(r.u8()) / 255
	}
	r.take(rsmReserved)

	rsm.Textures = make([]string, r.count("textures", maxRSMElements))
	for i := range rsm.Textures {
		rsm.Textures[i] = r.name()
	}
	rsm.RootNode = r.name()

	rsm.Nodes = make([]RSMNode, r.count("nodes", maxRSMNodes))
	for i := range rsm.Nodes {
		parseRSMNode(r, rsm.Version, &rsm.Nodes[i])
		if r.err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, r.err)
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	// Trailing bounding boxes are not needed for rigs.
	return rsm, nil
}

func parseRSMNode(r *rsmReader, v RSMVersion, node *RSMNode) {
	node.Name = r.name()
	node.Parent = r.name()

	node.TextureIDs = make([]int32, r.count("texture ids", maxRSMElements))
	for i := range node.TextureIDs {
		node.TextureIDs[i] = r.i32()
	}

	r.floats(node.Matrix[:])
	r.floats(node.Offset[:])
	r.floats(node.Position[:])
	node.RotAngle = r.f32()
	r.floats(node.RotAxis[:])
	r.floats(node.Scale[:])

	node.VertexCount = r.count("vertices", maxRSMElements)
	r.take(node.VertexCount * 12)

	texCoordSize := 8
	if v.AtLeast(1, 2) {
		texCoordSize += 4 // vertex color
	}
	r.take(r.count("texture coordinates", maxRSMElements) * texCoordSize)

	faceSize := 20
	if v.AtLeast(1, 2) {
		faceSize += 4 // smoothing group
	}
	node.FaceCount = r.count("faces", maxRSMElements)
	r.take(node.FaceCount * faceSize)

	if !v.AtLeast(1, 5) {
		node.PosKeys = make([]RSMPosKey, r.count("position keys", maxRSMElements))
		for i := range node.PosKeys {
			node.PosKeys[i].Frame = r.i32()
			r.floats(node.PosKeys[i].Position[:])
		}
	}

	node.RotKeys = make([]RSMRotKey, r.count("rotation keys", maxRSMElements))
	for i := range node.RotKeys {
		node.RotKeys[i].Frame = r.i32()
		r.floats(node.RotKeys[i].Quaternion[:])
	}

	if v.AtLeast(1, 5) {
		node.ScaleKeys = make([]RSMScaleKey, r.count("scale keys", maxRSMElements))
		for i := range node.ScaleKeys {
			node.ScaleKeys[i].Frame = r.i32()
			r.floats(node.ScaleKeys[i].Scale[:])
		}
	}
}

// ParseRSMFile parses an RSM file from disk.
func ParseRSMFile(path string) (*RSM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSM file: %w", err)
	}
	return ParseRSM(data)
}

// MarshalBinary encodes the node hierarchy and keyframes as an RSM file
// without mesh data. Vertex and face counts are written as zero.
func (rsm *RSM) MarshalBinary() ([]byte, error) {
	if !rsm.Version.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	var nameErr error
	name := func(s string) {
		field, err := encoding.EncodeName(s, rsmNameSize)
		if err != nil && nameErr == nil {
			nameErr = err
		}
		if field == nil {
			field = make([]byte, rsmNameSize)
		}
		buf.Write(field)
	}

	v := rsm.Version
	buf.WriteString("GRSM")
	w([2]uint8{v.Major, v.Minor})
	w(rsm.AnimLength)
	w(rsm.Shading)
	if v.AtLeast(1, 4) {
		w(uint8(rsm.Alpha * 255))
	}
	buf.Write(make([]byte, rsmReserved))

	w(int32(len(rsm.Textures)))
	for _, t := range rsm.Textures {
		name(t)
	}
	name(rsm.RootNode)

	w(int32(len(rsm.Nodes)))
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		name(n.Name)
		name(n.Parent)
		w(int32(len(n.TextureIDs)))
		w(n.TextureIDs)
		w(n.Matrix)
		w(n.Offset)
		w(n.Position)
		w(n.RotAngle)
		w(n.RotAxis)
		w(n.Scale)
		w([3]int32{}) // vertices, texture coordinates, faces
		if !v.AtLeast(1, 5) {
			w(int32(len(n.PosKeys)))
			w(n.PosKeys)
		}
		w(int32(len(n.RotKeys)))
		w(n.RotKeys)
		if v.AtLeast(1, 5) {
			w(int32(len(n.ScaleKeys)))
			w(n.ScaleKeys)
		}
	}
	w(int32(0)) // bounding boxes

	if nameErr != nil {
		return nil, nameErr
	}
	return buf.Bytes(), nil
}

// Node returns the node with the given name, or nil.
func (rsm *RSM) Node(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// Children returns the nodes whose parent is name, in file order.
func (rsm *RSM) Children(name string) []*RSMNode {
	var children []*RSMNode
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == name && rsm.Nodes[i].Name != name {
			children = append(children, &rsm.Nodes[i])
		}
	}
	return children
}

// HasAnimation returns true if any node carries keyframes.
func (rsm *RSM) HasAnimation() bool {
	for _, node := range rsm.Nodes {
		if len(node.PosKeys) > 0 || len(node.RotKeys) > 0 || len(node.ScaleKeys) > 0 {
			return true
		}
	}
	return false
}
