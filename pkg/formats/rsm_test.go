package formats

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func rigRSM(minor uint8) *RSM {
	rsm := &RSM{
		Version:    RSMVersion{Major: 1, Minor: minor},
		AnimLength: 2000,
		Shading:    2,
		Alpha:      1,
		Textures:   []string{"data\\texture\\wood.bmp"},
		RootNode:   "base",
		Nodes: []RSMNode{
			{
				Name:     "base",
				Matrix:   [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
				Position: [3]float32{0, 1, 0},
				RotAxis:  [3]float32{0, 1, 0},
				Scale:    [3]float32{1, 1, 1},
				RotKeys: []RSMRotKey{
					{Frame: 0, Quaternion: [4]float32{0, 0, 0, 1}},
					{Frame: 1000, Quaternion: [4]float32{0, 0.7071068, 0, 0.7071068}},
				},
			},
			{
				Name:       "door",
				Parent:     "base",
				TextureIDs: []int32{0},
				Position:   [3]float32{2, 0, 0},
				RotAngle:   0.5,
				RotAxis:    [3]float32{0, 0, 1},
				Scale:      [3]float32{1, 2, 1},
			},
		},
	}
	if minor >= 5 {
		rsm.Nodes[1].ScaleKeys = []RSMScaleKey{{Frame: 500, Scale: [3]float32{2, 2, 2}}}
	} else {
		rsm.Nodes[1].PosKeys = []RSMPosKey{{Frame: 0, Position: [3]float32{2, 0, 0}}}
	}
	return rsm
}

func TestParseRSM_MagicValidation(t *testing.T) {
	valid, err := rigRSM(5).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	bad := append([]byte("XXXX"), valid[4:]...)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid magic", valid, nil},
		{"invalid magic", bad, ErrInvalidRSMMagic},
		{"empty data", []byte{}, ErrTruncatedRSMData},
		{"truncated magic", []byte{'G', 'R', 'S'}, ErrTruncatedRSMData},
		{"truncated node", valid[:len(valid)-10], ErrTruncatedRSMData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRSM(tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRSM_VersionSupport(t *testing.T) {
	tests := []struct {
		name    string
		major   uint8
		minor   uint8
		wantErr bool
	}{
		{"v1.1", 1, 1, false},
		{"v1.2", 1, 2, false},
		{"v1.3", 1, 3, false},
		{"v1.4", 1, 4, false},
		{"v1.5", 1, 5, false},
		{"v2.2 unsupported", 2, 2, true},
		{"v0.1 unsupported", 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := rigRSM(5).MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}
			data[4], data[5] = tt.major, tt.minor
			if tt.wantErr {
				if _, err := ParseRSM(data); !errors.Is(err, ErrUnsupportedRSMVersion) {
					t.Errorf("got error %v, want ErrUnsupportedRSMVersion", err)
				}
				return
			}

			rsm := rigRSM(tt.minor)
			data, err = rsm.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}
			got, err := ParseRSM(data)
			if err != nil {
				t.Fatalf("ParseRSM: %v", err)
			}
			if got.Version != rsm.Version {
				t.Errorf("version = %s, want %s", got.Version, rsm.Version)
			}
			if !reflect.DeepEqual(got.Nodes[1].PosKeys, rsm.Nodes[1].PosKeys) ||
				!reflect.DeepEqual(got.Nodes[1].ScaleKeys, rsm.Nodes[1].ScaleKeys) {
				t.Errorf("version-specific keys = %+v / %+v", got.Nodes[1].PosKeys, got.Nodes[1].ScaleKeys)
			}
		})
	}
}

func TestParseRSM_Hierarchy(t *testing.T) {
	data, err := rigRSM(5).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	rsm, err := ParseRSM(data)
	if err != nil {
		t.Fatalf("ParseRSM: %v", err)
	}

	if rsm.AnimLength != 2000 || rsm.Alpha != 1 || rsm.RootNode != "base" {
		t.Errorf("header = %d %v %q", rsm.AnimLength, rsm.Alpha, rsm.RootNode)
	}
	if len(rsm.Textures) != 1 || rsm.Textures[0] != "data\\texture\\wood.bmp" {
		t.Errorf("textures = %v", rsm.Textures)
	}

	base := rsm.Node("base")
	if base == nil || len(base.RotKeys) != 2 || base.RotKeys[1].Frame != 1000 {
		t.Fatalf("base = %+v", base)
	}
	if rsm.Node("missing") != nil {
		t.Error("Node(missing) should be nil")
	}

	children := rsm.Children("base")
	if len(children) != 1 || children[0].Name != "door" {
		t.Fatalf("children = %v", children)
	}
	door := children[0]
	if door.RotAngle != 0.5 || door.Scale != [3]float32{1, 2, 1} || !reflect.DeepEqual(door.TextureIDs, []int32{0}) {
		t.Errorf("door = %+v", door)
	}
	if !rsm.HasAnimation() {
		t.Error("HasAnimation() = false")
	}
}

func TestParseRSM_SkipsMesh(t *testing.T) {
	data, err := rigRSM(5).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	// Header: magic, version, anim length, shading, alpha, reserved,
	// texture count and names, root name, node count.
	nodeStart := 4 + 2 + 4 + 4 + 1 + 16 + 4 + 40 + 40 + 4
	// Node: names, texture count, matrix, offset, position, angle, axis, scale.
	vertexCountAt := nodeStart + 80 + 4 + 36 + 12 + 12 + 4 + 12 + 12

	if got := int32(binary.LittleEndian.Uint32(data[vertexCountAt:])); got != 0 {
		t.Fatalf("vertex count offset is off, read %d", got)
	}

	// Splice in two vertices for the first node.
	var patched []byte
	patched = append(patched, data[:vertexCountAt]...)
	patched = binary.LittleEndian.AppendUint32(patched, 2)
	patched = append(patched, make([]byte, 24)...)
	patched = append(patched, data[vertexCountAt+4:]...)

	rsm, err := ParseRSM(patched)
	if err != nil {
		t.Fatalf("ParseRSM: %v", err)
	}
	if rsm.Nodes[0].VertexCount != 2 || len(rsm.Nodes[0].RotKeys) != 2 {
		t.Errorf("node 0 = %d vertices, %d rotation keys", rsm.Nodes[0].VertexCount, len(rsm.Nodes[0].RotKeys))
	}
}

func TestRSMVersion_String(t *testing.T) {
	tests := []struct {
		version RSMVersion
		want    string
	}{
		{RSMVersion{1, 5}, "1.5"},
		{RSMVersion{2, 3}, "2.3"},
	}
	for _, tt := range tests {
		if got := tt.version.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRSMVersion_AtLeast(t *testing.T) {
	v := RSMVersion{1, 4}
	tests := []struct {
		major, minor uint8
		want         bool
	}{
		{1, 3, true},
		{1, 4, true},
		{1, 5, false},
		{0, 9, true},
		{2, 0, false},
	}
	for _, tt := range tests {
		if got := v.AtLeast(tt.major, tt.minor); got != tt.want {
			t.Errorf("AtLeast(%d, %d) = %v, want %v", tt.major, tt.minor, got, tt.want)
		}
	}
}
