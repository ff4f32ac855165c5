package animation

import (
	gomath "math"

	"github.com/x448/float16"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// Float3Key is a translation or scale key quantized to half floats.
type Float3Key struct {
	Ratio float32
	Value [3]uint16
}

// QuatKey is a rotation key compressed with the smallest-three scheme: the
// largest component is dropped and restored from the unit-length constraint,
// the remaining three are stored as signed 16-bit fixed point.
type QuatKey struct {
	Ratio   float32
	Largest uint8 // index of the dropped component, 0..3 for x, y, z, w
	Sign    bool  // true when the dropped component is negative
	Value   [3]int16
}

// The three kept components are bounded by 1/sqrt(2) in magnitude.
var (
	quatFloatToInt = float32(32767 * gomath.Sqrt2)
	quatIntToFloat = 1 / quatFloatToInt
)

// keptComponents lists the stored components for each dropped index.
var keptComponents = [4][3]int{{1, 2, 3}, {0, 2, 3}, {0, 1, 3}, {0, 1, 2}}

// EncodeFloat3Key quantizes v at ratio.
func EncodeFloat3Key(ratio float32, v math.Vec3) Float3Key {
	return Float3Key{
		Ratio: ratio,
		Value: [3]uint16{
			float16.Fromfloat32(v.X).Bits(),
			float16.Fromfloat32(v.Y).Bits(),
			float16.Fromfloat32(v.Z).Bits(),
		},
	}
}

// Decode expands the half-float value.
func (k Float3Key) Decode() math.Vec3 {
	return math.Vec3{
		X: float16.Frombits(k.Value[0]).Float32(),
		Y: float16.Frombits(k.Value[1]).Float32(),
		Z: float16.Frombits(k.Value[2]).Float32(),
	}
}

// EncodeQuatKey compresses the unit quaternion q at ratio.
func EncodeQuatKey(ratio float32, q math.Quat) QuatKey {
	c := q.Array()

	largest := 0
	for i := 1; i < 4; i++ {
		if absf(c[i]) > absf(c[largest]) {
			largest = i
		}
	}

	k := QuatKey{
		Ratio:   ratio,
		Largest: uint8(largest),
		Sign:    c[largest] < 0,
	}
	for i, src := range keptComponents[largest] {
		v := gomath.Floor(float64(c[src]*quatFloatToInt) + 0.5)
		k.Value[i] = int16(max(-32767, min(32767, v)))
	}
	return k
}

// Decode restores the unit quaternion.
func (k QuatKey) Decode() math.Quat {
	var c [4]float32
	var dot float32
	for i, dst := range keptComponents[k.Largest&3] {
		v := float32(k.Value[i]) * quatIntToFloat
		c[dst] = v
		dot += v * v
	}
	w := float32(gomath.Sqrt(float64(max(1e-16, 1-dot))))
	if k.Sign {
		w = -w
	}
	c[k.Largest&3] = w
	return math.QuatFromArray(c)
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
