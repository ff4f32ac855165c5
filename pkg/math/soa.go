package math

// SoaWidth is the number of joints packed in one SoA batch.
const SoaWidth = 4

// SoaCount returns the number of SoA batches needed for n elements.
func SoaCount(n int) int {
	return (n + SoaWidth - 1) / SoaWidth
}

// SoaFloat holds one scalar per lane.
type SoaFloat [SoaWidth]float32

// SoaFloatSplat returns a SoaFloat with every lane set to v.
func SoaFloatSplat(v float32) SoaFloat {
	return SoaFloat{v, v, v, v}
}

// SoaFloat3 holds four Vec3 in structure-of-arrays layout.
type SoaFloat3 struct {
	X, Y, Z SoaFloat
}

// SoaFloat3Splat returns a SoaFloat3 with every lane set to v.
func SoaFloat3Splat(v Vec3) SoaFloat3 {
	return SoaFloat3{SoaFloatSplat(v.X), SoaFloatSplat(v.Y), SoaFloatSplat(v.Z)}
}

// Lane returns the vector stored in lane i.
func (s *SoaFloat3) Lane(i int) Vec3 {
	return Vec3{s.X[i], s.Y[i], s.Z[i]}
}

// SetLane stores v in lane i.
func (s *SoaFloat3) SetLane(i int, v Vec3) {
	s.X[i], s.Y[i], s.Z[i] = v.X, v.Y, v.Z
}

// SoaQuat holds four quaternions in structure-of-arrays layout.
type SoaQuat struct {
	X, Y, Z, W SoaFloat
}

// SoaQuatIdentity returns four identity quaternions.
func SoaQuatIdentity() SoaQuat {
	return SoaQuat{W: SoaFloatSplat(1)}
}

// Lane returns the quaternion stored in lane i.
func (s *SoaQuat) Lane(i int) Quat {
	return Quat{s.X[i], s.Y[i], s.Z[i], s.W[i]}
}

// SetLane stores q in lane i.
func (s *SoaQuat) SetLane(i int, q Quat) {
	s.X[i], s.Y[i], s.Z[i], s.W[i] = q.X, q.Y, q.Z, q.W
}

// SoaTransform packs the local transforms of four joints.
type SoaTransform struct {
	Translation SoaFloat3
	Rotation    SoaQuat
	Scale       SoaFloat3
}

// SoaTransformIdentity returns four identity transforms.
func SoaTransformIdentity() SoaTransform {
	return SoaTransform{
		Rotation: SoaQuatIdentity(),
		Scale:    SoaFloat3Splat(Vec3One()),
	}
}

// Lane returns the transform stored in lane i.
func (s *SoaTransform) Lane(i int) Transform {
	return Transform{
		Translation: s.Translation.Lane(i),
		Rotation:    s.Rotation.Lane(i),
		Scale:       s.Scale.Lane(i),
	}
}

// SetLane stores t in lane i.
func (s *SoaTransform) SetLane(i int, t Transform) {
	s.Translation.SetLane(i, t.Translation)
	s.Rotation.SetLane(i, t.Rotation)
	s.Scale.SetLane(i, t.Scale)
}

// GetTransform reads the transform of element index from a SoA buffer.
func GetTransform(buf []SoaTransform, index int) Transform {
	return buf[index/SoaWidth].Lane(index % SoaWidth)
}

// SetTransform writes the transform of element index into a SoA buffer.
func SetTransform(buf []SoaTransform, index int, t Transform) {
	buf[index/SoaWidth].SetLane(index%SoaWidth, t)
}

// PackTransforms converts a flat transform list into SoA batches. Padding
// lanes of the last batch hold the identity.
func PackTransforms(src []Transform) []SoaTransform {
	out := make([]SoaTransform, SoaCount(len(src)))
	for i := range out {
		out[i] = SoaTransformIdentity()
	}
	for i, t := range src {
		SetTransform(out, i, t)
	}
	return out
}

// UnpackTransforms expands the first n transforms of a SoA buffer.
func UnpackTransforms(src []SoaTransform, n int) []Transform {
	out := make([]Transform, n)
	for i := range out {
		out[i] = GetTransform(src, i)
	}
	return out
}
