package math

import "math"

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	halfAngle := angle / 2
	s := float32(math.Sin(float64(halfAngle)))
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: float32(math.Cos(float64(halfAngle))),
	}
}

// QuatFromAxisCosAngle creates a quaternion from a normalized axis and the
// cosine of the rotation angle, which must lie in [-1, 1].
func QuatFromAxisCosAngle(axis Vec3, cos float32) Quat {
	halfCos2 := (1 + cos) / 2
	halfSin := float32(math.Sqrt(float64(max(1-halfCos2, 0))))
	return Quat{
		X: axis.X * halfSin,
		Y: axis.Y * halfSin,
		Z: axis.Z * halfSin,
		W: float32(math.Sqrt(float64(halfCos2))),
	}
}

// QuatFromVectors returns the shortest-arc rotation taking the direction of
// from onto the direction of to. The vectors need not be normalized. A zero
// vector yields identity, and opposite vectors rotate half a turn around an
// arbitrary orthogonal axis.
func QuatFromVectors(from, to Vec3) Quat {
	norms := float32(math.Sqrt(float64(from.Dot(from) * to.Dot(to))))
	if norms < 1e-6 {
		return QuatIdentity()
	}

	w := norms + from.Dot(to)
	if w < 1e-6*norms {
		if abs32(from.X) > abs32(from.Z) {
			return Quat{X: -from.Y, Y: from.X}.Normalize()
		}
		return Quat{Y: -from.Z, Z: from.Y}.Normalize()
	}
	c := from.Cross(to)
	return Quat{X: c.X, Y: c.Y, Z: c.Z, W: w}.Normalize()
}

// Length returns the norm of q.
func (q Quat) Length() float32 {
	return float32(math.Sqrt(float64(q.Dot(q))))
}

// Normalize returns a unit quaternion. A zero quaternion yields identity.
func (q Quat) Normalize() Quat {
	return q.NormalizeSafe(QuatIdentity())
}

// NormalizeSafe returns q normalized, or fallback when q is too short to be
// normalized reliably.
func (q Quat) NormalizeSafe(fallback Quat) Quat {
	length := q.Length()
	if length < 1e-8 {
		return fallback
	}
	invLen := 1.0 / length
	return Quat{
		X: q.X * invLen,
		Y: q.Y * invLen,
		Z: q.Z * invLen,
		W: q.W * invLen,
	}
}

// IsNormalized reports whether q has unit length within tolerance.
func (q Quat) IsNormalized() bool {
	const tolerance = 2e-3
	d := q.Dot(q) - 1
	return d < tolerance && d > -tolerance
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Negate returns -q, which encodes the same rotation.
func (q Quat) Negate() Quat {
	return Quat{-q.X, -q.Y, -q.Z, -q.W}
}

// Conjugate returns the inverse rotation of a unit quaternion.
func (q Quat) Conjugate() Quat {
	return Quat{-q.X, -q.Y, -q.Z, q.W}
}

// Slerp performs spherical linear interpolation between two quaternions.
// t should be in range [0, 1].
func (q Quat) Slerp(other Quat, t float32) Quat {
	dot := q.Dot(other)

	// Take the shorter path.
	if dot < 0 {
		other = other.Negate()
		dot = -dot
	}

	if dot > 0.9995 {
		return q.NLerp(other, t)
	}

	theta0 := float32(math.Acos(float64(dot)))
	theta := theta0 * t
	sinTheta := float32(math.Sin(float64(theta)))
	sinTheta0 := float32(math.Sin(float64(theta0)))

	s0 := float32(math.Cos(float64(theta))) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return Quat{
		X: q.X*s0 + other.X*s1,
		Y: q.Y*s0 + other.Y*s1,
		Z: q.Z*s0 + other.Z*s1,
		W: q.W*s0 + other.W*s1,
	}
}

// NLerp interpolates linearly between q and other and normalizes the result.
// The caller is responsible for hemisphere selection.
func (q Quat) NLerp(other Quat, t float32) Quat {
	return Quat{
		X: q.X + t*(other.X-q.X),
		Y: q.Y + t*(other.Y-q.Y),
		Z: q.Z + t*(other.Z-q.Z),
		W: q.W + t*(other.W-q.W),
	}.Normalize()
}

// Mul multiplies two quaternions (combines rotations).
// The result applies other first, then q.
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	// v + 2w(u x v) + 2u x (u x v)
	u := Vec3{q.X, q.Y, q.Z}
	uv := u.Cross(v)
	uuv := u.Cross(uv)
	return v.Add(uv.Scale(2 * q.W)).Add(uuv.Scale(2))
}

// ToMat4 converts the quaternion to a 4x4 rotation matrix.
func (q Quat) ToMat4() Mat4 {
	xx := q.X * q.X
	xy := q.X * q.Y
	xz := q.X * q.Z
	xw := q.X * q.W
	yy := q.Y * q.Y
	yz := q.Y * q.Z
	yw := q.Y * q.W
	zz := q.Z * q.Z
	zw := q.Z * q.W

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + zw), 2 * (xz - yw), 0,
		2 * (xy - zw), 1 - 2*(xx+zz), 2 * (yz + xw), 0,
		2 * (xz + yw), 2 * (yz - xw), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// Array returns the components as an X, Y, Z, W array.
func (q Quat) Array() [4]float32 {
	return [4]float32{q.X, q.Y, q.Z, q.W}
}

// QuatFromArray builds a quaternion from an X, Y, Z, W array.
func QuatFromArray(a [4]float32) Quat {
	return Quat{a[0], a[1], a[2], a[3]}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
