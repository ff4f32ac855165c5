package math

// Transform is an affine transform decomposed into translation, rotation and
// scale. Composition order is translation * rotation * scale.
type Transform struct {
	Translation Vec3
	Rotation    Quat
	Scale       Vec3
}

// TransformIdentity returns the identity transform.
func TransformIdentity() Transform {
	return Transform{
		Rotation: QuatIdentity(),
		Scale:    Vec3One(),
	}
}

// ToMat4 returns the matrix form of the transform.
func (t Transform) ToMat4() Mat4 {
	return FromAffine(t.Translation, t.Rotation, t.Scale)
}
