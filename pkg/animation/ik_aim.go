package animation

import (
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// AimIKJob rotates a single joint so its Forward axis points at Target,
// while its Up axis stays in the plane of the pole vector. The output is a
// local-space correction for the joint.
type AimIKJob struct {
	// Target is the model-space position to aim at.
	Target math.Vec3
	// Forward is the normalized joint-space axis that should face Target.
	Forward math.Vec3
	// Up is the joint-space axis aligned with the pole vector plane.
	Up math.Vec3
	// PoleVector is the model-space reference direction for Up.
	PoleVector math.Vec3
	// TwistAngle rotates the result around the joint-to-target axis.
	TwistAngle float32
	// Weight blends from no correction (0) to full correction (1).
	Weight float32

	// Joint is the model-space matrix of the aiming joint.
	Joint *math.Mat4
	// Correction receives the local-space correction.
	Correction *math.Quat
}

// NewAimIKJob returns a job aiming the joint's X axis with Y as up and pole
// vector, at full weight.
func NewAimIKJob(joint *math.Mat4, correction *math.Quat) *AimIKJob {
	return &AimIKJob{
		Forward:    math.Vec3{X: 1},
		Up:         math.Vec3{Y: 1},
		PoleVector: math.Vec3{Y: 1},
		Weight:     1,
		Joint:      joint,
		Correction: correction,
	}
}

// Check returns the first configuration problem, wrapping ErrInvalidJob.
func (j *AimIKJob) Check() error {
	if j.Joint == nil {
		return fmt.Errorf("%w: aim ik: missing joint matrix", ErrInvalidJob)
	}
	if j.Correction == nil {
		return fmt.Errorf("%w: aim ik: missing correction output", ErrInvalidJob)
	}
	if !j.Forward.IsNormalized() {
		return fmt.Errorf("%w: aim ik: forward %v is not normalized", ErrInvalidJob, j.Forward)
	}
	return nil
}

// Validate reports whether the job can run.
func (j *AimIKJob) Validate() bool {
	return j.Check() == nil
}

// Run computes the correction. It returns false, without writing anything,
// if the job is invalid. A target at the joint position yields identity.
func (j *AimIKJob) Run() bool {
	if !j.Validate() {
		return false
	}

	inv := j.Joint.Inverse()
	toTarget := inv.TransformPoint(j.Target)
	toTargetLen2 := toTarget.Dot(toTarget)
	if toTargetLen2 == 0 {
		*j.Correction = math.QuatIdentity()
		return true
	}

	aim := math.QuatFromVectors(j.Forward, toTarget)

	// Turn around the aim axis until up faces the pole vector.
	up := aim.Rotate(j.Up)
	pole := inv.TransformDirection(j.PoleVector)
	refNormal := pole.Cross(toTarget)
	jointNormal := up.Cross(toTarget)

	rot := aim
	refLen2 := refNormal.Dot(refNormal)
	jointLen2 := jointNormal.Dot(jointNormal)
	axis := toTarget.Scale(1 / sqrt32(toTargetLen2))
	if refLen2 > 1e-12 && jointLen2 > 1e-12 {
		cos := jointNormal.Dot(refNormal) / sqrt32(refLen2*jointLen2)
		planeAxis := axis
		if refNormal.Dot(up) < 0 {
			planeAxis = axis.Scale(-1)
		}
		rot = math.QuatFromAxisCosAngle(planeAxis, clamp32(cos, -1, 1)).Mul(aim)
	}

	if j.TwistAngle != 0 {
		rot = math.QuatFromAxisAngle(axis, j.TwistAngle).Mul(rot)
	}

	*j.Correction = weightCorrection(rot, j.Weight)
	return true
}
