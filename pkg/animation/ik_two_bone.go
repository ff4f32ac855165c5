package animation

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// TwoBoneIKJob solves a start-mid-end joint chain so the end joint reaches
// Target. It reads model-space matrices and writes local-space correction
// rotations for the start and mid joints. The caller multiplies each
// correction onto the joint's local rotation and reruns local-to-model.
type TwoBoneIKJob struct {
	// Target is the model-space position the end joint should reach.
	Target math.Vec3
	// PoleVector is the model-space direction the mid joint bends towards.
	// The chain flips when it becomes parallel to the start-to-target
	// direction.
	PoleVector math.Vec3
	// MidAxis is the normalized mid joint rotation axis, in mid joint space.
	// A positive rotation around it opens the angle between the two bones.
	MidAxis math.Vec3
	// Weight blends from no correction (0) to full correction (1).
	Weight float32
	// Soften is the ratio of the chain length past which the end joint
	// starts lagging behind the target. 1 disables softening.
	Soften float32
	// TwistAngle rotates the chain plane around the start-to-target axis.
	TwistAngle float32

	// StartJoint, MidJoint and EndJoint are model-space matrices of one
	// hierarchy. The joints need not be direct children of each other.
	StartJoint *math.Mat4
	MidJoint   *math.Mat4
	EndJoint   *math.Mat4

	// StartCorrection and MidCorrection receive the local-space corrections.
	StartCorrection *math.Quat
	MidCorrection   *math.Quat
	// Reached, if set, reports whether the target is within reach at full
	// weight.
	Reached *bool
}

// NewTwoBoneIKJob returns a job over the given chain with a Z mid axis, a Y
// pole vector and full weight.
func NewTwoBoneIKJob(start, mid, end *math.Mat4, startCorrection, midCorrection *math.Quat) *TwoBoneIKJob {
	return &TwoBoneIKJob{
		PoleVector:      math.Vec3{Y: 1},
		MidAxis:         math.Vec3{Z: 1},
		Weight:          1,
		Soften:          1,
		StartJoint:      start,
		MidJoint:        mid,
		EndJoint:        end,
		StartCorrection: startCorrection,
		MidCorrection:   midCorrection,
	}
}

// Check returns the first configuration problem, wrapping ErrInvalidJob.
func (j *TwoBoneIKJob) Check() error {
	if j.StartJoint == nil || j.MidJoint == nil || j.EndJoint == nil {
		return fmt.Errorf("%w: two-bone ik: missing joint matrix", ErrInvalidJob)
	}
	if j.StartCorrection == nil || j.MidCorrection == nil {
		return fmt.Errorf("%w: two-bone ik: missing correction output", ErrInvalidJob)
	}
	if !j.MidAxis.IsNormalized() {
		return fmt.Errorf("%w: two-bone ik: mid axis %v is not normalized", ErrInvalidJob, j.MidAxis)
	}
	return nil
}

// Validate reports whether the job can run.
func (j *TwoBoneIKJob) Validate() bool {
	return j.Check() == nil
}

// twoBoneSetup holds the chain expressed in start joint space (ss) and mid
// joint space (ms).
type twoBoneSetup struct {
	invStart math.Mat4

	startMidMS math.Vec3
	midEndMS   math.Vec3
	startMidSS math.Vec3

	startMidLen2 float32
	midEndLen2   float32
	startEndLen2 float32
}

func newTwoBoneSetup(j *TwoBoneIKJob) twoBoneSetup {
	invStart := j.StartJoint.Inverse()
	invMid := j.MidJoint.Inverse()

	startMS := invMid.TransformPoint(j.StartJoint.Translation())
	endMS := invMid.TransformPoint(j.EndJoint.Translation())
	midSS := invStart.TransformPoint(j.MidJoint.Translation())
	endSS := invStart.TransformPoint(j.EndJoint.Translation())

	midEndSS := endSS.Sub(midSS)
	return twoBoneSetup{
		invStart:     invStart,
		startMidMS:   startMS.Scale(-1),
		midEndMS:     endMS,
		startMidSS:   midSS,
		startMidLen2: midSS.Dot(midSS),
		midEndLen2:   midEndSS.Dot(midEndSS),
		startEndLen2: endSS.Dot(endSS),
	}
}

// Run computes the corrections. It returns false, without writing anything,
// if the job is invalid.
func (j *TwoBoneIKJob) Run() bool {
	if !j.Validate() {
		return false
	}

	if j.Weight <= 0 {
		*j.StartCorrection = math.QuatIdentity()
		*j.MidCorrection = math.QuatIdentity()
		if j.Reached != nil {
			*j.Reached = false
		}
		return true
	}

	s := newTwoBoneSetup(j)
	target, targetLen2, reached := j.softenTarget(&s)
	if j.Reached != nil {
		*j.Reached = reached && j.Weight >= 1
	}

	midRot := j.midRotation(&s, targetLen2)
	startRot := j.startRotation(&s, midRot, target, targetLen2)

	*j.StartCorrection = weightCorrection(startRot, j.Weight)
	*j.MidCorrection = weightCorrection(midRot, j.Weight)
	return true
}

// softenTarget returns the target in start joint space, pulled towards the
// start joint when it lies beyond Soften times the chain length. The chain
// can reach targets between the bone length difference and the softened
// chain length.
func (j *TwoBoneIKJob) softenTarget(s *twoBoneSetup) (math.Vec3, float32, bool) {
	target := s.invStart.TransformPoint(j.Target)
	targetLen2 := target.Dot(target)

	startMidLen := sqrt32(s.startMidLen2)
	midEndLen := sqrt32(s.midEndLen2)
	targetLen := sqrt32(targetLen2)

	boneDiff := absf(startMidLen - midEndLen)
	chain := startMidLen + midEndLen
	da := chain * min(max(j.Soften, 0), 1)
	ds := chain - da

	reached := !(targetLen > da) && targetLen > boneDiff

	if targetLen > da && targetLen > 0 && ds > 0 {
		// 1 - 3^4/(alpha+3)^4 has slope 1 at 0 and never exceeds 1.
		alpha := (targetLen - da) / ds
		op := alpha + 3
		ratio := 81 / (op * op * op * op)

		softLen := da + ds - ds*ratio
		target = target.Scale(softLen / targetLen)
		targetLen2 = softLen * softLen
	}
	return target, targetLen2, reached
}

// midRotation opens or closes the mid joint so the start-to-end distance
// matches the start-to-target distance, by the law of cosines.
func (j *TwoBoneIKJob) midRotation(s *twoBoneSetup, targetLen2 float32) math.Quat {
	product := s.startMidLen2 * s.midEndLen2
	if product <= 0 {
		return math.QuatIdentity()
	}
	sum := s.startMidLen2 + s.midEndLen2
	halfRLen := 0.5 / sqrt32(product)

	cosCorrected := clamp32((sum-targetLen2)*halfRLen, -1, 1)
	cosInitial := clamp32((sum-s.startEndLen2)*halfRLen, -1, 1)

	corrected := acos32(cosCorrected)
	initial := acos32(cosInitial)
	// The chain is bent backwards when the end lies on the wrong side of
	// the mid axis.
	if s.startMidMS.Cross(j.MidAxis).Dot(s.midEndMS) < 0 {
		initial = -initial
	}
	return math.QuatFromAxisAngle(j.MidAxis, corrected-initial)
}

// startRotation swings the chain onto the target, then turns the chain plane
// around the start-to-target axis to face the pole vector.
func (j *TwoBoneIKJob) startRotation(s *twoBoneSetup, midRot math.Quat, target math.Vec3, targetLen2 float32) math.Quat {
	pole := s.invStart.TransformDirection(j.PoleVector)

	midEndFinal := s.invStart.TransformDirection(j.MidJoint.TransformDirection(midRot.Rotate(s.midEndMS)))
	startEndFinal := s.startMidSS.Add(midEndFinal)
	endToTarget := math.QuatFromVectors(startEndFinal, target)

	if targetLen2 <= 0 {
		return endToTarget
	}

	refNormal := target.Cross(pole)
	midAxis := s.invStart.TransformDirection(j.MidJoint.TransformDirection(j.MidAxis))
	jointNormal := endToTarget.Rotate(midAxis)

	refLen2 := refNormal.Dot(refNormal)
	jointLen2 := jointNormal.Dot(jointNormal)
	if refLen2 < 1e-12 || jointLen2 < 1e-12 {
		return endToTarget
	}

	cos := refNormal.Dot(jointNormal) / sqrt32(refLen2*jointLen2)
	axis := target.Scale(1 / sqrt32(targetLen2))
	planeAxis := axis
	if jointNormal.Dot(pole) < 0 {
		planeAxis = axis.Scale(-1)
	}
	rot := math.QuatFromAxisCosAngle(planeAxis, clamp32(cos, -1, 1)).Mul(endToTarget)

	if j.TwistAngle != 0 {
		rot = math.QuatFromAxisAngle(axis, j.TwistAngle).Mul(rot)
	}
	return rot
}

// weightCorrection moves q to the positive-w hemisphere and blends it from
// identity by weight.
func weightCorrection(q math.Quat, weight float32) math.Quat {
	if q.W < 0 {
		q = q.Negate()
	}
	if weight >= 1 {
		return q
	}
	return math.QuatIdentity().NLerp(q, max(weight, 0))
}

func sqrt32(x float32) float32 {
	return float32(gomath.Sqrt(float64(x)))
}

func acos32(x float32) float32 {
	return float32(gomath.Acos(float64(x)))
}

func clamp32(x, lo, hi float32) float32 {
	return min(max(x, lo), hi)
}
