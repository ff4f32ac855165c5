package animation

import (
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

// JointRange restricts a LocalToModelJob to part of the hierarchy.
type JointRange struct {
	// From is the joint whose subtree is updated, or skeleton.NoParent for
	// every root. Ancestors of From must already hold valid model matrices.
	From int
	// To is the last joint index updated. Joints after To are left untouched.
	To int
	// FromExcluded skips From itself and only updates its descendants.
	FromExcluded bool
}

// LocalToModelJob converts local-space SoA transforms into model-space
// matrices by walking the hierarchy parents first.
type LocalToModelJob struct {
	// Skeleton provides the hierarchy.
	Skeleton *skeleton.Skeleton
	// Root is multiplied onto root joints. Nil means identity.
	Root *math.Mat4
	// Range optionally limits the update. Nil updates every joint.
	Range *JointRange
	// Input holds at least Skeleton.NumSoaJoints batches.
	Input []math.SoaTransform
	// Output holds at least Skeleton.NumJoints matrices.
	Output []math.Mat4
}

// Check returns the first configuration problem, wrapping ErrInvalidJob.
func (j *LocalToModelJob) Check() error {
	if j.Skeleton == nil {
		return fmt.Errorf("%w: local-to-model: nil skeleton", ErrInvalidJob)
	}
	if len(j.Input) < j.Skeleton.NumSoaJoints() {
		return fmt.Errorf("%w: local-to-model: input holds %d soa transforms, need %d",
			ErrInvalidJob, len(j.Input), j.Skeleton.NumSoaJoints())
	}
	if len(j.Output) < j.Skeleton.NumJoints() {
		return fmt.Errorf("%w: local-to-model: output holds %d matrices, need %d",
			ErrInvalidJob, len(j.Output), j.Skeleton.NumJoints())
	}
	if r := j.Range; r != nil && (r.From < skeleton.NoParent || r.From >= j.Skeleton.NumJoints()) {
		return fmt.Errorf("%w: local-to-model: range starts at invalid joint %d", ErrInvalidJob, r.From)
	}
	return nil
}

// Validate reports whether the job can run.
func (j *LocalToModelJob) Validate() bool {
	return j.Check() == nil
}

// Run computes the model-space matrices. It returns false if the job is
// invalid, in which case Output must not be used.
func (j *LocalToModelJob) Run() bool {
	if !j.Validate() {
		return false
	}

	s := j.Skeleton
	n := s.NumJoints()

	from, to, fromExcluded := skeleton.NoParent, n-1, false
	if j.Range != nil {
		from, to, fromExcluded = j.Range.From, min(j.Range.To, n-1), j.Range.FromExcluded
	}

	// Parents precede children, so membership in the subtree of from
	// propagates in a single forward pass.
	var inSubtree [skeleton.MaxJoints]bool

	start := max(from, 0)
	for i := start; i <= to; i++ {
		parent := s.Parent(i)

		if from != skeleton.NoParent {
			if i == from {
				inSubtree[i] = true
				if fromExcluded {
					continue
				}
			} else if parent == skeleton.NoParent || !inSubtree[parent] {
				continue
			} else {
				inSubtree[i] = true
			}
		}

		local := math.GetTransform(j.Input, i).ToMat4()
		switch {
		case parent != skeleton.NoParent:
			j.Output[i] = j.Output[parent].Mul(local)
		case j.Root != nil:
			j.Output[i] = j.Root.Mul(local)
		default:
			j.Output[i] = local
		}
	}
	return true
}
