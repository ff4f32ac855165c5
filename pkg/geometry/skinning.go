// Package geometry deforms mesh vertices with the joint matrices produced by
// the animation pipeline.
package geometry

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// ErrInvalidJob is wrapped by every SkinningJob configuration error.
var ErrInvalidJob = errors.New("geometry: invalid skinning job")

// SkinningJob applies a matrix palette to vertex buffers.
//
// Buffers are float slices holding 3 floats per vertex at the given stride,
// counted in elements. A zero stride means tightly packed. Joint indices and
// weights follow the same rule, with InfluencesCount indices and
// InfluencesCount-1 weights per vertex: the last weight is 1 minus the sum of
// the others.
//
// Output normals and tangents are not normalized.
type SkinningJob struct {
	VertexCount     int
	InfluencesCount int

	// JointMatrices usually hold model matrices multiplied by the inverse
	// bind pose.
	JointMatrices []math.Mat4
	// JointInverseTransposeMatrices, when set, transform normals and tangents
	// instead of JointMatrices. Needed with non-uniform scale.
	JointInverseTransposeMatrices []math.Mat4

	JointIndices       []uint16
	JointIndicesStride int
	JointWeights       []float32
	JointWeightsStride int

	InPositions       []float32
	InPositionsStride int
	InNormals         []float32
	InNormalsStride   int
	InTangents        []float32
	InTangentsStride  int

	OutPositions       []float32
	OutPositionsStride int
	OutNormals         []float32
	OutNormalsStride   int
	OutTangents        []float32
	OutTangentsStride  int
}

func stride(s, packed int) int {
	if s == 0 {
		return packed
	}
	return s
}

// fits reports whether buf holds count elements of width at the stride.
func fits(buf []float32, count, s, width int) bool {
	if count == 0 {
		return true
	}
	return s >= width && len(buf) >= s*(count-1)+width
}

// Check returns the first configuration problem, wrapping ErrInvalidJob.
func (j *SkinningJob) Check() error {
	n := j.VertexCount
	inf := j.InfluencesCount

	switch {
	case n < 0:
		return fmt.Errorf("%w: negative vertex count %d", ErrInvalidJob, n)
	case inf <= 0:
		return fmt.Errorf("%w: influences count must be positive, got %d", ErrInvalidJob, inf)
	case len(j.JointMatrices) == 0:
		return fmt.Errorf("%w: no joint matrices", ErrInvalidJob)
	case j.JointInverseTransposeMatrices != nil && len(j.JointInverseTransposeMatrices) < len(j.JointMatrices):
		return fmt.Errorf("%w: %d inverse transpose matrices for %d joints",
			ErrInvalidJob, len(j.JointInverseTransposeMatrices), len(j.JointMatrices))
	}

	is := stride(j.JointIndicesStride, inf)
	if n > 0 && (is < inf || len(j.JointIndices) < is*(n-1)+inf) {
		return fmt.Errorf("%w: joint indices too short", ErrInvalidJob)
	}
	if inf > 1 && !fits(j.JointWeights, n, stride(j.JointWeightsStride, inf-1), inf-1) {
		return fmt.Errorf("%w: joint weights too short", ErrInvalidJob)
	}

	if !fits(j.InPositions, n, stride(j.InPositionsStride, 3), 3) ||
		!fits(j.OutPositions, n, stride(j.OutPositionsStride, 3), 3) ||
		(n > 0 && (j.InPositions == nil || j.OutPositions == nil)) {
		return fmt.Errorf("%w: positions missing or too short", ErrInvalidJob)
	}

	normals := j.InNormals != nil || j.OutNormals != nil
	if normals && (j.InNormals == nil || j.OutNormals == nil ||
		!fits(j.InNormals, n, stride(j.InNormalsStride, 3), 3) ||
		!fits(j.OutNormals, n, stride(j.OutNormalsStride, 3), 3)) {
		return fmt.Errorf("%w: normals need matching input and output buffers", ErrInvalidJob)
	}

	if j.InTangents != nil || j.OutTangents != nil {
		if !normals {
			return fmt.Errorf("%w: tangents require normals", ErrInvalidJob)
		}
		if j.InTangents == nil || j.OutTangents == nil ||
			!fits(j.InTangents, n, stride(j.InTangentsStride, 3), 3) ||
			!fits(j.OutTangents, n, stride(j.OutTangentsStride, 3), 3) {
			return fmt.Errorf("%w: tangents need matching input and output buffers", ErrInvalidJob)
		}
	}

	for v := 0; v < n; v++ {
		for _, idx := range j.JointIndices[v*is : v*is+inf] {
			if int(idx) >= len(j.JointMatrices) {
				return fmt.Errorf("%w: vertex %d references joint %d of %d", ErrInvalidJob, v, idx, len(j.JointMatrices))
			}
		}
	}
	return nil
}

// Validate reports whether the job can run.
func (j *SkinningJob) Validate() bool {
	return j.Check() == nil
}

// Run skins VertexCount vertices. It returns false, without writing, if the
// job is invalid.
func (j *SkinningJob) Run() bool {
	if !j.Validate() {
		return false
	}
	if j.InfluencesCount == 1 {
		j.runSingle()
	} else {
		j.runBlended()
	}
	return true
}

// runSingle handles rigid skinning, one joint per vertex, without blending.
func (j *SkinningJob) runSingle() {
	is := stride(j.JointIndicesStride, 1)
	for v := 0; v < j.VertexCount; v++ {
		idx := j.JointIndices[v*is]
		vecs := j.JointMatrices
		if j.JointInverseTransposeMatrices != nil {
			vecs = j.JointInverseTransposeMatrices
		}
		j.write(v, j.JointMatrices[idx], vecs[idx])
	}
}

func (j *SkinningJob) runBlended() {
	inf := j.InfluencesCount
	is := stride(j.JointIndicesStride, inf)
	ws := stride(j.JointWeightsStride, inf-1)

	for v := 0; v < j.VertexCount; v++ {
		indices := j.JointIndices[v*is : v*is+inf]
		weights := j.JointWeights[v*ws : v*ws+inf-1]

		var m, it math.Mat4
		last := float32(1)
		for i, idx := range indices {
			w := last
			if i < len(weights) {
				w = weights[i]
				last -= w
			}
			m = m.Add(j.JointMatrices[idx].MulScalar(w))
			if j.JointInverseTransposeMatrices != nil {
				it = it.Add(j.JointInverseTransposeMatrices[idx].MulScalar(w))
			}
		}
		if j.JointInverseTransposeMatrices == nil {
			it = m
		}
		j.write(v, m, it)
	}
}

func (j *SkinningJob) write(v int, m, vecs math.Mat4) {
	p := read3(j.InPositions, v*stride(j.InPositionsStride, 3))
	write3(j.OutPositions, v*stride(j.OutPositionsStride, 3), m.TransformPoint(p))

	if j.InNormals != nil {
		nrm := read3(j.InNormals, v*stride(j.InNormalsStride, 3))
		write3(j.OutNormals, v*stride(j.OutNormalsStride, 3), vecs.TransformDirection(nrm))
	}
	if j.InTangents != nil {
		tan := read3(j.InTangents, v*stride(j.InTangentsStride, 3))
		write3(j.OutTangents, v*stride(j.OutTangentsStride, 3), vecs.TransformDirection(tan))
	}
}

func read3(buf []float32, off int) math.Vec3 {
	return math.Vec3{X: buf[off], Y: buf[off+1], Z: buf[off+2]}
}

func write3(buf []float32, off int, v math.Vec3) {
	buf[off], buf[off+1], buf[off+2] = v.X, v.Y, v.Z
}
