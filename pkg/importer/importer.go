// Package importer converts third-party model files into raw skeletons and
// animations ready for the offline builders.
package importer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/midgard-anim/pkg/animation/offline"
)

// Importer errors.
var (
	ErrUnknownFormat = errors.New("importer: unknown file format")
	ErrNoSkeleton    = errors.New("importer: no joints found")
)

// Importer is implemented by each supported source format.
type Importer interface {
	// ImportSkeleton extracts the joint hierarchy.
	ImportSkeleton() (*offline.RawSkeleton, error)
	// ImportAnimations extracts every animation, with tracks ordered like
	// the joints of the runtime skeleton built from skeleton.
	ImportAnimations(skeleton *offline.RawSkeleton) ([]*offline.RawAnimation, error)
}

// Options tune the importers.
type Options struct {
	// SampleRate in Hz is used to bake glTF cubic spline curves.
	SampleRate float32
	// RSMTicksPerSecond converts RSM frame numbers to seconds.
	RSMTicksPerSecond float32
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{SampleRate: 30, RSMTicksPerSecond: 1000}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SampleRate <= 0 {
		o.SampleRate = d.SampleRate
	}
	if o.RSMTicksPerSecond <= 0 {
		o.RSMTicksPerSecond = d.RSMTicksPerSecond
	}
	return o
}

// Open picks an importer from the file extension.
func Open(path string, opts Options) (Importer, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
		return OpenGLTF(path, opts)
	case ".rsm":
		return OpenRSM(path, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// jointOrder maps joint names to their index in the runtime skeleton, which
// stores joints breadth-first. The first joint wins on duplicate names.
func jointOrder(skeleton *offline.RawSkeleton) ([]string, map[string]int) {
	var names []string
	index := make(map[string]int)
	skeleton.IterateBreadthFirst(func(j, _ *offline.RawJoint) {
		if _, ok := index[j.Name]; !ok {
			index[j.Name] = len(names)
		}
		names = append(names, j.Name)
	})
	return names, index
}
