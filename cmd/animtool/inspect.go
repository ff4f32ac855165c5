package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/config"
	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/internal/playback"
	"github.com/Faultbox/midgard-anim/pkg/animation"
	"github.com/Faultbox/midgard-anim/pkg/archive"
	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return errUsage
	}

	obj, err := archive.LoadObject(args[0])
	if err != nil {
		return err
	}

	switch v := obj.(type) {
	case *skeleton.Skeleton:
		printSkeleton(args[0], v)
	case *animation.Animation:
		printAnimation(args[0], v)
	}
	return nil
}

func printSkeleton(path string, s *skeleton.Skeleton) {
	fmt.Printf("Skeleton: %s\n", path)
	fmt.Printf("Joints:   %d\n", s.NumJoints())
	fmt.Println()

	// Parents precede children, so depth can be filled in one pass.
	depth := make([]int, s.NumJoints())
	for j := range depth {
		if p := s.Parent(j); p != skeleton.NoParent {
			depth[j] = depth[p] + 1
		}
	}
	skeleton.IterateDepthFirst(s, skeleton.NoParent, func(j, _ int) {
		leaf := ""
		if s.IsLeaf(j) {
			leaf = " (leaf)"
		}
		fmt.Printf("  %4d %s%s%s\n", j, strings.Repeat("  ", depth[j]), s.JointName(j), leaf)
	})
}

func printAnimation(path string, a *animation.Animation) {
	fmt.Printf("Animation: %s\n", path)
	fmt.Printf("Name:      %s\n", a.Name())
	fmt.Printf("Duration:  %.3fs\n", a.Duration())
	fmt.Printf("Tracks:    %d\n", a.NumTracks())
	fmt.Printf("Keys:      %d translation, %d rotation, %d scale\n",
		animation.CountTranslationKeys(a, -1),
		animation.CountRotationKeys(a, -1),
		animation.CountScaleKeys(a, -1))
	fmt.Printf("Size:      %.1f KB\n", float64(a.Size())/1024)
}

// rig holds a loaded skeleton and animation with the buffers needed to pose
// them.
type rig struct {
	skel  *skeleton.Skeleton
	anim  *animation.Animation
	ctx   *animation.SamplingContext
	local []math.SoaTransform
	blend []math.SoaTransform
	model []math.Mat4
}

func loadRig(skelPath, animPath string) (*rig, error) {
	if skelPath == "" || animPath == "" {
		return nil, errUsage
	}
	skel, err := archive.LoadSkeleton(skelPath)
	if err != nil {
		return nil, err
	}
	anim, err := archive.LoadAnimation(animPath)
	if err != nil {
		return nil, err
	}
	if anim.NumTracks() != skel.NumJoints() {
		return nil, fmt.Errorf("animation has %d tracks, skeleton has %d joints", anim.NumTracks(), skel.NumJoints())
	}
	return &rig{
		skel:  skel,
		anim:  anim,
		ctx:   animation.NewSamplingContext(anim.NumTracks()),
		local: make([]math.SoaTransform, skel.NumSoaJoints()),
		blend: make([]math.SoaTransform, skel.NumSoaJoints()),
		model: make([]math.Mat4, skel.NumJoints()),
	}, nil
}

// pose samples at ratio, blends the result with the bind pose by weight and
// converts to model space.
func (r *rig) pose(ratio, weight, threshold float32) error {
	sampling := animation.SamplingJob{
		Animation: r.anim,
		Context:   r.ctx,
		Ratio:     ratio,
		Skeleton:  r.skel,
		Output:    r.local,
	}
	if err := sampling.Check(); err != nil {
		return err
	}
	sampling.Run()

	blending := animation.BlendingJob{
		Threshold: threshold,
		Layers: []animation.BlendingLayer{
			{Transform: r.local, Weight: weight},
			{Transform: r.skel.BindPose(), Weight: 1 - weight},
		},
		BindPose: r.skel.BindPose(),
		Output:   r.blend,
	}
	if err := blending.Check(); err != nil {
		return err
	}
	blending.Run()

	ltm := animation.LocalToModelJob{Skeleton: r.skel, Input: r.blend, Output: r.model}
	if err := ltm.Check(); err != nil {
		return err
	}
	ltm.Run()
	return nil
}

func cmdSample(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	skelPath := fs.String("skeleton", "", "Skeleton archive")
	animPath := fs.String("animation", "", "Animation archive")
	ratio := fs.Float64("ratio", 0, "Normalized time in [0, 1]")
	fs.Parse(args)

	r, err := loadRig(*skelPath, *animPath)
	if err != nil {
		return err
	}
	if err := r.pose(float32(*ratio), 1, cfg.Blending.Threshold); err != nil {
		return err
	}

	fmt.Printf("%s at ratio %.3f (%.3fs)\n", r.anim.Name(), *ratio, float32(*ratio)*r.anim.Duration())
	for j := range r.skel.NumJoints() {
		p := r.model[j].Translation()
		fmt.Printf("  %-24s % 10.4f % 10.4f % 10.4f\n", r.skel.JointName(j), p.X, p.Y, p.Z)
	}
	return nil
}

func cmdBench(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	skelPath := fs.String("skeleton", "", "Skeleton archive")
	animPath := fs.String("animation", "", "Animation archive")
	frames := fs.Int("frames", cfg.Sampling.Frames, "Frames to evaluate")
	fps := fs.Float64("fps", 60, "Simulated frame rate")
	fs.Parse(args)

	r, err := loadRig(*skelPath, *animPath)
	if err != nil {
		return err
	}

	ctrl := playback.NewController()
	ctrl.SetSpeed(cfg.Playback.Speed)
	ctrl.SetLooping(cfg.Playback.Loop)

	// Fade the animation in from the bind pose so both blend paths run.
	fader := playback.NewFader(0, nil)
	fader.FadeTo(1, cfg.Playback.FadeSeconds)

	dt := float32(1 / *fps)
	bar := progressbar.Default(int64(*frames), "posing")
	var spent time.Duration
	for range *frames {
		weight := fader.Update(dt)
		ctrl.Update(r.anim.Duration(), dt)

		start := time.Now()
		if err := r.pose(ctrl.TimeRatio(), weight, cfg.Blending.Threshold); err != nil {
			return err
		}
		spent += time.Since(start)
		bar.Add(1)
	}
	bar.Finish()

	perFrame := spent / time.Duration(max(*frames, 1))
	logger.Info("bench finished",
		zap.Int("frames", *frames),
		zap.Int("joints", r.skel.NumJoints()),
		zap.Duration("per_frame", perFrame))
	fmt.Printf("%d frames, %d joints: %v per frame\n", *frames, r.skel.NumJoints(), perFrame)
	return nil
}
