package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/assets"
	"github.com/Faultbox/midgard-anim/internal/config"
	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/animation"
	"github.com/Faultbox/midgard-anim/pkg/animation/offline"
	"github.com/Faultbox/midgard-anim/pkg/archive"
	"github.com/Faultbox/midgard-anim/pkg/importer"
	"github.com/Faultbox/midgard-anim/pkg/math"
	"github.com/Faultbox/midgard-anim/pkg/skeleton"
)

var errUsage = errors.New("missing arguments, see animtool help")

func cmdBuild(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	skelPath := fs.String("skeleton", "", "Raw skeleton YAML, or a built skeleton when building animations")
	animPath := fs.String("animation", "", "Raw animation YAML")
	additive := fs.Bool("additive", false, "Build a delta animation")
	out := fs.String("o", "", "Output file, or directory for several animations")
	fs.Parse(args)

	if *animPath == "" {
		if *skelPath == "" || *out == "" {
			return errUsage
		}
		return buildSkeleton(*skelPath, *out)
	}

	inputs := append([]string{*animPath}, fs.Args()...)
	if *out == "" {
		return errUsage
	}

	var skel *skeleton.Skeleton
	if *skelPath != "" {
		var err error
		if skel, err = archive.LoadSkeleton(*skelPath); err != nil {
			return err
		}
	}

	if len(inputs) == 1 {
		return buildAnimation(cfg, inputs[0], *out, skel, *additive)
	}

	if err := os.MkdirAll(*out, 0755); err != nil {
		return err
	}
	bar := progressbar.Default(int64(len(inputs)), "building")
	for _, in := range inputs {
		dst := filepath.Join(*out, strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))+".ozz")
		if err := buildAnimation(cfg, in, dst, skel, *additive); err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		bar.Add(1)
	}
	return bar.Finish()
}

func buildSkeleton(in, out string) error {
	raw, err := offline.LoadSkeletonFile(in)
	if err != nil {
		return err
	}
	skel, err := offline.BuildSkeleton(raw)
	if err != nil {
		return err
	}
	if err := archive.SaveSkeleton(out, skel); err != nil {
		return err
	}
	logger.Info("built skeleton", zap.String("output", out), zap.Int("joints", skel.NumJoints()))
	return nil
}

func buildAnimation(cfg *config.Config, in, out string, skel *skeleton.Skeleton, additive bool) error {
	raw, err := offline.LoadAnimationFile(in)
	if err != nil {
		return err
	}
	if skel != nil && raw.NumTracks() != skel.NumJoints() {
		return fmt.Errorf("animation has %d tracks, skeleton has %d joints", raw.NumTracks(), skel.NumJoints())
	}

	if additive {
		if skel != nil {
			raw, err = offline.BuildAdditiveFromPose(raw, math.UnpackTransforms(skel.BindPose(), skel.NumJoints()))
		} else {
			raw, err = offline.BuildAdditive(raw)
		}
		if err != nil {
			return err
		}
	}

	anim, err := offline.BuildAnimation(raw)
	if err != nil {
		return err
	}
	if err := archive.SaveAnimation(out, anim); err != nil {
		return err
	}

	logger.Info("built animation",
		zap.String("output", out),
		zap.String("name", anim.Name()),
		zap.Float32("duration", anim.Duration()),
		zap.Int("tracks", anim.NumTracks()),
		zap.Float32("max_translation_error", quantizationError(raw, anim, cfg.Sampling.Frames)))
	return nil
}

// quantizationError returns the largest translation distance between the
// raw and the built animation over frames evenly spaced samples.
func quantizationError(raw *offline.RawAnimation, anim *animation.Animation, frames int) float32 {
	frames = max(frames, 2)
	ctx := animation.NewSamplingContext(anim.NumTracks())
	soa := make([]math.SoaTransform, anim.NumSoaTracks())
	want := make([]math.Transform, raw.NumTracks())

	var worst float32
	for f := range frames {
		ratio := float32(f) / float32(frames-1)
		job := animation.SamplingJob{Animation: anim, Context: ctx, Ratio: ratio, Output: soa}
		if !job.Run() {
			return -1
		}
		if err := offline.SampleAnimation(raw, ratio*raw.Duration, want); err != nil {
			return -1
		}
		for t := range want {
			got := math.GetTransform(soa, t)
			worst = max(worst, got.Translation.Distance(want[t].Translation))
		}
	}
	return worst
}

func cmdImport(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	out := fs.String("o", cfg.Paths.OutputDir, "Output directory")
	grfPath := fs.String("grf", "", "Comma-separated GRF archives to read RSM models from, by pattern")
	writeYAML := fs.Bool("yaml", false, "Also write the raw assets as YAML")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errUsage
	}
	opts := importer.Options{
		SampleRate:        cfg.Import.SampleRate,
		RSMTicksPerSecond: cfg.Import.RSMTicksPerSecond,
	}

	if *grfPath != "" {
		return importArchives(*grfPath, fs.Args(), *out, opts, *writeYAML)
	}

	src := fs.Arg(0)
	imp, err := importer.Open(src, opts)
	if err != nil {
		return err
	}
	base := fileName(strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)))
	joints, anims, err := importModel(imp, base, *out, *writeYAML)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %s: %d joints, %d animations -> %s\n", src, joints, anims, *out)
	return nil
}

// importArchives imports every RSM model matching one of patterns from a
// comma-separated list of GRF archives, later archives overriding earlier
// ones. Each model goes into its own directory under out.
func importArchives(grfPaths string, patterns []string, out string, opts importer.Options, writeYAML bool) error {
	mgr := assets.NewManager()
	defer mgr.Close()
	for _, p := range strings.Split(grfPaths, ",") {
		if err := mgr.AddArchive(strings.TrimSpace(p)); err != nil {
			return err
		}
	}

	var names []string
	for _, p := range patterns {
		matches, err := mgr.Glob(p)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", p, err)
		}
		names = append(names, matches...)
	}
	if len(names) == 0 {
		return fmt.Errorf("no entries of %s match %v", grfPaths, patterns)
	}

	bar := progressbar.Default(int64(len(names)), "importing")
	failed := 0
	for _, name := range names {
		bar.Add(1)
		base := fileName(strings.TrimSuffix(path.Base(name), path.Ext(name)))
		model, err := mgr.LoadRSM(name)
		if err == nil {
			_, _, err = importModel(importer.NewRSM(model, base, opts), base, filepath.Join(out, base), writeYAML)
		}
		if err != nil {
			// Archives hold plenty of static or broken models; keep going.
			logger.Warn("skipped model", zap.String("entry", name), zap.Error(err))
			failed++
		}
	}
	bar.Finish()

	fmt.Printf("Imported %d of %d models from %s -> %s\n", len(names)-failed, len(names), grfPaths, out)
	return nil
}

// importModel builds and saves the skeleton and animations of imp under out.
func importModel(imp importer.Importer, base, out string, writeYAML bool) (int, int, error) {
	rawSkel, err := imp.ImportSkeleton()
	if err != nil {
		return 0, 0, err
	}
	skel, err := offline.BuildSkeleton(rawSkel)
	if err != nil {
		return 0, 0, err
	}
	anims, err := imp.ImportAnimations(rawSkel)
	if err != nil {
		return 0, 0, err
	}

	if err := os.MkdirAll(out, 0755); err != nil {
		return 0, 0, err
	}
	if err := archive.SaveSkeleton(filepath.Join(out, base+".skeleton.ozz"), skel); err != nil {
		return 0, 0, err
	}
	if writeYAML {
		if err := offline.SaveSkeletonFile(filepath.Join(out, base+".skeleton.yaml"), rawSkel); err != nil {
			return 0, 0, err
		}
	}

	for i, raw := range anims {
		name := fileName(raw.Name)
		if name == "" {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		anim, err := offline.BuildAnimation(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("animation %q: %w", raw.Name, err)
		}
		if err := archive.SaveAnimation(filepath.Join(out, name+".ozz"), anim); err != nil {
			return 0, 0, err
		}
		if writeYAML {
			if err := offline.SaveAnimationFile(filepath.Join(out, name+".yaml"), raw); err != nil {
				return 0, 0, err
			}
		}
	}
	return skel.NumJoints(), len(anims), nil
}

// fileName replaces characters that are unsafe in file names.
func fileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}
