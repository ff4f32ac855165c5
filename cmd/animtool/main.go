// animtool builds, imports and inspects skeletal animation assets.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/config"
	"github.com/Faultbox/midgard-anim/internal/logger"
)

func main() {
	// Global flags come before the command.
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "build":
		err = cmdBuild(cfg, args)
	case "import":
		err = cmdImport(cfg, args)
	case "info":
		err = cmdInfo(args)
	case "sample":
		err = cmdSample(cfg, args)
	case "bench":
		err = cmdBench(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`animtool - skeletal animation asset utility

Usage:
  animtool [global options] <command> [options]

Global options:
  -config <file>     Config file (default ./animtool.yaml, then the user config dir)
  -debug             Debug logging
  -log <file>        Also log to a rotated file
  -out-dir <dir>     Output directory for import
  -frames <n>        Frames for bench
  -threshold <w>     Blending threshold

Commands:
  build -skeleton <in.yaml> -o <out.ozz>
                                      Build a runtime skeleton
  build -animation <in.yaml> [-skeleton <s.ozz>] [-additive] -o <out> [more.yaml...]
                                      Build runtime animations
  import [-o <dir>] [-yaml] <file.gltf|file.glb|file.rsm>
                                      Import a skeleton and its animations
  import -grf <data.grf[,patch.grf]> [-o <dir>] <pattern>...
                                      Import RSM models stored in GRF archives
  info <file.ozz>                     Describe a skeleton or animation archive
  sample -skeleton <s.ozz> -animation <a.ozz> -ratio <r>
                                      Print model-space joint positions
  bench -skeleton <s.ozz> -animation <a.ozz>
                                      Time the sampling, blending and model-space passes

Examples:
  animtool build -skeleton hero.yaml -o hero.ozz
  animtool build -animation walk.yaml -skeleton hero.ozz -o walk.ozz
  animtool -out-dir build import windmill.rsm
  animtool import -grf data.grf,rdata.grf -o models "data/model/*/*.rsm"
  animtool sample -skeleton hero.ozz -animation walk.ozz -ratio 0.5`)
}
