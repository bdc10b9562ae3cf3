// Package renderer turns compiled scene programs into per-scene video
// artifacts by generating engine-native source and invoking the rendering
// engine CLI as an isolated subprocess.
package renderer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"motif/internal/ir"
	"motif/internal/pkg/errors"
	"motif/internal/pkg/logger"
	"motif/internal/timeline"
)

// Quality levels and the engine flags / media directories they map to.
var qualities = map[string]struct {
	Flag     string
	MediaDir string
}{
	"low":    {"-ql", "480p15"},
	"medium": {"-qm", "720p30"},
	"high":   {"-qh", "1080p60"},
}

// Config for a Renderer.
type Config struct {
	// EngineBin is the engine CLI binary (default "manim").
	EngineBin string
	// Quality is low, medium or high (default "low").
	Quality string
	// Style is the scene style preset applied at script generation.
	Style string
}

// Renderer renders one scene per call. Safe for concurrent use across
// different scenes: every render gets its own scratch namespace.
type Renderer struct {
	cfg    Config
	runner Runner
	log    *logger.Logger
}

// New creates a Renderer. A nil runner gets the real subprocess runner.
func New(cfg Config, runner Runner, log *logger.Logger) *Renderer {
	if cfg.EngineBin == "" {
		cfg.EngineBin = "manim"
	}
	if cfg.Quality == "" {
		cfg.Quality = "low"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Renderer{cfg: cfg, runner: runner, log: log.WithComponent("renderer")}
}

// ForJob returns a renderer specialized with a job's quality and style.
// Empty values keep the base configuration.
func (r *Renderer) ForJob(quality, style string) *Renderer {
	c := *r
	if quality != "" {
		c.cfg.Quality = quality
	}
	if style != "" {
		c.cfg.Style = style
	}
	return &c
}

// RenderScene compiles nothing: it takes a scene plus its compiled program,
// writes the generated script into a scene-private scratch directory under
// workdir, runs the engine and relocates its output to the canonical
// per-scene artifact path. Transient files are removed on every path; the
// artifact survives only on success.
func (r *Renderer) RenderScene(ctx context.Context, scene ir.Scene, program *timeline.Program, sceneIndex int, workdir string) (string, error) {
	log := r.log.FromContext(ctx).WithSceneID(scene.SceneID)

	q, ok := qualities[r.cfg.Quality]
	if !ok {
		return "", errors.Newf(errors.CodeBadRequest, "unknown render quality %q", r.cfg.Quality)
	}

	script, err := GenerateScript(scene, program, sceneIndex, r.cfg.Style)
	if err != nil {
		return "", err
	}

	// Scene-private namespace: concurrent renders of sibling scenes must
	// not share any mutable filesystem state.
	scratch, err := os.MkdirTemp(workdir, fmt.Sprintf("scene_%d_", sceneIndex))
	if err != nil {
		return "", errors.Wrap(err, "renderer.scratch", "failed to create scene scratch dir")
	}
	defer os.RemoveAll(scratch)

	scriptBase := fmt.Sprintf("scene_%d", sceneIndex)
	scriptPath := filepath.Join(scratch, scriptBase+".py")
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return "", errors.Wrap(err, "renderer.script", "failed to write scene script")
	}

	outputName := fmt.Sprintf("scene_%03d_%s", sceneIndex, scene.SceneID)
	args := []string{
		q.Flag,
		"--disable_caching",
		"-o", outputName + ".mp4",
		scriptPath,
		SceneClassName(sceneIndex),
	}

	log.Debug("invoking rendering engine",
		"engine", r.cfg.EngineBin,
		"quality", r.cfg.Quality,
		"instructions", len(program.Instructions),
	)

	out, runErr := r.runner.Run(ctx, scratch, r.cfg.EngineBin, args...)
	if runErr != nil {
		if ctx.Err() != nil {
			return "", errors.WrapWithCode(ctx.Err(), errors.CodeTimeout, "renderer.run", "scene render canceled")
		}
		return "", errors.EngineFailure("renderer.run", diagnostic(out), runErr)
	}

	// The engine nests its output under media/videos/<script>/<quality>/.
	produced := filepath.Join(scratch, "media", "videos", scriptBase, q.MediaDir, outputName+".mp4")
	if _, statErr := os.Stat(produced); statErr != nil {
		return "", errors.EngineFailure("renderer.output",
			fmt.Sprintf("engine output file not found: %s", diagnostic(out)), statErr)
	}

	artifact := filepath.Join(workdir, outputName+".mp4")
	if err := os.Rename(produced, artifact); err != nil {
		return "", errors.Wrap(err, "renderer.relocate", "failed to relocate engine output")
	}

	log.Debug("scene rendered", "artifact", artifact)
	return artifact, nil
}

// diagnostic trims engine output to a loggable tail: the failure cause is
// almost always in the last lines of a long traceback.
func diagnostic(out []byte) string {
	const max = 2000
	s := strings.TrimSpace(string(out))
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	if s == "" {
		s = "no diagnostic output"
	}
	return s
}
