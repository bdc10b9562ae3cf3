// Package media joins per-scene artifacts into one deliverable and converts
// container formats, both by driving the external multiplexer (ffmpeg).
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"motif/internal/pkg/errors"
	"motif/internal/pkg/logger"
)

// Runner executes the external multiplexer. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner invokes the real binary.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Assembler concatenates and transcodes render artifacts.
type Assembler struct {
	bin    string
	runner Runner
	log    *logger.Logger
}

// New creates an Assembler. A nil runner gets the real subprocess runner.
func New(runner Runner, log *logger.Logger) *Assembler {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Assembler{bin: "ffmpeg", runner: runner, log: log.WithComponent("assembler")}
}

// Assemble joins artifacts in the given order into outPath using a lossless
// stream-copy concat. A single artifact is adopted as-is (rename, no
// re-encode). The source artifacts are deleted afterward, success or
// failure: a job never leaves scene fragments behind.
func (a *Assembler) Assemble(ctx context.Context, artifacts []string, outPath string) (string, error) {
	if len(artifacts) == 0 {
		return "", errors.Internal("assemble called with no artifacts")
	}

	if len(artifacts) == 1 {
		if err := os.Rename(artifacts[0], outPath); err != nil {
			return "", errors.Wrap(err, "media.adopt", "failed to adopt single artifact")
		}
		return outPath, nil
	}

	defer removeAll(artifacts)

	listPath := filepath.Join(filepath.Dir(outPath), "concat_list.txt")
	var list strings.Builder
	for _, p := range artifacts {
		fmt.Fprintf(&list, "file '%s'\n", p)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", errors.Wrap(err, "media.concat", "failed to write concat list")
	}
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
		"-y",
	}

	a.log.FromContext(ctx).Debug("joining artifacts", "count", len(artifacts), "out", outPath)

	out, err := a.runner.Run(ctx, a.bin, args...)
	if err != nil {
		return "", errors.AssemblyFailure("media.concat", diagnostic(out), err)
	}
	return outPath, nil
}

// Transcode converts the joined artifact to the requested container.
// The source artifact is deleted once the conversion succeeds. mp4 is the
// native container and needs no work.
func (a *Assembler) Transcode(ctx context.Context, inPath, format string) (string, error) {
	var args []string
	var outPath string

	switch format {
	case "", "mp4":
		return inPath, nil
	case "gif":
		outPath = replaceExt(inPath, ".gif")
		args = []string{
			"-i", inPath,
			"-vf", "fps=15,scale=640:-1:flags=lanczos",
			"-c:v", "gif",
			outPath,
			"-y",
		}
	case "webm":
		outPath = replaceExt(inPath, ".webm")
		args = []string{
			"-i", inPath,
			"-c:v", "libvpx-vp9",
			"-crf", "30",
			"-b:v", "0",
			outPath,
			"-y",
		}
	default:
		return "", errors.Newf(errors.CodeBadRequest, "unsupported output format %q", format)
	}

	a.log.FromContext(ctx).Debug("transcoding", "format", format, "out", outPath)

	out, err := a.runner.Run(ctx, a.bin, args...)
	if err != nil {
		return "", errors.AssemblyFailure("media.transcode", diagnostic(out), err)
	}
	if err := os.Remove(inPath); err != nil && !os.IsNotExist(err) {
		a.log.Warn("failed to remove pre-transcode artifact", "path", inPath, "error", err.Error())
	}
	return outPath, nil
}

// AddAudioTrack muxes an audio file onto the video, trimming to the shorter
// stream.
func (a *Assembler) AddAudioTrack(ctx context.Context, videoPath, audioPath, outPath string) (string, error) {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		outPath,
		"-y",
	}

	out, err := a.runner.Run(ctx, a.bin, args...)
	if err != nil {
		return "", errors.AssemblyFailure("media.audio", diagnostic(out), err)
	}
	return outPath, nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

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
