package renderer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"motif/internal/pkg/errors"
)

// fakeRunner simulates the engine CLI: it optionally creates the nested
// output file the way the real engine does, or fails with diagnostics.
type fakeRunner struct {
	fail       bool
	skipOutput bool
	output     string
	calls      []fakeCall
}

type fakeCall struct {
	dir  string
	name string
	args []string
}

func (r *fakeRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, fakeCall{dir: dir, name: name, args: args})

	if r.fail {
		return []byte(r.output), fmt.Errorf("exit status 1")
	}
	if r.skipOutput {
		return []byte(r.output), nil
	}

	// Reconstruct the engine's media layout: args hold the -o name and the
	// script path last but one.
	var outName string
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			outName = args[i+1]
		}
	}
	scriptPath := args[len(args)-2]
	scriptBase := strings.TrimSuffix(filepath.Base(scriptPath), ".py")

	produced := filepath.Join(dir, "media", "videos", scriptBase, "480p15", outName)
	if err := os.MkdirAll(filepath.Dir(produced), 0o755); err != nil {
		return nil, err
	}
	return []byte(r.output), os.WriteFile(produced, []byte("video-bytes"), 0o644)
}

func TestRenderSceneSuccess(t *testing.T) {
	workdir := t.TempDir()
	runner := &fakeRunner{}
	r := New(Config{}, runner, nil)

	scene := demoScene()
	artifact, err := r.RenderScene(context.Background(), scene, compile(t, scene), 0, workdir)
	if err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(workdir, "scene_000_demo.mp4")
	if artifact != want {
		t.Errorf("artifact path %q, want %q", artifact, want)
	}
	if _, err := os.Stat(artifact); err != nil {
		t.Errorf("artifact missing: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("expected one engine invocation, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	if call.name != "manim" {
		t.Errorf("engine binary %q, want manim", call.name)
	}
	joined := strings.Join(call.args, " ")
	for _, want := range []string{"-ql", "--disable_caching", "-o scene_000_demo.mp4", "DynamicScene0"} {
		if !strings.Contains(joined, want) {
			t.Errorf("engine args missing %q: %v", want, call.args)
		}
	}

	// Scratch namespace must be gone; only the artifact remains.
	entries, err := os.ReadDir(workdir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "scene_000_demo.mp4" {
		t.Errorf("workdir not cleaned up: %v", entries)
	}
}

func TestRenderSceneEngineFailure(t *testing.T) {
	workdir := t.TempDir()
	runner := &fakeRunner{fail: true, output: "Traceback (most recent call last):\nValueError: bad scene"}
	r := New(Config{}, runner, nil)

	scene := demoScene()
	_, err := r.RenderScene(context.Background(), scene, compile(t, scene), 0, workdir)
	if err == nil {
		t.Fatal("expected engine failure")
	}
	if errors.GetCode(err) != errors.CodeEngineFailure {
		t.Errorf("expected ENGINE_FAILURE, got %s", errors.GetCode(err))
	}
	if !strings.Contains(err.Error(), "ValueError: bad scene") {
		t.Errorf("diagnostic not preserved: %v", err)
	}

	entries, _ := os.ReadDir(workdir)
	if len(entries) != 0 {
		t.Errorf("scratch leaked after failure: %v", entries)
	}
}

func TestRenderSceneMissingOutput(t *testing.T) {
	workdir := t.TempDir()
	runner := &fakeRunner{skipOutput: true, output: "rendered 0 scenes"}
	r := New(Config{}, runner, nil)

	scene := demoScene()
	_, err := r.RenderScene(context.Background(), scene, compile(t, scene), 0, workdir)
	if err == nil {
		t.Fatal("expected failure for missing output file")
	}
	if errors.GetCode(err) != errors.CodeEngineFailure {
		t.Errorf("expected ENGINE_FAILURE, got %s", errors.GetCode(err))
	}
	if !strings.Contains(err.Error(), "output file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRenderSceneQualityMapping(t *testing.T) {
	tests := []struct {
		quality string
		flag    string
	}{
		{"low", "-ql"},
		{"medium", "-qm"},
		{"high", "-qh"},
	}
	for _, tt := range tests {
		t.Run(tt.quality, func(t *testing.T) {
			runner := &fakeRunner{skipOutput: true}
			r := New(Config{Quality: tt.quality}, runner, nil)
			scene := demoScene()
			// Fails on missing output, but the invocation is recorded.
			_, _ = r.RenderScene(context.Background(), scene, compile(t, scene), 0, t.TempDir())
			if len(runner.calls) != 1 || runner.calls[0].args[0] != tt.flag {
				t.Errorf("expected flag %s, got %v", tt.flag, runner.calls)
			}
		})
	}

	r := New(Config{Quality: "ultra"}, &fakeRunner{}, nil)
	scene := demoScene()
	if _, err := r.RenderScene(context.Background(), scene, compile(t, scene), 0, t.TempDir()); err == nil {
		t.Error("expected error for unknown quality")
	}
}
