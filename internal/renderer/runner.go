package renderer

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner executes the external rendering engine. Tests substitute a fake so
// renderer behavior is verifiable without the engine installed.
type Runner interface {
	// Run executes name with args in dir and returns the combined
	// stdout/stderr, which doubles as the diagnostic on failure.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// ExecRunner runs the engine as a real subprocess.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.Bytes(), err
}
