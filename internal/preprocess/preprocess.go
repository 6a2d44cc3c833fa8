// Package preprocess re-invokes the compiler in preprocess-only mode to
// obtain the canonical text that feeds the fingerprint builder.
package preprocess

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// ErrStderr is returned when the compiler wrote to stderr. Per spec, a
// preprocessing error invalidates the inputs and the whole fingerprint
// must be abandoned.
var ErrStderr = errors.New("preprocess: compiler wrote to stderr")

// Run invokes compilerArgs[0] with compilerArgs[1:], which must already be
// rewritten for canonical preprocess output (see internal/options). It
// returns the exact stdout bytes on success.
func Run(ctx context.Context, compilerArgs []string) ([]byte, error) {
	if len(compilerArgs) == 0 {
		return nil, errors.New("preprocess: no compiler args")
	}

	cmd := exec.CommandContext(ctx, compilerArgs[0], compilerArgs[1:]...) //nolint:gosec // invocation recovered from the build's own compile command
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, err
	}
	if stderr.Len() > 0 {
		return nil, ErrStderr
	}
	return stdout.Bytes(), nil
}
