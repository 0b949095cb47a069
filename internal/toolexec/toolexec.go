// Package toolexec runs external media tools and classifies their failures.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/amillerrr/clipforge/pkg/models"
)

const stderrSnippetLen = 500

// Result holds the captured output of a tool invocation.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Run executes name with args and waits for completion. A zero timeout
// means no bound beyond ctx. Failures are classified into the sentinel
// errors: ErrToolUnavailable when the executable cannot be found,
// ErrToolTimeout when the bound elapses, ErrToolFailed on non-zero exit.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return res, fmt.Errorf("%w: %s", models.ErrToolUnavailable, name)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return res, fmt.Errorf("%w: %s after %s", models.ErrToolTimeout, name, timeout)
	}
	return res, fmt.Errorf("%w: %s: %v: %s", models.ErrToolFailed, name, err, stderrSnippet(res.Stderr))
}

// Available reports whether the tool can be resolved to an executable,
// either as an absolute path or via PATH lookup.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func stderrSnippet(b []byte) string {
	s := string(bytes.TrimSpace(b))
	if len(s) > stderrSnippetLen {
		s = s[:stderrSnippetLen]
	}
	return s
}
