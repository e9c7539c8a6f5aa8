package exec

import (
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/joss/aiops/internal/logging"
)

// defaultShebang is injected when a script has no interpreter line.
const defaultShebang = "#!/usr/bin/env bash\nset -euo pipefail\n\n"

// Result holds a completed script execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Success reports whether the script exited cleanly.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// ScriptExecutor runs the workspace script under a fixed timeout.
// A timeout is treated as a failure and never retried.
type ScriptExecutor struct {
	runner  Runner
	shell   string
	sandbox string // "" or "docker"
	timeout time.Duration
	log     *logging.Logger
}

// NewScriptExecutor creates an executor.
func NewScriptExecutor(runner Runner, shell, sandbox string, timeout time.Duration) *ScriptExecutor {
	if shell == "" {
		shell = "/bin/bash"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ScriptExecutor{
		runner:  runner,
		shell:   shell,
		sandbox: sandbox,
		timeout: timeout,
		log:     logging.New("exec"),
	}
}

// EnsureExecutable injects an interpreter line when the script lacks
// one and marks the file executable. Must run before any execution.
func EnsureExecutable(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	if !strings.HasPrefix(string(content), "#!") {
		if err := os.WriteFile(path, append([]byte(defaultShebang), content...), 0755); err != nil {
			return fmt.Errorf("rewriting script: %w", err)
		}
	}
	return os.Chmod(path, 0755)
}

// Run executes the script and captures its output. The context bounds
// the run in addition to the executor's own timeout.
func (e *ScriptExecutor) Run(ctx context.Context, scriptPath string) (*Result, error) {
	if err := EnsureExecutable(scriptPath); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var name string
	var args []string
	if e.sandbox == "docker" {
		dir := filepath.Dir(scriptPath)
		name = "docker"
		args = []string{
			"run", "--rm",
			"-v", dir + ":/workspace",
			"-w", "/workspace",
			"bash", "/bin/bash", "/workspace/" + filepath.Base(scriptPath),
		}
	} else {
		name = e.shell
		args = []string{scriptPath}
	}

	start := time.Now()
	stdout, stderr, err := e.runner.RunSeparate(runCtx, name, args...)
	res := &Result{
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		Duration: time.Since(start),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		e.log.Warn("script_timeout", map[string]interface{}{"path": scriptPath, "timeout": e.timeout.String()}, nil)
		return res, nil
	}

	if err != nil {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Spawn failure, not a script failure.
			return nil, fmt.Errorf("running script: %w", err)
		}
	}

	e.log.TimedEvent("script_run", start, map[string]interface{}{
		"exit_code": res.ExitCode,
		"sandbox":   e.sandbox,
	})
	return res, nil
}
