// Package exec provides a testable command execution abstraction.
// Inject Runner instead of calling exec.Command directly.
package exec

import (
	"bytes"
	"context"
	"io"
	osexec "os/exec"
)

// Runner defines the interface for executing external commands.
type Runner interface {
	// Run executes a command and returns combined stdout/stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunSeparate executes and returns stdout and stderr separately.
	RunSeparate(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

	// RunWithStdin executes a command with stdin input.
	RunWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}

// OSRunner implements Runner using os/exec.
type OSRunner struct {
	// Env overrides environment variables (nil = inherit from parent)
	Env []string
}

// NewOSRunner creates a new OS-based command runner.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// Run executes a command and returns combined output.
func (r *OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	if r.Env != nil {
		cmd.Env = r.Env
	}
	return cmd.CombinedOutput()
}

// RunSeparate executes and returns stdout and stderr separately.
func (r *OSRunner) RunSeparate(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// RunWithStdin executes a command with stdin input.
func (r *OSRunner) RunWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	if r.Env != nil {
		cmd.Env = r.Env
	}
	return cmd.CombinedOutput()
}

// MockRunner implements Runner for testing.
type MockRunner struct {
	// Calls records all command invocations
	Calls []MockCall

	// Responses maps command name to response
	Responses map[string]MockResponse
}

// MockCall records a single command invocation.
type MockCall struct {
	Name string
	Args []string
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// AddResponse sets the response for a command name.
func (m *MockRunner) AddResponse(name string, resp MockResponse) {
	m.Responses[name] = resp
}

func (m *MockRunner) record(name string, args []string) MockResponse {
	m.Calls = append(m.Calls, MockCall{Name: name, Args: args})
	if resp, ok := m.Responses[name]; ok {
		return resp
	}
	return MockResponse{}
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	resp := m.record(name, args)
	return append(resp.Stdout, resp.Stderr...), resp.Err
}

func (m *MockRunner) RunSeparate(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	resp := m.record(name, args)
	return resp.Stdout, resp.Stderr, resp.Err
}

func (m *MockRunner) RunWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	resp := m.record(name, args)
	return append(resp.Stdout, resp.Stderr...), resp.Err
}
