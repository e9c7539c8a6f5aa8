// Package workspace owns the single mutable script artifact of a
// session. All writes go through here; the executor only reads.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joss/aiops/internal/exec"
	"github.com/joss/aiops/internal/logging"
)

// Strategy identifies how a patch was applied. The heuristic and raw
// strategies are best-effort, lossy paths and are surfaced distinctly
// so they are never mistaken for a clean apply.
type Strategy string

const (
	// StrategyTool means the external patch tool applied the diff.
	StrategyTool Strategy = "tool"
	// StrategyHeuristic means the post-image was recovered by
	// splitting the diff on its +++ marker.
	StrategyHeuristic Strategy = "heuristic"
	// StrategyRaw means the patch text itself was written verbatim as
	// a last resort.
	StrategyRaw Strategy = "raw"
)

// ErrMultiFilePatch rejects diffs touching more than one file. The
// heuristic assumes a single-file diff, so multi-file patches are an
// explicit unsupported case rather than a silent mis-patch.
var ErrMultiFilePatch = errors.New("multi-file patches are not supported")

// Workspace holds the script path and applies content mutations.
// There is no version history: each revision destroys the prior
// content.
type Workspace struct {
	root   string
	path   string
	runner exec.Runner
	log    *logging.Logger
}

// New creates the workspace rooted at dir, creating it as needed.
func New(root string, runner exec.Runner) (*Workspace, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	if runner == nil {
		runner = exec.NewOSRunner()
	}
	return &Workspace{
		root:   root,
		path:   filepath.Join(root, "script.sh"),
		runner: runner,
		log:    logging.New("workspace"),
	}, nil
}

// Path returns the script file path.
func (w *Workspace) Path() string {
	return w.path
}

// Exists reports whether a script has been written.
func (w *Workspace) Exists() bool {
	_, err := os.Stat(w.path)
	return err == nil
}

// Read returns the current script content.
func (w *Workspace) Read() (string, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	return string(data), nil
}

// WriteNew overwrites the script with content. The write is atomic:
// a reader never observes a partial script.
func (w *Workspace) WriteNew(content string) error {
	return w.atomicWrite(content)
}

func (w *Workspace) atomicWrite(content string) error {
	tmp, err := os.CreateTemp(w.root, ".script-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp script: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing script: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing script: %w", err)
	}
	return nil
}

// ApplyPatch applies a unified diff to the script, trying strategies
// in order: the external patch tool, the +++-split heuristic, then
// writing the patch text verbatim. The strategy used is returned so
// degraded applies stay observable.
func (w *Workspace) ApplyPatch(ctx context.Context, patchText string) (Strategy, error) {
	if countFileMarkers(patchText) > 1 {
		return "", ErrMultiFilePatch
	}

	if err := w.applyWithTool(ctx, patchText); err == nil {
		return StrategyTool, nil
	} else {
		w.log.Warn("patch_tool_failed", nil, err)
	}

	if content, ok := heuristicContent(patchText); ok {
		if err := w.atomicWrite(content); err != nil {
			return "", err
		}
		w.log.Info("patch_heuristic_applied", map[string]interface{}{"bytes": len(content)})
		return StrategyHeuristic, nil
	}

	// Degraded, lossy last resort: keep the operator's review loop
	// alive rather than losing the revision entirely.
	if err := w.atomicWrite(patchText); err != nil {
		return "", err
	}
	w.log.Warn("patch_raw_fallback", map[string]interface{}{"bytes": len(patchText)}, nil)
	return StrategyRaw, nil
}

func (w *Workspace) applyWithTool(ctx context.Context, patchText string) error {
	if !w.Exists() {
		return fmt.Errorf("no script to patch")
	}
	out, err := w.runner.RunWithStdin(ctx, strings.NewReader(patchText), "patch", "-u", w.path)
	if err != nil {
		return fmt.Errorf("patch tool: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// heuristicContent recovers the post-image of a single-file unified
// diff by taking everything after the `+++` header line.
func heuristicContent(patchText string) (string, bool) {
	parts := strings.Split(patchText, "+++")
	if len(parts) < 2 {
		return "", false
	}
	lines := strings.Split(parts[len(parts)-1], "\n")
	if len(lines) < 2 {
		return "", false
	}
	body := strings.Join(lines[1:], "\n")
	if strings.TrimSpace(body) == "" {
		return "", false
	}
	return body, true
}

func countFileMarkers(patchText string) int {
	count := 0
	for _, line := range strings.Split(patchText, "\n") {
		if strings.HasPrefix(line, "+++ ") {
			count++
		}
	}
	return count
}
