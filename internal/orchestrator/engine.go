// Package orchestrator drives the session loop: it consumes operator
// input, routes it to skills, calls the model, interprets the returned
// plan, and mediates script review and execution.
package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/joss/aiops/internal/audit"
	"github.com/joss/aiops/internal/config"
	"github.com/joss/aiops/internal/exec"
	"github.com/joss/aiops/internal/logging"
	"github.com/joss/aiops/internal/render"
	"github.com/joss/aiops/internal/retrieval"
	"github.com/joss/aiops/internal/router"
	"github.com/joss/aiops/internal/skills"
	"github.com/joss/aiops/internal/state"
	"github.com/joss/aiops/internal/workspace"
	"github.com/joss/aiops/pkg/llm"
)

// historyLimit bounds how many prior messages are replayed into a
// model call when no continuation token is available.
const historyLimit = 20

// Options wires the engine's collaborators. Audit may be nil; the
// engine then skips event recording.
type Options struct {
	Config    *config.Config
	Store     *state.Store
	Registry  *skills.Registry
	Provider  llm.Provider
	Executor  *exec.ScriptExecutor
	Workspace *workspace.Workspace
	Fetcher   *retrieval.Fetcher
	Audit     *audit.Store
	Input     io.Reader
	Output    *render.Renderer
}

// Engine is the session orchestrator. It owns exactly one logical
// thread of control: model calls, patch application, and subprocess
// execution all block the loop, there is no background work.
type Engine struct {
	cfg      *config.Config
	store    *state.Store
	registry *skills.Registry
	router   *router.Router
	provider llm.Provider
	executor *exec.ScriptExecutor
	ws       *workspace.Workspace
	fetcher  *retrieval.Fetcher
	audit    *audit.Store
	in       *bufio.Scanner
	out      *render.Renderer
	log      *logging.Logger
}

// New creates an engine from its collaborators.
func New(opts Options) *Engine {
	return &Engine{
		cfg:      opts.Config,
		store:    opts.Store,
		registry: opts.Registry,
		router:   router.New(opts.Provider),
		provider: opts.Provider,
		executor: opts.Executor,
		ws:       opts.Workspace,
		fetcher:  opts.Fetcher,
		audit:    opts.Audit,
		in:       bufio.NewScanner(opts.Input),
		out:      opts.Output,
		log:      logging.New("orchestrator"),
	}
}

// readLine reads one operator line. ok is false on EOF or read error,
// which terminates the loop.
func (e *Engine) readLine(prompt string) (string, bool) {
	e.out.Prompt(prompt)
	if !e.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(e.in.Text()), true
}

// Run is the interactive loop. It returns on explicit quit, EOF, or
// abort from script review.
func (e *Engine) Run(ctx context.Context) error {
	e.out.Println("aiops — describe what you want done, or type 'help'.")

	for {
		line, ok := e.readLine("aiops> ")
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}

		quit, err := e.dispatch(ctx, line)
		if err != nil {
			e.out.Error("error: %v", err)
		}
		if quit {
			return nil
		}
	}
}

// dispatch handles one operator line: control verbs are matched
// case-insensitively on the first word, anything else is a content
// utterance for the agent.
func (e *Engine) dispatch(ctx context.Context, line string) (quit bool, err error) {
	verb, rest := splitVerb(line)

	switch verb {
	case "exit", "quit":
		return true, nil
	case "help":
		e.out.Help()
	case "list":
		e.renderSessions()
	case "status":
		e.renderStatus()
	case "new":
		err = e.newSession(ctx, rest)
	case "switch":
		if !e.store.Switch(rest) {
			e.out.Warn("no session %q", rest)
		}
	case "title":
		err = e.renameCurrent(rest)
	case "delete":
		err = e.deleteSession(ctx, rest)
	case "clear":
		err = e.clearCurrent()
	case "history":
		err = e.renderHistory()
	default:
		return e.runTurn(ctx, line)
	}
	return false, err
}

func splitVerb(line string) (verb, rest string) {
	parts := strings.SplitN(line, " ", 2)
	verb = strings.ToLower(parts[0])
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}
	return verb, rest
}

// newSession creates and activates a session. The id comes from the
// backend conversation when available, otherwise it is generated
// locally.
func (e *Engine) newSession(ctx context.Context, title string) error {
	if title == "" {
		title = "untitled"
	}

	id, err := e.provider.CreateConversation(ctx)
	if err != nil || id == "" {
		if err != nil {
			e.log.Warn("conversation_create_failed", nil, err)
		}
		id = uuid.NewString()
	}

	if err := e.store.AddSession(id, title); err != nil {
		return err
	}
	e.recordSessionEvent(ctx, id, "create", nil)
	e.out.Success("Created session %s (%s)", id, title)
	return nil
}

// ensureSession returns the current session id, creating one when no
// session is active yet.
func (e *Engine) ensureSession(ctx context.Context, utterance string) (string, error) {
	if id := e.store.GetCurrent(); id != "" {
		return id, nil
	}

	title := utterance
	if len(title) > 40 {
		title = title[:40]
	}
	if err := e.newSession(ctx, title); err != nil {
		return "", err
	}
	return e.store.GetCurrent(), nil
}

// deleteSession removes the session locally. Remote cleanup is best
// effort: a failed backend delete is reported, never fatal, and local
// deletion proceeds regardless.
func (e *Engine) deleteSession(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("usage: delete <id>")
	}

	if !e.provider.DeleteConversation(ctx, id) {
		e.out.Warn("backend conversation %s not removed; deleting locally", id)
	}

	if err := e.store.Delete(id); err != nil {
		if state.IsNotFound(err) {
			e.out.Warn("no session %q", id)
			return nil
		}
		return err
	}
	e.recordSessionEvent(ctx, id, "delete", nil)
	e.out.Success("Deleted session %s", id)
	return nil
}

func (e *Engine) renameCurrent(title string) error {
	id := e.store.GetCurrent()
	if id == "" {
		e.out.Warn("no active session")
		return nil
	}
	if title == "" {
		return fmt.Errorf("usage: title <text>")
	}
	return e.store.Rename(id, title)
}

func (e *Engine) clearCurrent() error {
	id := e.store.GetCurrent()
	if id == "" {
		e.out.Warn("no active session")
		return nil
	}
	if err := e.store.Clear(id); err != nil {
		return err
	}
	e.out.Success("History cleared.")
	return nil
}

func (e *Engine) renderHistory() error {
	id := e.store.GetCurrent()
	if id == "" {
		e.out.Warn("no active session")
		return nil
	}
	msgs, err := e.store.GetHistory(id, 10)
	if err != nil {
		return err
	}
	e.out.History(msgs)
	return nil
}

func (e *Engine) renderSessions() {
	sessions := e.store.ListSessions()
	order := make([]string, 0, len(sessions))
	for id := range sessions {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		return sessions[order[i]].Created < sessions[order[j]].Created
	})
	e.out.Sessions(sessions, e.store.GetCurrent(), order)
}

func (e *Engine) renderStatus() {
	id := e.store.GetCurrent()
	if id == "" {
		e.out.Warn("no active session")
		return
	}
	sess, err := e.store.Get(id)
	if err != nil {
		e.out.Warn("no session %q", id)
		return
	}
	e.out.Println("Session:  %s", sess.ID)
	e.out.Println("Title:    %s", sess.Title)
	e.out.Println("Messages: %d", len(sess.Messages))
	e.out.Println("Mode:     %s", e.cfg.Execution.Mode)
}

func (e *Engine) recordSessionEvent(ctx context.Context, sessionID, op string, opErr error) {
	if e.audit == nil {
		return
	}
	ev := audit.NewEvent(sessionID, audit.CategorySession, op)
	status := audit.StatusSuccess
	if opErr != nil {
		status = audit.StatusError
	}
	if err := e.audit.Record(ctx, ev.Finish(status, opErr)); err != nil {
		e.log.Warn("audit_record_failed", map[string]interface{}{"op": op}, err)
	}
}
