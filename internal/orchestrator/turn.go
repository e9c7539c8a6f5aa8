package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/joss/aiops/internal/audit"
	"github.com/joss/aiops/internal/config"
	"github.com/joss/aiops/internal/exec"
	"github.com/joss/aiops/internal/plan"
	"github.com/joss/aiops/internal/state"
	"github.com/joss/aiops/internal/workspace"
	"github.com/joss/aiops/pkg/llm"
)

// reviewAction is the operator's decision at the review gate.
type reviewAction int

const (
	reviewExecute reviewAction = iota
	reviewAbort
	reviewChange
)

// runTurn drives one content utterance through the turn state machine:
// route to skills, call the model, interpret the plan, and loop through
// clarification or review until the turn settles back to collecting
// input. quit is true on EOF or an explicit abort at review.
func (e *Engine) runTurn(ctx context.Context, utterance string) (quit bool, err error) {
	sessID, err := e.ensureSession(ctx, utterance)
	if err != nil {
		return false, err
	}
	log := e.log.WithSession(sessID)

	// ROUTING: skill selection and doc retrieval happen once per
	// turn, against the original utterance.
	skillCtx := e.skillContext(ctx, utterance)
	docsCtx := ""
	if e.fetcher != nil {
		docsCtx = e.fetcher.FetchContext(ctx, utterance)
	}

	pending := utterance
	for {
		// MODEL_CALL. The user message is persisted as soon as it is
		// submitted; assistant side effects only land if the
		// corresponding step completes.
		sess, err := e.store.Get(sessID)
		if err != nil {
			return false, err
		}
		req := buildRequest(sessID, sess, skillCtx, docsCtx, pending)

		if err := e.store.AppendMessage(sessID, state.RoleUser, pending, ""); err != nil {
			return false, err
		}

		completion, err := e.complete(ctx, sessID, req)
		if err != nil {
			e.out.Error("model call failed: %v", err)
			return false, nil
		}

		// INTERPRET. A reply with no locatable plan object is
		// turn-fatal: show the raw text, never guess a status.
		p, perr := plan.Parse(completion.Text)
		if perr != nil {
			log.Warn("plan_unparseable", nil, perr)
			e.out.Error("The model reply could not be interpreted as a plan:")
			e.out.Assistant(completion.Text)
			return false, nil
		}

		if err := e.store.AppendMessage(sessID, state.RoleAssistant, completion.Text, completion.ResponseID); err != nil {
			return false, err
		}

		switch p.Status {
		case plan.StatusClarify:
			// CLARIFYING: ask each question, feed the answers back as
			// the next user message.
			answers, ok := e.clarify(p.Questions)
			if !ok {
				return true, nil
			}
			pending = answers
			continue

		case plan.StatusReviseScript:
			if !p.HasPatch() {
				e.noted(p)
				return false, nil
			}
			// REVISING: apply the patch, re-show, re-enter review.
			if ok := e.revise(ctx, sessID, p.Patch); !ok {
				return false, nil
			}

		case plan.StatusProposeScript, plan.StatusReadyToRun:
			if !p.HasScript() {
				// NOTED: nothing actionable this turn.
				e.noted(p)
				return false, nil
			}
			if err := e.ws.WriteNew(p.Script); err != nil {
				return false, err
			}
			if err := exec.EnsureExecutable(e.ws.Path()); err != nil {
				return false, err
			}
			e.showScript(p.Notes)
		}

		// AUTO_EXECUTE or REVIEW, depending on the execution mode.
		if e.cfg.Execution.Mode == config.ModeAuto {
			e.execute(ctx, sessID)
			return false, nil
		}

		action, input, ok := e.review(ctx)
		if !ok || action == reviewAbort {
			return !ok || action == reviewAbort, nil
		}
		if action == reviewExecute {
			e.execute(ctx, sessID)
			return false, nil
		}
		// reviewChange: the free-text input becomes the next user
		// message and the loop returns to the model call.
		pending = input
	}
}

// buildRequest assembles the completion request. The first turn of a
// session sends the conversation id with full replayed history; once
// an assistant message has carried a continuation token, later turns
// send only the new message with the previous response id.
func buildRequest(sessID string, sess *state.Session, skillCtx, docsCtx, pending string) *llm.CompleteRequest {
	if sess.LastResponseID != "" {
		return &llm.CompleteRequest{
			Messages:           plan.BuildMessages(skillCtx, docsCtx, nil, pending),
			PreviousResponseID: sess.LastResponseID,
		}
	}
	history := sess.Messages
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return &llm.CompleteRequest{
		Messages:       plan.BuildMessages(skillCtx, docsCtx, history, pending),
		ConversationID: sessID,
	}
}

// skillContext routes the utterance and concatenates the system
// prompts of every selected skill.
func (e *Engine) skillContext(ctx context.Context, utterance string) string {
	names := e.router.SelectSkills(ctx, utterance, e.registry)
	if len(names) == 0 {
		return ""
	}

	var b strings.Builder
	for _, name := range names {
		sk, ok := e.registry.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "[skill: %s]\n%s\n", sk.Name, sk.SystemPrompt)
	}
	e.out.Println("(using skills: %s)", strings.Join(names, ", "))
	return b.String()
}

// complete performs one audited model call.
func (e *Engine) complete(ctx context.Context, sessID string, req *llm.CompleteRequest) (*llm.Completion, error) {
	ev := audit.NewEvent(sessID, audit.CategoryModel, "complete")
	completion, err := e.provider.Complete(ctx, req)
	if e.audit != nil {
		status := audit.StatusSuccess
		if err != nil {
			status = audit.StatusError
		}
		if rerr := e.audit.Record(ctx, ev.Finish(status, err)); rerr != nil {
			e.log.Warn("audit_record_failed", map[string]interface{}{"op": "complete"}, rerr)
		}
	}
	return completion, err
}

// clarify asks each question in turn and returns the recorded Q/A
// pairs as the next user message. ok is false on EOF.
func (e *Engine) clarify(questions []string) (string, bool) {
	var b strings.Builder
	for _, q := range questions {
		e.out.Println("? %s", q)
		answer, ok := e.readLine("> ")
		if !ok {
			return "", false
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", q, answer)
	}
	return b.String(), true
}

// revise applies the patch to the workspace script and re-shows it.
// Degraded apply strategies are surfaced, never silent. Returns false
// when the patch could not be applied at all.
func (e *Engine) revise(ctx context.Context, sessID, patchText string) bool {
	ev := audit.NewEvent(sessID, audit.CategoryPatch, "apply")
	strategy, err := e.ws.ApplyPatch(ctx, patchText)
	if e.audit != nil {
		status := audit.StatusSuccess
		if err != nil {
			status = audit.StatusError
		}
		if rerr := e.audit.Record(ctx, ev.Finish(status, err)); rerr != nil {
			e.log.Warn("audit_record_failed", map[string]interface{}{"op": "apply"}, rerr)
		}
	}
	if err != nil {
		e.out.Error("patch failed: %v", err)
		return false
	}

	if strategy != workspace.StrategyTool {
		e.out.Warn("patch applied via %s fallback; review the script carefully", strategy)
	}
	e.showScript("")
	return true
}

func (e *Engine) showScript(notes string) {
	content, err := e.ws.Read()
	if err != nil {
		e.out.Error("reading script: %v", err)
		return
	}
	e.out.Script(content)
	if notes != "" {
		e.out.Println("%s", notes)
	}
}

func (e *Engine) noted(p *plan.Plan) {
	if p.Notes != "" {
		e.out.Assistant(p.Notes)
	} else {
		e.out.Warn("The model returned no actionable script this turn.")
	}
	for _, src := range p.Sources {
		e.out.Println("  source: %s", src)
	}
}

// review is the operator gate: approve/run executes, abort ends the
// session loop, explain asks for a walkthrough, and any other text is
// a change request. ok is false on EOF.
func (e *Engine) review(ctx context.Context) (action reviewAction, input string, ok bool) {
	for {
		line, ok := e.readLine("[approve/run, abort, explain, or describe a change]> ")
		if !ok {
			return reviewAbort, "", false
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "approve", "run":
			return reviewExecute, "", true
		case "abort":
			e.out.Warn("Aborted; script was not run.")
			return reviewAbort, "", true
		case "explain":
			e.explain(ctx)
		default:
			return reviewChange, line, true
		}
	}
}

// explain issues a fresh, stateless model call asking for a plain
// walkthrough of the current script. Nothing is persisted.
func (e *Engine) explain(ctx context.Context) {
	content, err := e.ws.Read()
	if err != nil {
		e.out.Error("reading script: %v", err)
		return
	}

	completion, err := e.provider.Complete(ctx, &llm.CompleteRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "Explain shell scripts step by step in plain language. Respond as plain text."},
			{Role: "user", Content: "Explain what this script does:\n\n" + content},
		},
	})
	if err != nil {
		e.out.Error("model call failed: %v", err)
		return
	}
	e.out.Assistant(completion.Text)
}

// execute runs the workspace script, reports the outcome, and on
// failure offers a single troubleshooting query. Execution is never
// retried automatically.
func (e *Engine) execute(ctx context.Context, sessID string) {
	ev := audit.NewEvent(sessID, audit.CategoryScript, "run")

	result, err := e.executor.Run(ctx, e.ws.Path())
	if err != nil {
		e.out.Error("execution failed to start: %v", err)
		if e.audit != nil {
			if rerr := e.audit.Record(ctx, ev.Finish(audit.StatusError, err)); rerr != nil {
				e.log.Warn("audit_record_failed", map[string]interface{}{"op": "run"}, rerr)
			}
		}
		return
	}

	if e.audit != nil {
		status := audit.StatusSuccess
		switch {
		case result.TimedOut:
			status = audit.StatusTimeout
		case result.ExitCode != 0:
			status = audit.StatusError
		}
		done := ev.Finish(status, nil)
		done.ExitCode = result.ExitCode
		if rerr := e.audit.Record(ctx, done); rerr != nil {
			e.log.Warn("audit_record_failed", map[string]interface{}{"op": "run"}, rerr)
		}
	}

	e.out.ExecResult(result.ExitCode, result.Stdout, result.Stderr, result.TimedOut)
	if result.Success() {
		return
	}

	answer, ok := e.readLine("Troubleshoot the failure? [y/N]> ")
	if !ok || !strings.EqualFold(answer, "y") {
		return
	}
	e.troubleshoot(ctx, result)
}

// troubleshoot issues one fresh, independent model call about the
// failure. It is not a retry of the original request and is never
// repeated.
func (e *Engine) troubleshoot(ctx context.Context, result *exec.Result) {
	content, err := e.ws.Read()
	if err != nil {
		e.out.Error("reading script: %v", err)
		return
	}

	detail := fmt.Sprintf("exit code %d", result.ExitCode)
	if result.TimedOut {
		detail = "timed out"
	}

	completion, err := e.provider.Complete(ctx, &llm.CompleteRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "Diagnose failed shell scripts. Respond as plain text."},
			{Role: "user", Content: fmt.Sprintf(
				"This script failed (%s).\n\nScript:\n%s\n\nStderr:\n%s\n\nWhat went wrong and how do I fix it?",
				detail, content, result.Stderr)},
		},
	})
	if err != nil {
		e.out.Error("model call failed: %v", err)
		return
	}
	e.out.Assistant(completion.Text)
}
