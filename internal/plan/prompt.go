package plan

import (
	"github.com/joss/aiops/internal/state"
	"github.com/joss/aiops/pkg/llm"
)

// JSONInstructions is appended to the system context of every model
// call so replies parse as a Plan.
const JSONInstructions = `Respond ONLY as JSON with keys:
status (clarify|propose_script|revise_script|ready_to_run),
questions (list of strings),
script (string),
patch (string unified diff),
notes (string),
sources (list of strings).
`

// SystemContext is the base instruction for the script-writing agent.
const SystemContext = `You are an operations agent that turns natural-language
requests into safe, idempotent Bash scripts for Ubuntu. When a request
is ambiguous, ask clarifying questions instead of guessing. When the
operator requests changes to a proposed script, reply with a unified
diff against the current script.`

// BuildMessages assembles the completion request in fixed order:
// system context with JSON instructions, skill context, docs context,
// prior history, then the user message.
func BuildMessages(skillCtx, docsCtx string, history []state.Message, userMsg string) []llm.Message {
	msgs := []llm.Message{
		{Role: "system", Content: SystemContext + "\n" + JSONInstructions},
		{Role: "system", Content: "SKILL CONTEXT:\n" + skillCtx},
		{Role: "system", Content: "DOCS CONTEXT:\n" + docsCtx},
	}
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userMsg})
	return msgs
}
