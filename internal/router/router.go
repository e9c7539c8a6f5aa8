// Package router maps a user utterance to registered skills.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joss/aiops/internal/logging"
	"github.com/joss/aiops/internal/skills"
)

// Classifier is the slice of the backend the router needs.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// Router selects skills for an utterance via the external
// classification capability.
type Router struct {
	classifier Classifier
	log        *logging.Logger
}

// New creates a router.
func New(classifier Classifier) *Router {
	return &Router{classifier: classifier, log: logging.New("router")}
}

// SelectSkills returns the names of registry skills the classifier
// picked for the input. Names not present in the registry are dropped;
// an unparseable or failed classification yields the empty result so
// the caller proceeds without skill prompts. The classification call
// is never retried.
func (r *Router) SelectSkills(ctx context.Context, userInput string, registry *skills.Registry) []string {
	if registry.Len() == 0 {
		return nil
	}

	prompt, err := buildPrompt(userInput, registry.Summaries())
	if err != nil {
		r.log.Warn("router_prompt_failed", nil, err)
		return nil
	}

	reply, err := r.classifier.Classify(ctx, prompt)
	if err != nil {
		r.log.Warn("classify_failed", nil, err)
		return nil
	}

	var names []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &names); err != nil {
		r.log.Warn("classify_unparseable", map[string]interface{}{"reply": reply}, err)
		return nil
	}

	selected := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := registry.Get(name); ok {
			selected = append(selected, name)
		}
	}
	return selected
}

func buildPrompt(userInput string, summaries []skills.Summary) (string, error) {
	encoded, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`You are a skill router.
Given the user request and the available skills, choose the most relevant skill(s) by name.
Return only a JSON array of skill names.

User request: %q

Available skills:
%s
`, userInput, encoded), nil
}
