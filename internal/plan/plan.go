// Package plan parses and models the structured result the engine
// expects back from every model call.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Status discriminates the plan variants. Each status carries only its
// relevant fields; parsing drops anything inconsistent with the status
// so the engine never acts on leftover data.
type Status string

const (
	StatusClarify       Status = "clarify"
	StatusProposeScript Status = "propose_script"
	StatusReviseScript  Status = "revise_script"
	StatusReadyToRun    Status = "ready_to_run"
)

// ErrMalformedPlan indicates no parseable object in the model reply.
// This is turn-fatal: the caller surfaces the raw text and must not
// guess a status.
var ErrMalformedPlan = errors.New("no plan object found in model response")

// ErrUnknownStatus indicates a status outside the closed set.
var ErrUnknownStatus = errors.New("unknown plan status")

// Plan is the parsed, status-tagged model output.
type Plan struct {
	Status    Status   `json:"status"`
	Questions []string `json:"questions,omitempty"`
	Script    string   `json:"script,omitempty"`
	Patch     string   `json:"patch,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	Sources   []string `json:"sources,omitempty"`
}

// Parse extracts a Plan from raw model text. It tolerates prose before
// the first `{` and after the last `}`, but not between them. Missing
// fields default to their zero values; only a missing or invalid
// object is a hard failure.
func Parse(raw string) (*Plan, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrMalformedPlan
	}

	var p Plan
	if err := json.Unmarshal([]byte(raw[start:end+1]), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}

	switch p.Status {
	case StatusClarify:
		p.Script, p.Patch, p.Sources = "", "", nil
	case StatusProposeScript, StatusReadyToRun:
		p.Questions, p.Patch = nil, ""
	case StatusReviseScript:
		p.Questions, p.Script = nil, ""
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, p.Status)
	}
	return &p, nil
}

// HasScript reports whether the plan carries a full script to write.
func (p *Plan) HasScript() bool {
	return (p.Status == StatusProposeScript || p.Status == StatusReadyToRun) && p.Script != ""
}

// HasPatch reports whether the plan carries a diff to apply.
func (p *Plan) HasPatch() bool {
	return p.Status == StatusReviseScript && p.Patch != ""
}
