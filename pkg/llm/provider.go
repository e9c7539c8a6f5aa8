// Package llm defines the model backend contract the engine depends on.
package llm

import "context"

// Message is one turn of a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the backend's answer to a Complete call. ResponseID is
// the opaque continuation token that lets a later call resume the same
// logical exchange without resending full history.
type Completion struct {
	Text       string
	ResponseID string
}

// CompleteRequest carries one model call. ConversationID and
// PreviousResponseID are mutually exclusive: the first turn of a
// session sends the conversation id, later turns send the last
// response id.
type CompleteRequest struct {
	Messages           []Message
	ConversationID     string
	PreviousResponseID string
}

// Provider is the request/response capability the engine talks to.
// Implementations must tolerate being asked for malformed or empty
// text without crashing the caller.
type Provider interface {
	// Complete sends messages and returns plain text plus a
	// continuation token.
	Complete(ctx context.Context, req *CompleteRequest) (*Completion, error)

	// Classify asks a lightweight stateless question and returns plain
	// text expected to parse as a JSON array of strings.
	Classify(ctx context.Context, prompt string) (string, error)

	// CreateConversation creates a backend conversation and returns
	// its id, or an empty id when the backend has no such concept.
	CreateConversation(ctx context.Context) (string, error)

	// DeleteConversation removes a backend conversation. Best effort:
	// a false return is reported, never fatal.
	DeleteConversation(ctx context.Context, id string) bool
}
