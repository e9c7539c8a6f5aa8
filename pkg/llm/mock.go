package llm

import (
	"context"
	"fmt"
	"sync"
)

// Mock implements Provider for testing. Queue completions with
// EnqueueCompletion; calls beyond the queue return an error.
type Mock struct {
	mu sync.Mutex

	// Completions are returned in order by Complete.
	Completions []Completion
	// ClassifyReplies are returned in order by Classify.
	ClassifyReplies []string

	// CompleteRequests records every Complete call.
	CompleteRequests []CompleteRequest
	// ClassifyPrompts records every Classify call.
	ClassifyPrompts []string
	// Deleted records DeleteConversation calls.
	Deleted []string

	// DeleteFails makes DeleteConversation report failure.
	DeleteFails bool

	nextConv int
	nextResp int
}

// NewMock creates an empty mock provider.
func NewMock() *Mock {
	return &Mock{}
}

// EnqueueCompletion appends a canned completion, assigning a response
// id when none is given.
func (m *Mock) EnqueueCompletion(text string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextResp++
	m.Completions = append(m.Completions, Completion{
		Text:       text,
		ResponseID: fmt.Sprintf("resp-%d", m.nextResp),
	})
	return m
}

// EnqueueClassify appends a canned classification reply.
func (m *Mock) EnqueueClassify(text string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClassifyReplies = append(m.ClassifyReplies, text)
	return m
}

func (m *Mock) Complete(ctx context.Context, req *CompleteRequest) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteRequests = append(m.CompleteRequests, *req)
	if len(m.Completions) == 0 {
		return nil, fmt.Errorf("mock: no completion queued")
	}
	c := m.Completions[0]
	m.Completions = m.Completions[1:]
	return &c, nil
}

func (m *Mock) Classify(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClassifyPrompts = append(m.ClassifyPrompts, prompt)
	if len(m.ClassifyReplies) == 0 {
		return "[]", nil
	}
	r := m.ClassifyReplies[0]
	m.ClassifyReplies = m.ClassifyReplies[1:]
	return r, nil
}

func (m *Mock) CreateConversation(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextConv++
	return fmt.Sprintf("conv-%d", m.nextConv), nil
}

func (m *Mock) DeleteConversation(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, id)
	return !m.DeleteFails
}
