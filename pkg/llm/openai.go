package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joss/aiops/internal/logging"
)

const defaultBaseURL = "https://api.openai.com/v1"

// HTTPClient abstracts http.Client for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// OpenAI implements Provider against the OpenAI responses API.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  HTTPClient
	log     *logging.Logger
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(apiKey, model string) *OpenAI {
	return NewOpenAIWithClient(apiKey, model, &http.Client{Timeout: 120 * time.Second})
}

// NewOpenAIWithClient creates a provider with an injected HTTP client.
func NewOpenAIWithClient(apiKey, model string, client HTTPClient) *OpenAI {
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  client,
		log:     logging.New("llm"),
	}
}

// WithBaseURL overrides the API base URL (for proxies and tests).
func (o *OpenAI) WithBaseURL(url string) *OpenAI {
	if url != "" {
		o.baseURL = strings.TrimRight(url, "/")
	}
	return o
}

type responsesRequest struct {
	Model              string    `json:"model"`
	Input              []Message `json:"input"`
	Conversation       string    `json:"conversation,omitempty"`
	PreviousResponseID string    `json:"previous_response_id,omitempty"`
}

type responsesReply struct {
	ID     string `json:"id"`
	Output []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Provider.
func (o *OpenAI) Complete(ctx context.Context, req *CompleteRequest) (*Completion, error) {
	if req.ConversationID != "" && req.PreviousResponseID != "" {
		return nil, fmt.Errorf("conversation id and previous response id are mutually exclusive")
	}

	body := responsesRequest{
		Model:              o.model,
		Input:              req.Messages,
		Conversation:       req.ConversationID,
		PreviousResponseID: req.PreviousResponseID,
	}

	start := time.Now()
	reply, err := o.post(ctx, "/responses", body)
	if err != nil {
		return nil, err
	}
	o.log.TimedEvent("complete", start, map[string]interface{}{"model": o.model})

	return &Completion{Text: extractText(reply), ResponseID: reply.ID}, nil
}

// Classify implements Provider. The reply is returned raw; the caller
// owns the JSON-array contract and its failure policy.
func (o *OpenAI) Classify(ctx context.Context, prompt string) (string, error) {
	body := responsesRequest{
		Model: o.model,
		Input: []Message{{Role: "user", Content: prompt}},
	}
	reply, err := o.post(ctx, "/responses", body)
	if err != nil {
		return "", err
	}
	// Models wrap JSON answers in code fences often enough to strip here.
	return strings.Trim(extractText(reply), "`\njson "), nil
}

// CreateConversation implements Provider.
func (o *OpenAI) CreateConversation(ctx context.Context) (string, error) {
	reply, err := o.post(ctx, "/conversations", struct{}{})
	if err != nil {
		return "", err
	}
	return reply.ID, nil
}

// DeleteConversation implements Provider. Failures are logged, not
// returned: local session deletion proceeds regardless.
func (o *OpenAI) DeleteConversation(ctx context.Context, id string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, o.baseURL+"/conversations/"+id, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		o.log.Warn("conversation_delete_failed", map[string]interface{}{"id": id}, err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		o.log.Warn("conversation_delete_failed", map[string]interface{}{
			"id": id, "status": resp.StatusCode,
		}, nil)
		return false
	}
	return true
}

func (o *OpenAI) post(ctx context.Context, path string, body any) (*responsesReply, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading backend response: %w", err)
	}

	var reply responsesReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decoding backend response: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := http.StatusText(resp.StatusCode)
		if reply.Error != nil {
			msg = reply.Error.Message
		}
		return nil, fmt.Errorf("backend error (%d): %s", resp.StatusCode, msg)
	}
	return &reply, nil
}

func extractText(reply *responsesReply) string {
	for _, out := range reply.Output {
		for _, part := range out.Content {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}
