package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenAI) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewOpenAI("sk-test", "gpt-4o-mini").WithBaseURL(srv.URL)
	return srv, client
}

func replyJSON(text, id string) string {
	return `{"id":"` + id + `","output":[{"content":[{"type":"output_text","text":` + encodeJSON(text) + `}]}]}`
}

func encodeJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestCompleteSendsConversation(t *testing.T) {
	var got map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/responses", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(replyJSON("plan text", "resp-1")))
	})

	completion, err := client.Complete(context.Background(), &CompleteRequest{
		Messages:       []Message{{Role: "user", Content: "hi"}},
		ConversationID: "conv-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "plan text", completion.Text)
	assert.Equal(t, "resp-1", completion.ResponseID)
	assert.Equal(t, "conv-1", got["conversation"])
	assert.NotContains(t, got, "previous_response_id")
}

func TestCompleteSendsPreviousResponse(t *testing.T) {
	var got map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(replyJSON("ok", "resp-2")))
	})

	_, err := client.Complete(context.Background(), &CompleteRequest{
		Messages:           []Message{{Role: "user", Content: "more"}},
		PreviousResponseID: "resp-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "resp-1", got["previous_response_id"])
	assert.NotContains(t, got, "conversation")
}

func TestCompleteMutuallyExclusive(t *testing.T) {
	client := NewOpenAI("sk-test", "gpt-4o-mini")
	_, err := client.Complete(context.Background(), &CompleteRequest{
		ConversationID:     "conv-1",
		PreviousResponseID: "resp-1",
	})
	assert.Error(t, err)
}

func TestCompleteBackendError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	_, err := client.Complete(context.Background(), &CompleteRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestClassifyStripsFences(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(replyJSON("```json\n[\"k8s_install\"]\n```", "resp-3")))
	})

	reply, err := client.Classify(context.Background(), "pick skills")
	require.NoError(t, err)
	assert.Equal(t, `["k8s_install"]`, reply)
}

func TestCreateConversation(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations", r.URL.Path)
		w.Write([]byte(`{"id":"conv-9"}`))
	})

	id, err := client.CreateConversation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "conv-9", id)
}

func TestDeleteConversation(t *testing.T) {
	var method, path string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.Write([]byte(`{}`))
	})

	assert.True(t, client.DeleteConversation(context.Background(), "conv-9"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/conversations/conv-9", path)
}

func TestDeleteConversationFailure(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{}`))
	})

	assert.False(t, client.DeleteConversation(context.Background(), "ghost"))
}
