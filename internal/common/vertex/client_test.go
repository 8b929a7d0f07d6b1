package vertex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	commonhttp "conversation-analyzer/internal/common/http"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := commonhttp.NewAuthenticatedClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), 0)
	client := New(Config{
		ProjectID: "tqm-ai-sandbox",
		Location:  "us-central1",
		Model:     "gemini-2.0-flash-001",
		BaseURL:   server.URL,
		Timeout:   timeout,
	}, httpClient)
	return client, server
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNew_DefaultEndpoint(t *testing.T) {
	c := New(Config{ProjectID: "p", Location: "europe-west4", Model: "m"}, commonhttp.NewClient(0))
	assert.Equal(t,
		"https://europe-west4-aiplatform.googleapis.com/v1/projects/p/locations/europe-west4/publishers/google/models/m:generateContent",
		c.Endpoint())
}

func TestGenerateContent_Success(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/projects/tqm-ai-sandbox/locations/us-central1/publishers/google/models/gemini-2.0-flash-001:generateContent", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		writeJSON(w, http.StatusOK, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "`+"```json\\n"+`{\"a\":"}, {"text": "1}\n`+"```"+`"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
		}`)
	}, 0)

	text, err := client.GenerateContent(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "```json\n{\"a\":1}\n```", text)

	gen := captured["generationConfig"].(map[string]interface{})
	assert.Contains(t, gen, "temperature")
	assert.Equal(t, 0.0, gen["temperature"])
	assert.Equal(t, 0.8, gen["topP"])
	assert.Equal(t, float64(8192), gen["maxOutputTokens"])

	contents := captured["contents"].([]interface{})
	require.Len(t, contents, 1)
	first := contents[0].(map[string]interface{})
	assert.Equal(t, "user", first["role"])
	parts := first["parts"].([]interface{})
	require.Len(t, parts, 1)
	assert.Equal(t, "hello", parts[0].(map[string]interface{})["text"])
}

func TestGenerateContent_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "provider error",
			status:  http.StatusForbidden,
			body:    `{"error": {"code": 403, "message": "Permission denied on resource project", "status": "PERMISSION_DENIED"}}`,
			wantErr: "vertex ai returned 403 PERMISSION_DENIED: Permission denied on resource project",
		},
		{
			name:    "non json error body",
			status:  http.StatusBadGateway,
			body:    "upstream unavailable",
			wantErr: "vertex ai returned 502: upstream unavailable",
		},
		{
			name:    "prompt blocked",
			status:  http.StatusOK,
			body:    `{"promptFeedback": {"blockReason": "SAFETY"}}`,
			wantErr: "prompt blocked: SAFETY",
		},
		{
			name:    "no candidates",
			status:  http.StatusOK,
			body:    `{"candidates": []}`,
			wantErr: "response has no candidates",
		},
		{
			name:    "candidate without text",
			status:  http.StatusOK,
			body:    `{"candidates": [{"content": {"parts": []}, "finishReason": "MAX_TOKENS"}]}`,
			wantErr: "candidate has no text: finish reason MAX_TOKENS",
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `{"candidates":`,
			wantErr: "decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}, 0)

			_, err := client.GenerateContent(context.Background(), "prompt")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenerateContent_Timeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	_, err := client.GenerateContent(context.Background(), "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateContent_ContextCancelled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.GenerateContent(ctx, "prompt")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "context canceled"))
}
