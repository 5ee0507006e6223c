package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
	"github.com/TrackerIA/new-grading-vawa/internal/knowledge"
	"github.com/TrackerIA/new-grading-vawa/internal/metrics"
	"github.com/TrackerIA/new-grading-vawa/internal/retry"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type generateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text       string `json:"text"`
			InlineData *struct {
				MIMEType string `json:"mimeType"`
			} `json:"inlineData"`
		} `json:"parts"`
	} `json:"contents"`
	CachedContent string `json:"cachedContent"`
}

type fakeGemini struct {
	mu         sync.Mutex
	generate   []generateRequest
	cacheBody  string
	deleted    []string
	failStatus int
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case f.failStatus != 0:
		w.WriteHeader(f.failStatus)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`))

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/cachedContents"):
		f.cacheBody = string(body)
		_, _ = w.Write([]byte(`{"name":"cachedContents/abc123","model":"models/gemini-2.5-flash",` +
			`"displayName":"vawa-fundamentos-cache","expireTime":"2026-05-01T21:00:00Z"}`))

	case r.Method == http.MethodDelete:
		f.deleted = append(f.deleted, r.URL.Path)
		_, _ = w.Write([]byte(`{}`))

	case strings.HasSuffix(r.URL.Path, ":generateContent"):
		var req generateRequest
		_ = json.Unmarshal(body, &req)
		f.generate = append(f.generate, req)
		n := len(f.generate)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"respuesta ` +
			string(rune('0'+n)) + `"}]},"finishReason":"STOP"}],` +
			`"usageMetadata":{"promptTokenCount":1200,"candidatesTokenCount":300,"totalTokenCount":1500}}`))

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
	}
}

func newTestClient(t *testing.T, fake *fakeGemini) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  srv.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	})
	require.NoError(t, err)
	return New(gc, ModelGemini25Flash)
}

func TestCreateCache(t *testing.T) {
	fake := &fakeGemini{}
	c := newTestClient(t, fake)

	kc, err := c.CreateCache(context.Background(), knowledge.CacheRequest{
		DisplayName:       knowledge.DisplayName,
		SystemInstruction: "Eres un experto analista legal",
		Documents:         []knowledge.Document{{Name: "ley.pdf", Data: []byte("%PDF ley")}},
		TTL:               12 * time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, "cachedContents/abc123", kc.Name)
	assert.Equal(t, ModelGemini25Flash, kc.Model)
	assert.Equal(t, 12*time.Hour, kc.TTL)
	assert.True(t, kc.ExpireTime.Equal(time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)))

	assert.Contains(t, fake.cacheBody, "vawa-fundamentos-cache")
	assert.Contains(t, fake.cacheBody, "Eres un experto analista legal")
	assert.Contains(t, fake.cacheBody, "application/pdf")
	assert.Contains(t, fake.cacheBody, "43200s")
}

func TestDeleteCache(t *testing.T) {
	fake := &fakeGemini{}
	c := newTestClient(t, fake)

	require.NoError(t, c.DeleteCache(context.Background(), "cachedContents/abc123"))
	require.Len(t, fake.deleted, 1)
	assert.Contains(t, fake.deleted[0], "cachedContents/abc123")
}

func TestThread_CachedConversation(t *testing.T) {
	fake := &fakeGemini{}
	c := newTestClient(t, fake)

	kc := &grading.KnowledgeContext{Name: "cachedContents/abc123", Model: ModelGemini25Flash}
	th, err := c.OpenThread(context.Background(), kc, "ignored when cached")
	require.NoError(t, err)

	docs := []grading.NormalizedDocument{
		{Role: grading.RoleTranscript, MIMEType: "application/pdf", Data: []byte("%PDF a")},
		{Role: grading.RoleSummary, MIMEType: "application/pdf", Data: []byte("%PDF b")},
	}
	first, err := th.Send(context.Background(), "Paso 1", docs)
	require.NoError(t, err)
	assert.Equal(t, "respuesta 1", first.Text)
	assert.Equal(t, 1200, first.TokensIn)
	assert.Equal(t, 300, first.TokensOut)

	second, err := th.Send(context.Background(), "Paso 2", nil)
	require.NoError(t, err)
	assert.Equal(t, "respuesta 2", second.Text)

	require.Len(t, fake.generate, 2)
	req1 := fake.generate[0]
	assert.Equal(t, "cachedContents/abc123", req1.CachedContent)
	require.Len(t, req1.Contents, 1)
	require.Len(t, req1.Contents[0].Parts, 3)
	assert.Equal(t, "Paso 1", req1.Contents[0].Parts[0].Text)
	require.NotNil(t, req1.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "application/pdf", req1.Contents[0].Parts[1].InlineData.MIMEType)

	// The second turn carries the first exchange as history.
	req2 := fake.generate[1]
	require.Len(t, req2.Contents, 3)
	assert.Equal(t, "user", req2.Contents[0].Role)
	assert.Equal(t, "model", req2.Contents[1].Role)
	assert.Equal(t, "Paso 2", req2.Contents[2].Parts[0].Text)
}

func TestThread_RateLimitIsTransient(t *testing.T) {
	fake := &fakeGemini{failStatus: http.StatusTooManyRequests}
	c := newTestClient(t, fake)

	th, err := c.OpenThread(context.Background(), nil, "preamble")
	require.NoError(t, err)

	_, err = th.Send(context.Background(), "Paso 1", nil)
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))
	code, ok := retry.StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestNew_DefaultModel(t *testing.T) {
	assert.Equal(t, DefaultModelName, New(nil, "").Model())
	assert.Equal(t, ModelGemini25Pro, New(nil, ModelGemini25Pro).Model())
}
