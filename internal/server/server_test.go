package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tehqua/Vitalis/internal/classify"
	"github.com/tehqua/Vitalis/internal/guardrails"
	"github.com/tehqua/Vitalis/internal/memory"
	"github.com/tehqua/Vitalis/internal/testutil"
	"github.com/tehqua/Vitalis/internal/workflow"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *testutil.ScriptedProvider) {
	t.Helper()

	validator, err := guardrails.NewValidator()
	require.NoError(t, err)

	provider := &testutil.ScriptedProvider{Reply: "Drinking water regularly may help with mild headaches."}
	engine, err := workflow.NewEngine(workflow.EngineConfig{
		Model:         "test-model",
		MaxTokens:     128,
		HistoryWindow: 5,
		RetrievalTopK: 3,
		Validator:     validator,
		Inputs:        classify.NewValidator(10, 50),
		Provider:      provider,
		Conversations: testutil.NewMemConversations(),
	})
	require.NoError(t, err)

	return NewServer(engine, opts...), provider
}

func newSessionStore(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.NewStore(filepath.Join(t.TempDir(), "sessions.db"), 50)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	components := body["components"].(map[string]interface{})
	assert.Equal(t, "disabled", components["session_store"])
}

func TestHandleTurn(t *testing.T) {
	srv, provider := newTestServer(t)

	payload, _ := json.Marshal(workflow.TurnRequest{
		PatientID: testutil.ValidPatientID,
		Text:      "I sometimes get mild headaches.",
	})
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/turns", bytes.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code)
	var res workflow.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, provider.Reply, res.Response)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, classify.ModalityText, res.Metadata.Modality)
}

func TestHandleTurnBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/turns", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/turns", strings.NewReader(`{"text":"hi"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "patient_id is required")
}

func TestRoutesRepeatedCalls(t *testing.T) {
	srv, _ := newTestServer(t)

	// Each call builds an independent mux; a second call must not panic
	// or disturb the first handler.
	first := srv.Routes()
	second := srv.Routes()

	for _, h := range []http.Handler{first, second, srv.Routes()} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	store := newSessionStore(t)
	srv, _ := newTestServer(t, WithSessionStore(store))
	routes := srv.Routes()

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "sess-1", testutil.ValidPatientID,
		memory.NewMessage(memory.RoleUser, "hello"),
		memory.NewMessage(memory.RoleAssistant, "hi, how can I help?"),
	))

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list["count"])

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-1/messages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.EqualValues(t, 2, msgs["count"])

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/sess-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/sess-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionEndpointsDisabled(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestRateLimitMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, WithRateLimiter(NewRateLimiter(1, 1)))
	routes := srv.Routes()

	payload, _ := json.Marshal(workflow.TurnRequest{
		PatientID: testutil.ValidPatientID,
		Text:      "hello",
	})

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/turns", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/turns", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
