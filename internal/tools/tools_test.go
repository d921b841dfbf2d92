package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transcribe", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "visit.wav", req["audio_ref"])
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "my knee hurts when I walk"})
	}))
	defer srv.Close()

	text, err := NewHTTPTranscriber(srv.URL).Transcribe(context.Background(), "visit.wav")
	require.NoError(t, err)
	assert.Equal(t, "my knee hurts when I walk", text)
}

func TestHTTPTranscriberServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "decode failure", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPTranscriber(srv.URL).Transcribe(context.Background(), "visit.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPVisionClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/classify", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "spot.jpg", req["image_ref"])
		_ = json.NewEncoder(w).Encode(VisionResult{
			Label:        "Melanocytic nevus",
			Confidence:   0.91,
			Distribution: map[string]float64{"Melanocytic nevus": 0.91, "Melanoma": 0.05},
		})
	}))
	defer srv.Close()

	res, err := NewHTTPVisionClassifier(srv.URL).ClassifyImage(context.Background(), "spot.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Melanocytic nevus", res.Label)
	assert.InDelta(t, 0.91, res.Confidence, 1e-9)
	assert.Len(t, res.Distribution, 2)
}

func TestHTTPRecordRetriever(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/retrieve", r.URL.Path)
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "patient-1", req["patient_id"])
		assert.Equal(t, "recent lab results", req["query"])
		assert.EqualValues(t, 3, req["top_k"])
		_ = json.NewEncoder(w).Encode(RetrievalResult{
			Context: "2024-06-02: HbA1c 5.6%",
			Sources: []string{"lab-2024-06-02"},
		})
	}))
	defer srv.Close()

	res, err := NewHTTPRecordRetriever(srv.URL).Retrieve(context.Background(), "patient-1", "recent lab results", 3)
	require.NoError(t, err)
	assert.Contains(t, res.Context, "HbA1c")
	assert.Equal(t, []string{"lab-2024-06-02"}, res.Sources)
}

func TestHTTPRecordRetrieverUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewHTTPRecordRetriever(srv.URL).Retrieve(context.Background(), "patient-1", "labs", 3)
	require.Error(t, err)
}
