package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// HTTPTranscriber calls a speech-to-text service over HTTP.
type HTTPTranscriber struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPTranscriber creates a transcriber client for the given base URL.
func NewHTTPTranscriber(baseURL string) *HTTPTranscriber {
	return &HTTPTranscriber{baseURL: baseURL, httpClient: newHTTPClient()}
}

type transcribeRequest struct {
	AudioRef string `json:"audio_ref"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe posts the audio reference to the service and returns the text.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audioRef string) (string, error) {
	ctx, span := tracer.Start(ctx, "tools.transcribe")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, TimeoutTranscribe)
	defer cancel()

	body, err := json.Marshal(transcribeRequest{AudioRef: audioRef})
	if err != nil {
		return "", fmt.Errorf("marshalling transcribe request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/transcribe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating transcribe request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("transcriber call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("transcriber status %d: %s", resp.StatusCode, data)
		span.RecordError(err)
		return "", err
	}

	var apiResp transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decoding transcribe response: %w", err)
	}

	log.Debug().Int("chars", len(apiResp.Text)).Msg("transcription_completed")
	return apiResp.Text, nil
}
