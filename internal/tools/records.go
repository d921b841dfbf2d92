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

// HTTPRecordRetriever calls the patient record retrieval service over HTTP.
type HTTPRecordRetriever struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPRecordRetriever creates a retriever client for the given base URL.
func NewHTTPRecordRetriever(baseURL string) *HTTPRecordRetriever {
	return &HTTPRecordRetriever{baseURL: baseURL, httpClient: newHTTPClient()}
}

type retrieveRequest struct {
	PatientID string `json:"patient_id"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
}

// Retrieve posts the patient id and query and returns matching record excerpts.
func (r *HTTPRecordRetriever) Retrieve(ctx context.Context, patientID, query string, topK int) (*RetrievalResult, error) {
	ctx, span := tracer.Start(ctx, "tools.retrieve_records")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, TimeoutRetrieve)
	defer cancel()

	body, err := json.Marshal(retrieveRequest{PatientID: patientID, Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshalling retrieve request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/retrieve", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating retrieve request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record retriever call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("record retriever status %d: %s", resp.StatusCode, data)
		span.RecordError(err)
		return nil, err
	}

	var result RetrievalResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding retrieve response: %w", err)
	}

	log.Debug().Int("sources", len(result.Sources)).Msg("records_retrieved")
	return &result, nil
}
