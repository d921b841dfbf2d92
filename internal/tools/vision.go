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

// HTTPVisionClassifier calls a skin-condition classifier service over HTTP.
type HTTPVisionClassifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPVisionClassifier creates a vision client for the given base URL.
func NewHTTPVisionClassifier(baseURL string) *HTTPVisionClassifier {
	return &HTTPVisionClassifier{baseURL: baseURL, httpClient: newHTTPClient()}
}

type classifyImageRequest struct {
	ImageRef string `json:"image_ref"`
}

// ClassifyImage posts the image reference and returns the classification.
func (c *HTTPVisionClassifier) ClassifyImage(ctx context.Context, imageRef string) (*VisionResult, error) {
	ctx, span := tracer.Start(ctx, "tools.classify_image")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, TimeoutVision)
	defer cancel()

	body, err := json.Marshal(classifyImageRequest{ImageRef: imageRef})
	if err != nil {
		return nil, fmt.Errorf("marshalling classify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating classify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("vision classifier call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("vision classifier status %d: %s", resp.StatusCode, data)
		span.RecordError(err)
		return nil, err
	}

	var result VisionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding classify response: %w", err)
	}

	log.Debug().Str("label", result.Label).Float64("confidence", result.Confidence).Msg("image_classified")
	return &result, nil
}
