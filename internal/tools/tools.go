// Package tools defines the contracts for the external collaborators the
// workflow engine calls but does not implement: the speech transcriber,
// the vision classifier, and the patient record retriever. Each has an
// HTTP client implementation; failures are surfaced as errors for the
// engine to convert into recoverable placeholders.
package tools

import (
	"context"
	"net/http"
	"time"

	vitalisotel "github.com/tehqua/Vitalis/internal/otel"
)

var tracer = vitalisotel.Tracer("github.com/tehqua/Vitalis/internal/tools")

// Timeouts for collaborator calls. The engine applies no policy of its
// own beyond placeholder substitution, so the clients bound their calls.
const (
	TimeoutTranscribe = 120 * time.Second
	TimeoutVision     = 30 * time.Second
	TimeoutRetrieve   = 15 * time.Second
)

// Tool names recorded in a turn's completed-tool audit trail.
const (
	NameTranscribe = "speech_to_text"
	NameVision     = "analyze_skin_image"
	NameRetrieve   = "patient_record_retriever"
)

// Transcriber converts an audio reference to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string) (string, error)
}

// VisionClassifier turns an image reference into a condition label.
type VisionClassifier interface {
	ClassifyImage(ctx context.Context, imageRef string) (*VisionResult, error)
}

// RecordRetriever returns excerpts of a patient's history relevant to a query.
type RecordRetriever interface {
	Retrieve(ctx context.Context, patientID, query string, topK int) (*RetrievalResult, error)
}

// VisionResult is the structured output of the image classifier. Error is
// set by the engine when classification failed; an error-tagged result is
// excluded from reasoning context.
type VisionResult struct {
	Label        string             `json:"label"`
	Confidence   float64            `json:"confidence"`
	Distribution map[string]float64 `json:"distribution,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// RetrievalResult is the structured output of the record retriever. Error
// marks a failed retrieval; the turn continues without record context.
type RetrievalResult struct {
	Context string   `json:"context"`
	Sources []string `json:"sources"`
	Error   string   `json:"error,omitempty"`
}

func newHTTPClient() *http.Client {
	return &http.Client{}
}
