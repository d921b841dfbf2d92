// Package workflow implements the turn state machine at the heart of the
// assistant. One Process call owns one turn: it classifies the input,
// sequences modality-specific preprocessing, runs a bounded reasoning and
// tool-call loop, and gates the response through the safety checks before
// release.
//
// The engine is stateless between calls; everything mutable lives in the
// Turn, which is discarded when Process returns. Collaborator failures
// never cross the engine boundary: each state converts them into a
// placeholder and the turn continues.
package workflow

import (
	"time"

	"github.com/tehqua/Vitalis/internal/classify"
	"github.com/tehqua/Vitalis/internal/tools"
)

// State is the engine's transition selector. Every stage sets the next
// state before returning; the Process loop dispatches until StateEnd.
type State string

const (
	StateStart            State = "start"
	StatePreprocessSpeech State = "process_speech"
	StatePreprocessImage  State = "process_image"
	StateReasoning        State = "reasoning"
	StateToolCall         State = "call_tool"
	StateSafetyGate       State = "safety_check"
	StateErrorTerminal    State = "error"
	StateEnd              State = "end"
)

// Action names the next required tool call when the reasoning state
// defers to StateToolCall.
type Action string

// ActionRetrieveRecords requests patient record retrieval.
const ActionRetrieveRecords Action = "retrieve_records"

// maxTransitions caps the dispatch loop. The retrieval path needs at most
// eight states (start, speech, image, reasoning, tool call, reasoning,
// safety gate, end); the cap only guards against a future routing bug.
const maxTransitions = 16

// Turn is the unit of work for one user message. It is owned exclusively
// by the engine for the duration of a single Process call; its durable
// residue is the conversation memory append and the returned TurnResult.
type Turn struct {
	PatientID string
	SessionID string
	CreatedAt time.Time

	// Modality is computed once at entry and never recomputed, even when
	// transcription later adds text.
	Modality classify.Modality

	RawText  string
	AudioRef string
	ImageRef string

	TranscribedText string
	Vision          *tools.VisionResult
	Retrieval       *tools.RetrievalResult

	// CompletedTools records every external call attempted, success or
	// failure. Append-only within a turn.
	CompletedTools []string

	PendingAction Action
	Routing       State

	Response      string
	EmergencyFlag bool
	SafetyPassed  bool
}

// recordTool appends a tool name to the audit trail.
func (t *Turn) recordTool(name string) {
	t.CompletedTools = append(t.CompletedTools, name)
}

// toolCompleted reports whether a tool call was already attempted this turn.
func (t *Turn) toolCompleted(name string) bool {
	for _, n := range t.CompletedTools {
		if n == name {
			return true
		}
	}
	return false
}

// TurnRequest is the caller's input for one turn.
type TurnRequest struct {
	PatientID string `json:"patient_id"`
	Text      string `json:"text,omitempty"`
	AudioRef  string `json:"audio_ref,omitempty"`
	ImageRef  string `json:"image_ref,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// TurnResult is the caller-facing outcome of one turn.
type TurnResult struct {
	Response  string    `json:"response"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata"`
}

// Metadata summarizes how the turn was processed.
type Metadata struct {
	Modality          classify.Modality   `json:"modality"`
	ToolsUsed         []string            `json:"tools_used"`
	EmergencyDetected bool                `json:"emergency_detected"`
	VisionResult      *tools.VisionResult `json:"vision_result,omitempty"`
	RetrievalOccurred bool                `json:"retrieval_occurred"`
}
