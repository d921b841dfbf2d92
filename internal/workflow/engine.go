package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tehqua/Vitalis/internal/classify"
	"github.com/tehqua/Vitalis/internal/guardrails"
	"github.com/tehqua/Vitalis/internal/llm"
	"github.com/tehqua/Vitalis/internal/memory"
	vitalisotel "github.com/tehqua/Vitalis/internal/otel"
	"github.com/tehqua/Vitalis/internal/requestctx"
	"github.com/tehqua/Vitalis/internal/tools"
)

var tracer = vitalisotel.Tracer("github.com/tehqua/Vitalis/internal/workflow")

// Conversations is the slice of conversation memory the engine needs.
// *memory.Store satisfies it.
type Conversations interface {
	Messages(ctx context.Context, sessionID string) ([]memory.Message, error)
	Append(ctx context.Context, sessionID, patientID string, msgs ...memory.Message) error
}

// EngineConfig wires an Engine. Validator, Inputs and Provider are
// required; collaborators and Conversations may be nil, in which case the
// corresponding capability degrades the way a failed call would.
type EngineConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int

	// HistoryWindow bounds prior messages included in the model context.
	HistoryWindow int
	// RetrievalTopK is passed through to the record retriever.
	RetrievalTopK int
	// RetrievalPredicate decides whether the effective input warrants a
	// record lookup. Nil selects the built-in keyword predicate.
	RetrievalPredicate func(string) bool

	Validator *guardrails.Validator
	Inputs    *classify.Validator

	Transcriber tools.Transcriber
	Vision      tools.VisionClassifier
	Retriever   tools.RecordRetriever
	Provider    llm.Provider

	Conversations Conversations
}

// Engine drives one turn at a time through the state machine. It holds no
// mutable state of its own, so a single Engine serves concurrent turns.
type Engine struct {
	cfg       EngineConfig
	retrieval func(string) bool
}

// NewEngine validates the wiring and returns a ready engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Validator == nil {
		return nil, fmt.Errorf("workflow: validator is required")
	}
	if cfg.Inputs == nil {
		return nil, fmt.Errorf("workflow: input validator is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("workflow: LLM provider is required")
	}
	pred := cfg.RetrievalPredicate
	if pred == nil {
		pred = defaultRetrievalPredicate
	}
	return &Engine{cfg: cfg, retrieval: pred}, nil
}

// Process runs one turn to completion. It always returns a result with a
// user-facing response; the error return is reserved for context
// cancellation and memory persistence failures surfaced after the
// response is already final.
func (e *Engine) Process(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = requestctx.SessionID(ctx)
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	patientID := req.PatientID
	if patientID == "" {
		patientID = requestctx.PatientID(ctx)
	}

	ctx, span := tracer.Start(ctx, "workflow.process",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("patient.id", patientID),
		))
	defer span.End()

	turn := &Turn{
		PatientID: patientID,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
		RawText:   req.Text,
		AudioRef:  req.AudioRef,
		ImageRef:  req.ImageRef,
		Routing:   StateStart,
	}

	for i := 0; turn.Routing != StateEnd; i++ {
		if i >= maxTransitions {
			log.Error().Str("session_id", sessionID).Str("state", string(turn.Routing)).
				Msg("transition_limit_exceeded")
			turn.Response = errorTerminalResponse
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prev := turn.Routing
		switch turn.Routing {
		case StateStart:
			e.start(ctx, turn)
		case StatePreprocessSpeech:
			e.preprocessSpeech(ctx, turn)
		case StatePreprocessImage:
			e.preprocessImage(ctx, turn)
		case StateReasoning:
			e.reason(ctx, turn)
		case StateToolCall:
			e.callTool(ctx, turn)
		case StateSafetyGate:
			e.safetyGate(ctx, turn)
		case StateErrorTerminal:
			e.errorTerminal(turn)
		default:
			log.Error().Str("state", string(turn.Routing)).Msg("unknown_state")
			turn.Routing = StateErrorTerminal
		}
		log.Debug().Str("session_id", sessionID).
			Str("from", string(prev)).Str("to", string(turn.Routing)).
			Func(vitalisotel.LogTraceFields(ctx)).
			Msg("state_transition")
	}

	result := &TurnResult{
		Response:  turn.Response,
		SessionID: sessionID,
		Timestamp: turn.CreatedAt,
		Metadata: Metadata{
			Modality:          turn.Modality,
			ToolsUsed:         turn.CompletedTools,
			EmergencyDetected: turn.EmergencyFlag,
			VisionResult:      turn.Vision,
			RetrievalOccurred: turn.Retrieval != nil,
		},
	}

	if err := e.persist(ctx, turn); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("memory_append_failed")
		return result, fmt.Errorf("persisting conversation: %w", err)
	}
	return result, nil
}

// start computes the modality, validates the inputs, and routes to the
// first preprocessing state. Validation failures are the only path into
// the error terminal.
func (e *Engine) start(_ context.Context, turn *Turn) {
	turn.Modality = classify.Classify(turn.RawText, turn.AudioRef, turn.ImageRef)

	if err := e.cfg.Inputs.ValidatePatientID(turn.PatientID); err != nil {
		log.Error().Err(err).Msg("invalid_patient_id")
		turn.Response = "Error: " + err.Error()
		turn.Routing = StateErrorTerminal
		return
	}
	if turn.ImageRef != "" {
		if err := e.cfg.Inputs.ValidateImageRef(turn.ImageRef); err != nil {
			log.Error().Err(err).Str("image_ref", turn.ImageRef).Msg("invalid_image_ref")
			turn.Response = "Error: " + err.Error()
			turn.Routing = StateErrorTerminal
			return
		}
	}
	if turn.AudioRef != "" {
		if err := e.cfg.Inputs.ValidateAudioRef(turn.AudioRef); err != nil {
			log.Error().Err(err).Str("audio_ref", turn.AudioRef).Msg("invalid_audio_ref")
			turn.Response = "Error: " + err.Error()
			turn.Routing = StateErrorTerminal
			return
		}
	}

	switch turn.Modality {
	case classify.ModalitySpeech:
		turn.Routing = StatePreprocessSpeech
	case classify.ModalityImage:
		turn.Routing = StatePreprocessImage
	case classify.ModalityMultimodal:
		// Audio precedes image when both are present.
		if turn.AudioRef != "" {
			turn.Routing = StatePreprocessSpeech
		} else {
			turn.Routing = StatePreprocessImage
		}
	default:
		turn.Routing = StateReasoning
	}
}

// preprocessSpeech transcribes the audio reference. Failure leaves a
// placeholder marker in the transcript and never stops the turn.
func (e *Engine) preprocessSpeech(ctx context.Context, turn *Turn) {
	ctx, span := tracer.Start(ctx, "workflow.preprocess_speech")
	defer span.End()

	if turn.AudioRef == "" || e.cfg.Transcriber == nil {
		log.Warn().Msg("speech_preprocessing_skipped")
		turn.Routing = StateReasoning
		return
	}

	turn.recordTool(tools.NameTranscribe)
	text, err := e.cfg.Transcriber.Transcribe(ctx, turn.AudioRef)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("audio_ref", turn.AudioRef).Msg("transcription_failed")
		turn.TranscribedText = transcriptionErrorMarker
	} else {
		turn.TranscribedText = text
		log.Info().Int("chars", len(text)).Msg("transcription_completed")
	}

	if turn.ImageRef != "" {
		turn.Routing = StatePreprocessImage
	} else {
		turn.Routing = StateReasoning
	}
}

// preprocessImage classifies the image reference. Failure stores an
// error-tagged result that reasoning will ignore.
func (e *Engine) preprocessImage(ctx context.Context, turn *Turn) {
	ctx, span := tracer.Start(ctx, "workflow.preprocess_image")
	defer span.End()

	if turn.ImageRef == "" || e.cfg.Vision == nil {
		log.Warn().Msg("image_preprocessing_skipped")
		turn.Routing = StateReasoning
		return
	}

	turn.recordTool(tools.NameVision)
	res, err := e.cfg.Vision.ClassifyImage(ctx, turn.ImageRef)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("image_ref", turn.ImageRef).Msg("image_classification_failed")
		turn.Vision = &tools.VisionResult{Error: err.Error()}
	} else {
		turn.Vision = res
		log.Info().Str("label", res.Label).Float64("confidence", res.Confidence).
			Msg("image_classification_completed")
	}

	turn.Routing = StateReasoning
}

// effectiveText merges typed text with the labeled transcript.
func effectiveText(turn *Turn) string {
	parts := make([]string, 0, 2)
	if turn.RawText != "" {
		parts = append(parts, turn.RawText)
	}
	if turn.TranscribedText != "" {
		parts = append(parts, transcriptLabel+turn.TranscribedText)
	}
	return strings.Join(parts, " ")
}

// reason is the central state: emergency short-circuit, retrieval
// decision, context assembly, and the model call.
func (e *Engine) reason(ctx context.Context, turn *Turn) {
	ctx, span := tracer.Start(ctx, "workflow.reasoning")
	defer span.End()

	input := effectiveText(turn)
	if input == "" {
		input = defaultGreeting
	}
	input = e.cfg.Validator.Sanitize(input)

	if emergency, matched := e.cfg.Validator.DetectEmergency(input); emergency {
		log.Warn().Strs("indicators", matched).Msg("emergency_detected")
		turn.EmergencyFlag = true
		turn.Response = e.cfg.Validator.EmergencyResponse(matched)
		turn.Routing = StateSafetyGate
		return
	}

	if turn.Retrieval == nil && !turn.toolCompleted(tools.NameRetrieve) &&
		e.cfg.Retriever != nil && e.retrieval(input) {
		log.Info().Msg("record_retrieval_needed")
		turn.PendingAction = ActionRetrieveRecords
		turn.Routing = StateToolCall
		return
	}

	messages := e.buildMessages(ctx, turn, input)

	span.SetAttributes(vitalisotel.LLMRequestAttributes(e.cfg.Provider.Name(), e.cfg.Model, e.cfg.Temperature, e.cfg.MaxTokens)...)
	resp, err := e.cfg.Provider.Generate(ctx, &llm.Request{
		Model:       e.cfg.Model,
		Messages:    messages,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("model", e.cfg.Model).Msg("llm_call_failed")
		turn.Response = modelFailureResponse
		turn.Routing = StateSafetyGate
		return
	}

	span.SetAttributes(vitalisotel.LLMUsageAttributes(resp.InputTokens, resp.OutputTokens)...)
	log.Info().Int("chars", len(resp.Content)).Msg("llm_response_generated")
	turn.Response = resp.Content
	turn.Routing = StateSafetyGate
}

// buildMessages assembles the model context: master prompt with patient
// authentication, tool-derived context blocks, a window of history, and
// the effective input.
func (e *Engine) buildMessages(ctx context.Context, turn *Turn, input string) []llm.Message {
	messages := []llm.Message{{
		Role:    "system",
		Content: masterSystemPrompt + "\n\n" + patientContext(turn.PatientID),
	}}

	var blocks []string
	if turn.Vision != nil && turn.Vision.Error == "" {
		blocks = append(blocks, formatVisionContext(turn.Vision))
	}
	if turn.Retrieval != nil {
		blocks = append(blocks, formatRetrievalContext(turn.Retrieval))
	}
	if len(blocks) > 0 {
		messages = append(messages, llm.Message{Role: "system", Content: strings.Join(blocks, "\n\n")})
	}

	if e.cfg.Conversations != nil {
		history, err := e.cfg.Conversations.Messages(ctx, turn.SessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", turn.SessionID).Msg("history_read_failed")
		} else {
			window := e.cfg.HistoryWindow
			if window > 0 && len(history) > window {
				history = history[len(history)-window:]
			}
			for _, msg := range history {
				messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
			}
		}
	}

	return append(messages, llm.Message{Role: "user", Content: input})
}

// callTool executes the pending action and returns to reasoning. An
// unrecognized action is logged and cleared without side effects.
func (e *Engine) callTool(ctx context.Context, turn *Turn) {
	ctx, span := tracer.Start(ctx, "workflow.call_tool",
		trace.WithAttributes(attribute.String("action", string(turn.PendingAction))))
	defer span.End()

	action := turn.PendingAction
	turn.PendingAction = ""

	switch action {
	case ActionRetrieveRecords:
		turn.recordTool(tools.NameRetrieve)
		query := effectiveText(turn)
		res, err := e.cfg.Retriever.Retrieve(ctx, turn.PatientID, query, e.cfg.RetrievalTopK)
		if err != nil {
			span.RecordError(err)
			log.Error().Err(err).Msg("record_retrieval_failed")
			turn.Retrieval = &tools.RetrievalResult{Error: err.Error()}
		} else {
			turn.Retrieval = res
			log.Info().Int("sources", len(res.Sources)).Msg("records_retrieved")
		}
	default:
		log.Warn().Str("action", string(action)).Msg("unknown_tool_action")
	}

	turn.Routing = StateReasoning
}

// safetyGate validates the drafted response and substitutes a refusal on
// violation. The privacy check runs independently and takes precedence.
func (e *Engine) safetyGate(ctx context.Context, turn *Turn) {
	_, span := tracer.Start(ctx, "workflow.safety_check")
	defer span.End()

	response := turn.Response

	if ok, violations := e.cfg.Validator.ValidateResponse(response); !ok {
		log.Error().Strs("violations", violations).Msg("response_validation_failed")
		response = rephraseResponse
	}
	if !e.cfg.Validator.ValidatePrivacy(response, turn.PatientID) {
		log.Error().Msg("privacy_violation_detected")
		response = privacyResponse
	}

	turn.Response = cleanResponse(response)
	turn.SafetyPassed = true
	turn.Routing = StateEnd
}

// errorTerminal replaces whatever was drafted with the generic failure
// response and ends the turn with no collaborator calls.
func (e *Engine) errorTerminal(turn *Turn) {
	turn.Response = errorTerminalResponse
	turn.Routing = StateEnd
}

// persist appends the user input and the final response to conversation
// memory. Error-terminal turns are not recorded.
func (e *Engine) persist(ctx context.Context, turn *Turn) error {
	if e.cfg.Conversations == nil || !turn.SafetyPassed {
		return nil
	}

	userContent := turn.RawText
	if userContent == "" {
		userContent = turn.TranscribedText
	}

	msgs := make([]memory.Message, 0, 2)
	if userContent != "" {
		msgs = append(msgs, memory.NewMessage(memory.RoleUser, userContent))
	}
	msgs = append(msgs, memory.NewMessage(memory.RoleAssistant, turn.Response))

	return e.cfg.Conversations.Append(ctx, turn.SessionID, turn.PatientID, msgs...)
}
