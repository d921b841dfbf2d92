// Package testutil provides scripted collaborator doubles shared by the
// workflow, server, and cmd tests.
package testutil

import (
	"context"
	"sync"

	"github.com/tehqua/Vitalis/internal/llm"
	"github.com/tehqua/Vitalis/internal/memory"
	"github.com/tehqua/Vitalis/internal/tools"
)

// ValidPatientID is a well-formed synthetic patient identifier.
const ValidPatientID = "Adam631_Cronin387_aff8f143-2375-416f-901d-b0e4c73e3e58"

// OtherPatientID belongs to a different synthetic patient.
const OtherPatientID = "Maria402_Keebler762_bb8e4421-91c0-4a5e-8f33-1a2b3c4d5e6f"

// ScriptedTranscriber returns a fixed transcript or error and counts calls.
type ScriptedTranscriber struct {
	mu    sync.Mutex
	Text  string
	Err   error
	Calls int
	Refs  []string
}

func (s *ScriptedTranscriber) Transcribe(_ context.Context, audioRef string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	s.Refs = append(s.Refs, audioRef)
	if s.Err != nil {
		return "", s.Err
	}
	return s.Text, nil
}

// ScriptedVision returns a fixed classification or error and counts calls.
type ScriptedVision struct {
	mu     sync.Mutex
	Result *tools.VisionResult
	Err    error
	Calls  int
}

func (s *ScriptedVision) ClassifyImage(_ context.Context, _ string) (*tools.VisionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	res := *s.Result
	return &res, nil
}

// ScriptedRetriever returns fixed record excerpts or an error and records
// the last query it saw.
type ScriptedRetriever struct {
	mu            sync.Mutex
	Result        *tools.RetrievalResult
	Err           error
	Calls         int
	LastPatientID string
	LastQuery     string
	LastTopK      int
}

func (s *ScriptedRetriever) Retrieve(_ context.Context, patientID, query string, topK int) (*tools.RetrievalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	s.LastPatientID = patientID
	s.LastQuery = query
	s.LastTopK = topK
	if s.Err != nil {
		return nil, s.Err
	}
	res := *s.Result
	return &res, nil
}

// ScriptedProvider replies with a fixed completion and keeps the last
// request for assertions on the assembled context.
type ScriptedProvider struct {
	mu          sync.Mutex
	Reply       string
	Err         error
	Calls       int
	LastRequest *llm.Request
}

func (s *ScriptedProvider) Name() string { return "scripted" }

func (s *ScriptedProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	s.LastRequest = req
	if s.Err != nil {
		return nil, s.Err
	}
	return &llm.Response{Content: s.Reply, FinishReason: "stop", Model: req.Model}, nil
}

// MemConversations is an in-memory conversation store keyed by session.
type MemConversations struct {
	mu       sync.Mutex
	sessions map[string][]memory.Message
}

func NewMemConversations() *MemConversations {
	return &MemConversations{sessions: make(map[string][]memory.Message)}
}

func (m *MemConversations) Messages(_ context.Context, sessionID string) ([]memory.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.sessions[sessionID]
	out := make([]memory.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemConversations) Append(_ context.Context, sessionID, _ string, msgs ...memory.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], msgs...)
	return nil
}
