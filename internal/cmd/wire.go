package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/tehqua/Vitalis/internal/classify"
	"github.com/tehqua/Vitalis/internal/config"
	"github.com/tehqua/Vitalis/internal/guardrails"
	"github.com/tehqua/Vitalis/internal/llm"
	"github.com/tehqua/Vitalis/internal/memory"
	"github.com/tehqua/Vitalis/internal/tools"
	"github.com/tehqua/Vitalis/internal/workflow"
)

// buildValidator loads operator guardrail overrides on top of the
// embedded default tables.
func buildValidator(cfg *config.Config) (*guardrails.Validator, error) {
	var opts []guardrails.Option
	if cfg.GuardrailTables != "" {
		override, err := guardrails.LoadTables(cfg.GuardrailTables)
		if err != nil {
			return nil, fmt.Errorf("loading guardrail tables: %w", err)
		}
		if override != nil {
			log.Info().Str("path", cfg.GuardrailTables).Msg("guardrail_tables_overridden")
			opts = append(opts, guardrails.WithOverrideTables(override))
		}
	}
	return guardrails.NewValidator(opts...)
}

// buildEngine wires the turn engine from operator config. store may be
// nil, in which case turns run without conversation memory.
func buildEngine(cfg *config.Config, store *memory.Store) (*workflow.Engine, error) {
	validator, err := buildValidator(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Name:          cfg.Provider,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIAPIKey:  os.Getenv("VITALIS_OPENAI_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("configuring LLM provider: %w", err)
	}

	engineCfg := workflow.EngineConfig{
		Model:         cfg.Model,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		HistoryWindow: cfg.HistoryWindow,
		RetrievalTopK: cfg.RetrievalTopK,
		Validator:     validator,
		Inputs:        classify.NewValidator(cfg.MaxImageMB, cfg.MaxAudioMB),
		Provider:      provider,
	}

	if cfg.TranscriberURL != "" {
		engineCfg.Transcriber = tools.NewHTTPTranscriber(cfg.TranscriberURL)
	} else {
		log.Warn().Msg("transcriber_url not set, audio input disabled")
	}
	if cfg.VisionURL != "" {
		engineCfg.Vision = tools.NewHTTPVisionClassifier(cfg.VisionURL)
	} else {
		log.Warn().Msg("vision_url not set, image input disabled")
	}
	if cfg.RetrieverURL != "" {
		engineCfg.Retriever = tools.NewHTTPRecordRetriever(cfg.RetrieverURL)
	} else {
		log.Warn().Msg("retriever_url not set, record retrieval disabled")
	}
	if store != nil {
		engineCfg.Conversations = store
	}

	return workflow.NewEngine(engineCfg)
}
