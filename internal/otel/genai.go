package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

// GenAI semantic convention attribute keys used on LLM spans,
// per the OpenTelemetry GenAI SIG conventions.
const (
	GenAISystem       = attribute.Key("gen_ai.system")        // e.g. "ollama", "openai"
	GenAIRequestModel = attribute.Key("gen_ai.request.model") // e.g. "medgemma-4b-it"

	GenAIRequestTemperature = attribute.Key("gen_ai.request.temperature")
	GenAIRequestMaxTokens   = attribute.Key("gen_ai.request.max_tokens")

	GenAIUsageInputTokens  = attribute.Key("gen_ai.usage.input_tokens")
	GenAIUsageOutputTokens = attribute.Key("gen_ai.usage.output_tokens")

	GenAIResponseFinishReason = attribute.Key("gen_ai.response.finish_reason")
)

// LLMRequestAttributes creates the standard attribute set for an LLM request span.
func LLMRequestAttributes(system, model string, temperature float64, maxTokens int) []attribute.KeyValue {
	return []attribute.KeyValue{
		GenAISystem.String(system),
		GenAIRequestModel.String(model),
		GenAIRequestTemperature.Float64(temperature),
		GenAIRequestMaxTokens.Int(maxTokens),
	}
}

// LLMUsageAttributes creates attributes for token usage on a completed call.
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	return []attribute.KeyValue{
		GenAIUsageInputTokens.Int(inputTokens),
		GenAIUsageOutputTokens.Int(outputTokens),
	}
}
