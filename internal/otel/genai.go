package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

// GenAI semantic conventions, based on the OpenTelemetry GenAI SIG.
const (
	GenAISystem       = attribute.Key("gen_ai.system") // "ollama", "openai"
	GenAIRequestModel = attribute.Key("gen_ai.request.model")

	GenAIRequestTemperature = attribute.Key("gen_ai.request.temperature")
	GenAIRequestMaxTokens   = attribute.Key("gen_ai.request.max_tokens")

	GenAIResponseFinishReason = attribute.Key("gen_ai.response.finish_reason")
)

// FlowPaste request attributes.
const (
	RequestID      = attribute.Key("flowpaste.request_id")
	RequestOutcome = attribute.Key("flowpaste.request.outcome")
	PrivacyMasked  = attribute.Key("flowpaste.privacy.masked")
	PrivacyCount   = attribute.Key("flowpaste.privacy.match_count")
)

// LLMRequestAttributes creates standard attributes for LLM requests
func LLMRequestAttributes(system, model string, temperature float64, maxTokens int) []attribute.KeyValue {
	return []attribute.KeyValue{
		GenAISystem.String(system),
		GenAIRequestModel.String(model),
		GenAIRequestTemperature.Float64(temperature),
		GenAIRequestMaxTokens.Int(maxTokens),
	}
}
