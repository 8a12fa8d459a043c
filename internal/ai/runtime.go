package ai

import "context"

// Runtime is implemented by every text-generation backend.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used for runtime selection.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// NormalizeProvider maps user-facing aliases to a registered provider name.
func NormalizeProvider(name string) (string, bool) {
	switch name {
	case "gemini", "Gemini", "GEMINI", "google", "Google":
		return ProviderGemini, true
	case "openrouter", "OpenRouter", "OPENROUTER":
		return ProviderOpenRouter, true
	case "ollama", "Ollama", "local", "LOCAL":
		return ProviderOllama, true
	}
	return "", false
}
