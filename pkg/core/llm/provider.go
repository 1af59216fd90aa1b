package llm

import (
	"context"
	"os"
)

// Provider is the interface for all LLM providers. The engine treats the
// returned text purely as a candidate SQL envelope; extraction and the
// safety gate happen downstream. The context carries the caller's timeout,
// which is the only cancellation the engine needs.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats.
	AdaptInstructions(rawInstructions string) string
}

// Config selects the active provider, loaded from config/models.yaml.
type Config struct {
	ActiveProvider string `yaml:"active_provider"`
	Model          string `yaml:"model"`
}

// envKeyForProvider names the credential each provider needs.
var envKeyForProvider = map[string]string{
	"gemini":   "GEMINI_API_KEY",
	"deepseek": "DEEPSEEK_API_KEY",
	"qwen":     "DASHSCOPE_API_KEY",
	"openai":   "OPENAI_API_KEY",
}

// ForName returns the provider registered under name, or nil.
func ForName(name string) Provider {
	switch name {
	case "gemini":
		return &GeminiProvider{}
	case "deepseek":
		return &DeepSeekProvider{}
	case "qwen":
		return &QwenProvider{}
	case "openai":
		return &OpenAIProvider{}
	}
	return nil
}

// Available reports whether the named provider has its credential present.
// Absence simply disables the fallback path; nothing ever blocks waiting
// for credentials that do not exist.
func Available(name string) bool {
	key, ok := envKeyForProvider[name]
	if !ok {
		return false
	}
	// Qwen accepts either DashScope variable.
	if name == "qwen" && os.Getenv("QWEN_API_KEY") != "" {
		return true
	}
	return os.Getenv(key) != ""
}
