package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Runtime is process-level configuration sourced from the environment. It is
// separate from the persona package: the persona says who the agent is, the
// runtime says where it runs and which providers it talks to.
type Runtime struct {
	PersonaName string // PERSONA_NAME
	AgentMode   string // AGENT_MODE: normal | test | aggressive
	DataRoot    string // DATA_ROOT, default ./data
	PersonaRoot string // PERSONA_ROOT, default ./personas

	LLMProvider  string // LLM_PROVIDER: gemini | openai | compat
	LLMModel     string // LLM_MODEL
	GeminiAPIKey string // GEMINI_API_KEY
	OpenAIAPIKey string // OPENAI_API_KEY
	LLMBaseURL   string // LLM_BASE_URL for openai-compatible endpoints

	EmbeddingProvider string // EMBEDDING_PROVIDER: genai | ollama
	EmbeddingModel    string // EMBEDDING_MODEL
	OllamaEndpoint    string // OLLAMA_ENDPOINT

	LogFile string // LOG_FILE, optional
	Verbose bool   // VERBOSE=1
	DryRun  bool   // DRY_RUN=1: fake platform adapter, no network actions
}

// LoadRuntime reads the runtime config from the environment and validates the
// pieces that are fatal at startup.
func LoadRuntime() (*Runtime, error) {
	r := &Runtime{
		PersonaName:       os.Getenv("PERSONA_NAME"),
		AgentMode:         strings.ToLower(envOr("AGENT_MODE", "normal")),
		DataRoot:          envOr("DATA_ROOT", "data"),
		PersonaRoot:       envOr("PERSONA_ROOT", "personas"),
		LLMProvider:       strings.ToLower(envOr("LLM_PROVIDER", "gemini")),
		LLMModel:          os.Getenv("LLM_MODEL"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		LLMBaseURL:        os.Getenv("LLM_BASE_URL"),
		EmbeddingProvider: strings.ToLower(envOr("EMBEDDING_PROVIDER", "ollama")),
		EmbeddingModel:    os.Getenv("EMBEDDING_MODEL"),
		OllamaEndpoint:    envOr("OLLAMA_ENDPOINT", "http://localhost:11434"),
		LogFile:           os.Getenv("LOG_FILE"),
		Verbose:           os.Getenv("VERBOSE") == "1",
		DryRun:            os.Getenv("DRY_RUN") == "1",
	}

	if r.PersonaName == "" {
		return nil, fmt.Errorf("PERSONA_NAME is required")
	}
	switch r.AgentMode {
	case "normal", "test", "aggressive":
	default:
		return nil, fmt.Errorf("AGENT_MODE must be normal, test, or aggressive; got %q", r.AgentMode)
	}
	return r, nil
}

// PersonaDir is the persona package directory for this run.
func (r *Runtime) PersonaDir() string {
	return filepath.Join(r.PersonaRoot, r.PersonaName)
}

// DataDir is the per-persona persistent state directory.
func (r *Runtime) DataDir() string {
	return filepath.Join(r.DataRoot, "personas", r.PersonaName, "db")
}

// FallbackLogPath is the append-only posted-content log.
func (r *Runtime) FallbackLogPath() string {
	return filepath.Join(r.DataRoot, "personas", r.PersonaName, "posted.log")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
