package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Models    ModelsConfig
	Retrieval RetrievalConfig
	WebSearch WebSearchConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	models, err := loadModelsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Session:   session,
		Models:    models,
		Retrieval: loadRetrievalConfig(),
		WebSearch: loadWebSearchConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// Accept ":8000" or "127.0.0.1:8000" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// SessionConfig tunes session memory and eviction.
type SessionConfig struct {
	// TTL is how long an idle session survives before the sweep removes it.
	TTL time.Duration

	// SweepSchedule is the cron expression for the background sweep.
	SweepSchedule string

	// PromptSizeLimit caps the assembled prompt, in runes.
	PromptSizeLimit int

	// CollaboratorTimeout bounds each retrieval/web-search call.
	CollaboratorTimeout time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}

	timeout, err := parseDurationEnv("COLLABORATOR_TIMEOUT", 10*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	sizeLimit := 12000
	if override, err := parseOptionalIntEnv("PROMPT_SIZE_LIMIT"); err != nil {
		return SessionConfig{}, err
	} else if override != nil && *override > 0 {
		sizeLimit = *override
	}

	return SessionConfig{
		TTL:                 ttl,
		SweepSchedule:       getEnvOrDefault("SESSION_SWEEP_SCHEDULE", "0 * * * *"),
		PromptSizeLimit:     sizeLimit,
		CollaboratorTimeout: timeout,
	}, nil
}

// ModelsConfig describes every model backend plus gateway behavior.
type ModelsConfig struct {
	Gemini      GeminiConfig
	HuggingFace HuggingFaceConfig
	Ark         ArkConfig

	// FailureThreshold is how many consecutive failures disable a backend.
	FailureThreshold int

	// InvokeTimeout bounds a single model invocation.
	InvokeTimeout time.Duration

	// FallbackModel names the backend tried once when the requested one
	// fails. Empty disables fallback.
	FallbackModel string
}

// GeminiConfig describes the Gemini backend and embedder.
type GeminiConfig struct {
	APIKey      string
	Model       string
	EmbedModel  string
	Temperature float32
	MaxTokens   int
}

// Enabled reports whether the required credential is present.
func (c GeminiConfig) Enabled() bool {
	return c.APIKey != ""
}

// HuggingFaceConfig describes the Hugging Face Inference API backend.
type HuggingFaceConfig struct {
	Token       string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Enabled reports whether the required credential is present.
func (c HuggingFaceConfig) Enabled() bool {
	return c.Token != ""
}

// ArkConfig describes the Volcengine Ark backend.
type ArkConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Region      string
	Temperature float32
	MaxTokens   int
}

// Enabled reports whether the required credential and model are present.
func (c ArkConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

func loadModelsConfig() (ModelsConfig, error) {
	threshold := 3
	if override, err := parseOptionalIntEnv("BACKEND_FAILURE_THRESHOLD"); err != nil {
		return ModelsConfig{}, err
	} else if override != nil && *override > 0 {
		threshold = *override
	}

	invokeTimeout, err := parseDurationEnv("BACKEND_INVOKE_TIMEOUT", 60*time.Second)
	if err != nil {
		return ModelsConfig{}, err
	}

	temperature, err := parseFloatEnv("MODEL_TEMPERATURE", 0.4)
	if err != nil {
		return ModelsConfig{}, err
	}

	maxTokens := 300
	if override, err := parseOptionalIntEnv("MODEL_MAX_TOKENS"); err != nil {
		return ModelsConfig{}, err
	} else if override != nil && *override > 0 {
		maxTokens = *override
	}

	return ModelsConfig{
		Gemini: GeminiConfig{
			APIKey:      strings.TrimSpace(os.Getenv("GEMINI_TOKEN")),
			Model:       getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			EmbedModel:  getEnvOrDefault("GEMINI_EMBED_MODEL", "text-embedding-004"),
			Temperature: float32(temperature),
			MaxTokens:   maxTokens,
		},
		HuggingFace: HuggingFaceConfig{
			Token:       strings.TrimSpace(os.Getenv("HF_TOKEN")),
			Model:       getEnvOrDefault("HF_MODEL", "HuggingFaceH4/zephyr-7b-beta"),
			Temperature: temperature,
			MaxTokens:   maxTokens,
		},
		Ark: ArkConfig{
			APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
			Temperature: float32(temperature),
			MaxTokens:   maxTokens,
		},
		FailureThreshold: threshold,
		InvokeTimeout:    invokeTimeout,
		FallbackModel:    strings.TrimSpace(os.Getenv("FALLBACK_MODEL")),
	}, nil
}

// RetrievalConfig describes the product vector index.
type RetrievalConfig struct {
	QdrantURL    string
	QdrantAPIKey string
	Collection   string
	TopK         int
}

// Enabled reports whether the index address is configured.
func (c RetrievalConfig) Enabled() bool {
	return c.QdrantURL != ""
}

func loadRetrievalConfig() RetrievalConfig {
	topK := 5
	if override, err := parseOptionalIntEnv("RETRIEVAL_TOP_K"); err == nil && override != nil && *override > 0 {
		topK = *override
	}

	return RetrievalConfig{
		QdrantURL:    strings.TrimSpace(os.Getenv("QDRANT_URL")),
		QdrantAPIKey: strings.TrimSpace(os.Getenv("QDRANT_API_KEY")),
		Collection:   getEnvOrDefault("QDRANT_COLLECTION", "amazon_products"),
		TopK:         topK,
	}
}

// WebSearchConfig describes the live web-search collaborator.
type WebSearchConfig struct {
	SerpAPIKey string
}

// Enabled reports whether the required credential is present.
func (c WebSearchConfig) Enabled() bool {
	return c.SerpAPIKey != ""
}

func loadWebSearchConfig() WebSearchConfig {
	return WebSearchConfig{
		SerpAPIKey: strings.TrimSpace(os.Getenv("SERPAPI_KEY")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
