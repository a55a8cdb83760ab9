// Package config loads and holds all LegalGuard configuration.
// Settings are read from defaults, then legalguard-config.json, then a .env
// file (if present), then environment variables. Later sources win.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the full pipeline and server configuration.
type Config struct {
	BindAddress string `json:"bindAddress"`
	APIPort     int    `json:"apiPort"`
	APIToken    string `json:"apiToken"` // bearer token for the API; empty = no auth
	LogLevel    string `json:"logLevel"`

	// Ollama endpoints (generation, embeddings, NER).
	OllamaEndpoint string `json:"ollamaEndpoint"`
	OllamaAPIKey   string `json:"ollamaApiKey"` // bearer token for hosted Ollama; empty for local

	// Answer generation.
	GenerateModel       string `json:"generateModel"`
	GenerateTimeoutSecs int    `json:"generateTimeoutSecs"`

	// Embeddings (retrieval).
	EmbedBackend string `json:"embedBackend"` // "ollama" or "gemini"
	EmbedModel   string `json:"embedModel"`
	GeminiAPIKey string `json:"geminiApiKey"`

	// PII detection.
	UseNERDetection        bool    `json:"useNerDetection"`
	NERModelEN             string  `json:"nerModelEn"`
	NERModelFR             string  `json:"nerModelFr"`
	NERConfidenceThreshold float64 `json:"nerConfidenceThreshold"`
	DetectionCachePath     string  `json:"detectionCachePath"` // empty = in-memory only
	DetectionCacheSize     int     `json:"detectionCacheSize"`

	// Retrieval and context assembly.
	IndexPath       string `json:"indexPath"`
	RetrieveK       int    `json:"retrieveK"`
	MaxContextChars int    `json:"maxContextChars"`

	// Redaction policy.
	RedactionStrategy string   `json:"redactionStrategy"` // "redact" or "mask"
	MaskChar          string   `json:"maskChar"`
	PreserveKinds     []string `json:"preserveKinds"`
}

// Load returns config with defaults overridden by legalguard-config.json,
// .env, and environment variables, in that order.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "legalguard-config.json")
	// .env is optional; real env vars below still take precedence because
	// godotenv never overwrites variables already set in the environment.
	if err := godotenv.Load(); err == nil {
		log.Printf("[CONFIG] Loaded .env")
	}
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		BindAddress: "127.0.0.1",
		APIPort:     8000,
		LogLevel:    "info",

		OllamaEndpoint: "http://localhost:11434",

		GenerateModel:       "qwen2.5:3b",
		GenerateTimeoutSecs: 30,

		EmbedBackend: "ollama",
		EmbedModel:   "embeddinggemma",

		UseNERDetection:        true,
		NERModelEN:             "qwen2.5:3b",
		NERModelFR:             "qwen2.5:3b",
		NERConfidenceThreshold: 0.7,
		DetectionCacheSize:     10_000,

		IndexPath:       "legal-index.db",
		RetrieveK:       4,
		MaxContextChars: 6000,

		RedactionStrategy: "redact",
		MaskChar:          "*",
	}
}

// Validate rejects configurations the pipeline cannot run with.
// Called once at startup; the process should not start on error.
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("config: apiPort %d out of range", c.APIPort)
	}
	if c.NERConfidenceThreshold < 0 || c.NERConfidenceThreshold > 1 {
		return fmt.Errorf("config: nerConfidenceThreshold %v must be in [0,1]", c.NERConfidenceThreshold)
	}
	if c.RetrieveK < 1 {
		return fmt.Errorf("config: retrieveK must be >= 1, got %d", c.RetrieveK)
	}
	if c.MaxContextChars < 1 {
		return fmt.Errorf("config: maxContextChars must be >= 1, got %d", c.MaxContextChars)
	}
	switch c.EmbedBackend {
	case "ollama":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("config: embedBackend gemini requires geminiApiKey")
		}
	default:
		return fmt.Errorf("config: unknown embedBackend %q", c.EmbedBackend)
	}
	return nil
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr("BIND_ADDRESS", &cfg.BindAddress)
	setInt("API_PORT", &cfg.APIPort)
	setStr("API_TOKEN", &cfg.APIToken)
	setStr("LOG_LEVEL", &cfg.LogLevel)

	setStr("OLLAMA_ENDPOINT", &cfg.OllamaEndpoint)
	setStr("OLLAMA_API_KEY", &cfg.OllamaAPIKey)
	setStr("GENERATE_MODEL", &cfg.GenerateModel)
	setInt("GENERATE_TIMEOUT_SECS", &cfg.GenerateTimeoutSecs)

	setStr("EMBED_BACKEND", &cfg.EmbedBackend)
	setStr("EMBED_MODEL", &cfg.EmbedModel)
	setStr("GEMINI_API_KEY", &cfg.GeminiAPIKey)

	if v := os.Getenv("USE_NER_DETECTION"); v == "false" {
		cfg.UseNERDetection = false
	}
	setStr("NER_MODEL_EN", &cfg.NERModelEN)
	setStr("NER_MODEL_FR", &cfg.NERModelFR)
	if v := os.Getenv("NER_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.NERConfidenceThreshold = f
		}
	}
	setStr("DETECTION_CACHE_PATH", &cfg.DetectionCachePath)
	setInt("DETECTION_CACHE_SIZE", &cfg.DetectionCacheSize)

	setStr("INDEX_PATH", &cfg.IndexPath)
	setInt("RETRIEVE_K", &cfg.RetrieveK)
	setInt("MAX_CONTEXT_CHARS", &cfg.MaxContextChars)

	setStr("REDACTION_STRATEGY", &cfg.RedactionStrategy)
	setStr("MASK_CHAR", &cfg.MaskChar)
	if v := os.Getenv("PRESERVE_KINDS"); v != "" {
		kinds := strings.Split(v, ",")
		cfg.PreserveKinds = cfg.PreserveKinds[:0]
		for _, k := range kinds {
			if k = strings.TrimSpace(k); k != "" {
				cfg.PreserveKinds = append(cfg.PreserveKinds, k)
			}
		}
	}
}
