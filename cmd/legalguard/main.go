// Command legalguard is the PII-aware legal question-answering server.
//
// It answers questions over an indexed corpus of legal documents: the query
// and every retrieved passage are scanned for personal data (regex patterns
// plus a local Ollama NER model) and redacted before anything reaches the
// answer model. Build the index first with legalguard-index.
//
// Usage:
//
//	# Local Ollama, default index
//	./legalguard
//
//	# Custom index and port
//	INDEX_PATH=/data/corpus.db API_PORT=9000 ./legalguard
//
// Redaction is on by default; callers opt out per request with
// {"activate_pii_detector": false}.
package main

import (
	"fmt"
	"time"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/api"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/assemble"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/config"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/embedding"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/generate"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/metrics"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/pii"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/pipeline"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/retrieval"
)

func main() {
	cfg := config.Load()
	log := logger.New("MAIN", cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("init", "%v", err)
	}

	printBanner(cfg)

	cache, err := pii.NewDetectionStore(cfg.DetectionCachePath, cfg.DetectionCacheSize, logger.New("CACHE", cfg.LogLevel))
	if err != nil {
		log.Fatalf("init", "detection cache: %v", err)
	}
	defer cache.Close() //nolint:errcheck // process exit

	var backend pii.Backend
	if cfg.UseNERDetection {
		backend = pii.NewOllamaBackend(cfg.OllamaEndpoint, cfg.OllamaAPIKey,
			cfg.NERModelEN, cfg.NERModelFR, cache, logger.New("NER", cfg.LogLevel))
	}
	detector := pii.NewDetector(backend, cfg.NERConfidenceThreshold, logger.New("DETECT", cfg.LogLevel))

	policy, err := pii.NewPolicy(cfg.RedactionStrategy, cfg.MaskChar, cfg.PreserveKinds)
	if err != nil {
		log.Fatalf("init", "redaction policy: %v", err)
	}

	engine, err := embedding.New(cfg.EmbedBackend, cfg.OllamaEndpoint, cfg.EmbedModel, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatalf("init", "embedding engine: %v", err)
	}

	store, err := retrieval.OpenStore(cfg.IndexPath, engine, logger.New("RETRIEVAL", cfg.LogLevel))
	if err != nil {
		log.Fatalf("init", "open index: %v", err)
	}
	defer store.Close() //nolint:errcheck // process exit

	genTimeout := time.Duration(cfg.GenerateTimeoutSecs) * time.Second
	generator := generate.NewOllamaGenerator(cfg.OllamaEndpoint, cfg.OllamaAPIKey,
		cfg.GenerateModel, genTimeout, logger.New("GENERATE", cfg.LogLevel))

	assembler := assemble.New(detector, policy, cfg.MaxContextChars, logger.New("ASSEMBLE", cfg.LogLevel))

	m := metrics.New()
	orchestrator := pipeline.New(detector, policy, store, assembler, generator,
		cfg.RetrieveK, genTimeout, m, logger.New("PIPELINE", cfg.LogLevel))

	server := api.New(cfg, orchestrator, m, logger.New("API", cfg.LogLevel))
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("serve", "%v", err)
	}
}

func printBanner(cfg *config.Config) {
	protection := "regex patterns only"
	if cfg.UseNERDetection {
		protection = fmt.Sprintf("regex + NER (%s / %s)", cfg.NERModelEN, cfg.NERModelFR)
	}

	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║          LegalGuard AI  (Go)                         ║
╚══════════════════════════════════════════════════════╝
  API port        : %d
  Index           : %s
  Retrieve k      : %d
  Context budget  : %d chars
  Generation      : %s (timeout %ds)
  Embeddings      : %s (%s)
  PII detection   : %s
  Redaction       : %s

  Ask a question:
    curl -X POST http://localhost:%d/query \
      -d '{"query":"Quel est le préavis de licenciement ?"}'
`, cfg.APIPort, cfg.IndexPath, cfg.RetrieveK, cfg.MaxContextChars,
		cfg.GenerateModel, cfg.GenerateTimeoutSecs,
		cfg.EmbedBackend, cfg.EmbedModel,
		protection, cfg.RedactionStrategy,
		cfg.APIPort)
}
