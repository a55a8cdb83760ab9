// Command legalguard-index builds the passage index the server retrieves
// from.
//
// It walks the given files or directories, splits each document into
// overlapping chunks, embeds every chunk and stores text plus vector in the
// SQLite index. Plain-text formats are supported (.txt, .md); convert PDFs
// to text before indexing. Re-indexing a file replaces its previous chunks.
//
// Usage:
//
//	./legalguard-index ./corpus/
//	INDEX_PATH=/data/corpus.db ./legalguard-index code-travail.txt notes.md
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/config"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/embedding"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/retrieval"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file-or-dir> [...]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.New("INDEX", cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("init", "%v", err)
	}

	engine, err := embedding.New(cfg.EmbedBackend, cfg.OllamaEndpoint, cfg.EmbedModel, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatalf("init", "embedding engine: %v", err)
	}

	store, err := retrieval.OpenStore(cfg.IndexPath, engine, log)
	if err != nil {
		log.Fatalf("init", "open index: %v", err)
	}
	defer store.Close() //nolint:errcheck // process exit

	files, err := collectFiles(os.Args[1:])
	if err != nil {
		log.Fatalf("scan", "%v", err)
	}
	if len(files) == 0 {
		log.Fatal("scan", "no indexable files found (.txt, .md)")
	}

	ctx := context.Background()
	start := time.Now()
	var chunks int
	for _, path := range files {
		n, err := indexFile(ctx, store, path)
		if err != nil {
			log.Fatalf("index", "%s: %v", path, err)
		}
		log.Infof("index", "%s: %d chunks", path, n)
		chunks += n
	}

	total, err := store.Count(ctx)
	if err != nil {
		log.Fatalf("index", "count: %v", err)
	}
	log.Infof("done", "indexed %d chunks from %d files in %s (%d total in %s)",
		chunks, len(files), time.Since(start).Round(time.Second), total, cfg.IndexPath)
}

// collectFiles expands the arguments into a list of indexable files.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && indexable(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func indexable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// indexFile chunks one document and stores it under its base name.
func indexFile(ctx context.Context, store *retrieval.Store, path string) (int, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's command line
	if err != nil {
		return 0, err
	}

	chunks := retrieval.SplitText(string(data), retrieval.DefaultChunkSize, retrieval.DefaultChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	sourceDoc := filepath.Base(path)
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = fmt.Sprintf("%s#%d", sourceDoc, i)
	}
	if err := store.AddBatch(ctx, sourceDoc, ids, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
