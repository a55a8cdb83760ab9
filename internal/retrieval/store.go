package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/KawtarRIFI/LegalGuard-AI/internal/embedding"
	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS passages (
	id         TEXT PRIMARY KEY,
	source_doc TEXT NOT NULL,
	text       TEXT NOT NULL,
	embedding  BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_passages_source ON passages(source_doc);
CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// metaEngineKey records which embedding engine built the index. Vectors from
// different engines are not comparable, so a mismatch is refused at open.
const metaEngineKey = "embedding_engine"

// Store is a SQLite-backed passage index.
type Store struct {
	db     *sql.DB
	engine embedding.Engine
	log    *logger.Logger
}

// OpenStore opens (or creates) the index at path. engine must be the same
// engine the index was built with, or scores are meaningless.
func OpenStore(path string, engine embedding.Engine, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.New("RETRIEVAL", "info")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("init index schema: %w", err)
	}
	if err := checkEngine(db, engine.Name()); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, err
	}
	return &Store{db: db, engine: engine, log: log}, nil
}

// checkEngine pins the index to the engine that first wrote it.
func checkEngine(db *sql.DB, name string) error {
	var stored string
	err := db.QueryRow(`SELECT value FROM index_meta WHERE key = ?`, metaEngineKey).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.Exec(`INSERT INTO index_meta (key, value) VALUES (?, ?)`, metaEngineKey, name)
		return err
	case err != nil:
		return fmt.Errorf("read index meta: %w", err)
	case stored != name:
		return fmt.Errorf("index built with engine %s, configured engine is %s; re-index or switch back", stored, name)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Count returns the number of indexed passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n)
	return n, err
}

// Add indexes one passage, embedding its text. Re-adding an ID replaces the
// stored row, so re-indexing a document is idempotent.
func (s *Store) Add(ctx context.Context, id, sourceDoc, text string) error {
	vector, err := s.engine.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed passage %s: %w", id, err)
	}
	return s.addVector(ctx, id, sourceDoc, text, vector)
}

// AddBatch indexes several passages of one source document in a single
// transaction, using the engine's batch form.
func (s *Store) AddBatch(ctx context.Context, sourceDoc string, ids, texts []string) error {
	if len(ids) != len(texts) {
		return fmt.Errorf("ids and texts length mismatch: %d vs %d", len(ids), len(texts))
	}
	if len(ids) == 0 {
		return nil
	}

	vectors, err := s.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", sourceDoc, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO passages (id, source_doc, text, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck // best-effort close

	for i := range ids {
		if _, err := stmt.ExecContext(ctx, ids[i], sourceDoc, texts[i], encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("store passage %s: %w", ids[i], err)
		}
	}
	return tx.Commit()
}

func (s *Store) addVector(ctx context.Context, id, sourceDoc, text string, vector []float32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO passages (id, source_doc, text, embedding) VALUES (?, ?, ?, ?)`,
		id, sourceDoc, text, encodeVector(vector))
	if err != nil {
		return fmt.Errorf("store passage %s: %w", id, err)
	}
	return nil
}

// Search embeds the query and returns the k most similar passages by
// descending cosine score.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		return nil, nil
	}
	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, source_doc, text, embedding FROM passages`)
	if err != nil {
		return nil, fmt.Errorf("scan index: %w", err)
	}
	defer rows.Close() //nolint:errcheck // best-effort close

	// Min-heap of the top-k so a large corpus never materializes fully.
	top := &passageHeap{}
	heap.Init(top)
	for rows.Next() {
		var p Passage
		var blob []byte
		if err := rows.Scan(&p.ID, &p.SourceDoc, &p.Text, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			s.log.Warnf("search", "skipping passage %s: %v", p.ID, err)
			continue
		}
		p.Score = cosine(queryVec, vec)
		heap.Push(top, p)
		if top.Len() > k {
			heap.Pop(top)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Pop ascending, fill the result back to front for descending order.
	out := make([]Passage, top.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(top).(Passage)
	}
	return out, nil
}

// passageHeap orders passages by ascending score; ties break on ID so results
// are deterministic across runs.
type passageHeap []Passage

func (h passageHeap) Len() int { return len(h) }
func (h passageHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].ID > h[j].ID
}
func (h passageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *passageHeap) Push(x any)   { *h = append(*h, x.(Passage)) }
func (h *passageHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	*h = old[:n-1]
	return p
}
