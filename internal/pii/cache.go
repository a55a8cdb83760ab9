// Package pii — cache.go
//
// DetectionStore is the cache for statistical NER results. Keys are hashes
// of (model, language, text); values are the backend's serialized detections.
// Legal corpora are heavily repetitive — the same passages come back for
// many queries — so caching detections removes most model calls.
//
// Two base implementations are provided:
//   - memoryStore — in-memory only, used in tests and when no path is configured.
//   - boltStore   — embedded key-value store (bbolt) so detections survive
//     process restarts.
//
// Both are normally wrapped by the S3-FIFO eviction layer (s3fifo.go) which
// bounds the in-memory hot set and the on-disk size.
//
// The cache stores detections on already-hashed keys and never persists the
// analyzed text itself.
package pii

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/KawtarRIFI/LegalGuard-AI/internal/logger"
)

// DetectionStore is the NER detection cache interface.
// All implementations must be safe for concurrent use.
type DetectionStore interface {
	// Get returns the cached serialized detections for key, if present.
	Get(key string) (value string, ok bool)

	// Set stores key → value. Overwrites any existing entry silently.
	Set(key, value string)

	// Delete removes key. A no-op if the key is absent.
	Delete(key string)

	// Close releases any resources held by the store (e.g. file handles).
	Close() error
}

// NewDetectionStore builds the configured cache stack: an S3-FIFO eviction
// layer over bbolt when path is non-empty, over plain memory otherwise.
func NewDetectionStore(path string, capacity int, log *logger.Logger) (DetectionStore, error) {
	if path == "" {
		return newS3FIFOStore(newMemoryStore(), capacity, log), nil
	}
	backing, err := newBoltStore(path, log)
	if err != nil {
		return nil, err
	}
	return newS3FIFOStore(backing, capacity, log), nil
}

// --- memoryStore ---------------------------------------------------------

// memoryStore is a thread-safe in-memory DetectionStore.
type memoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func newMemoryStore() DetectionStore {
	return &memoryStore{items: make(map[string]string)}
}

func (c *memoryStore) Get(key string) (string, bool) {
	c.mu.RLock()
	v, ok := c.items[key]
	c.mu.RUnlock()
	return v, ok
}

func (c *memoryStore) Set(key, value string) {
	c.mu.Lock()
	c.items[key] = value
	c.mu.Unlock()
}

func (c *memoryStore) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *memoryStore) Close() error { return nil }

// --- boltStore -----------------------------------------------------------

const boltBucket = "ner_detections"

// boltStore is a DetectionStore backed by an embedded bbolt database.
// Entries survive process restarts. The database file is created at the
// given path if it does not exist.
type boltStore struct {
	db  *bolt.DB
	log *logger.Logger
}

func newBoltStore(path string, log *logger.Logger) (DetectionStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open detection cache %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create detection cache bucket: %w", err)
	}

	log.Infof("cache_open", "persistent detection cache at %s", path)
	return &boltStore{db: db, log: log}, nil
}

func (c *boltStore) Get(key string) (string, bool) {
	var value string
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	if err != nil {
		c.log.Errorf("cache_get", "bbolt read: %v", err)
		return "", false
	}
	return value, value != ""
}

func (c *boltStore) Set(key, value string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", boltBucket)
		}
		return b.Put([]byte(key), []byte(value))
	}); err != nil {
		c.log.Errorf("cache_set", "bbolt write: %v", err)
	}
}

func (c *boltStore) Delete(key string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	}); err != nil {
		c.log.Errorf("cache_delete", "bbolt delete: %v", err)
	}
}

func (c *boltStore) Close() error {
	return c.db.Close()
}
