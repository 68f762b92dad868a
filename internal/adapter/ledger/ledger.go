// Package ledger records what has been ingested so re-runs can skip
// unchanged pages. The vector index itself is already idempotent through
// content-addressed IDs; the ledger just avoids re-embedding content that
// has not changed.
package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketPages = []byte("pages")
	bucketStats = []byte("stats")
	keyStats    = []byte("ingest_stats")
	keyGen      = []byte("generation")
)

// PageRecord is what the ledger remembers about one ingested page.
type PageRecord struct {
	ContentHash string `json:"content_hash"`
	ChunkCount  int    `json:"chunk_count"`
	IngestedAt  int64  `json:"ingested_at"`
}

// Stats summarizes the ledger.
type Stats struct {
	TotalPages   int    `json:"total_pages"`
	TotalChunks  int    `json:"total_chunks"`
	LastIngestAt string `json:"last_ingest_at,omitempty"`
}

// Ledger is a bbolt-backed ingestion record keyed by page URL.
type Ledger struct {
	db *bbolt.DB
}

func Open(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketPages, bucketStats} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

// OpenReadOnly opens an existing ledger without taking the write lock, for
// readers that only need the generation or stats while another process may
// be ingesting. Fails if the ledger does not exist.
func OpenReadOnly(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0400, &bbolt.Options{
		ReadOnly: true,
		Timeout:  time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger db read-only: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// ContentHash fingerprints page text for change detection.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

// Get returns the record for a URL, or false if the page was never ingested.
func (l *Ledger) Get(url string) (PageRecord, bool, error) {
	var rec PageRecord
	var found bool
	err := l.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPages).Get([]byte(url))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	return rec, found, err
}

// Put records a page ingestion and bumps the ingest generation, which the
// query cache uses to drop stale entries.
func (l *Ledger) Put(url, contentHash string, chunkCount int) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		rec := PageRecord{
			ContentHash: contentHash,
			ChunkCount:  chunkCount,
			IngestedAt:  time.Now().Unix(),
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketPages).Put([]byte(url), data); err != nil {
			return err
		}
		return bumpGeneration(tx)
	})
}

// Unchanged reports whether the URL was already ingested with this hash.
func (l *Ledger) Unchanged(url, contentHash string) (bool, error) {
	rec, found, err := l.Get(url)
	if err != nil {
		return false, err
	}
	return found && rec.ContentHash == contentHash, nil
}

// Generation returns a counter that increases on every recorded ingestion.
func (l *Ledger) Generation() (uint64, error) {
	var gen uint64
	err := l.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get(keyGen)
		if len(data) == 8 {
			gen = binary.BigEndian.Uint64(data)
		}
		return nil
	})
	return gen, err
}

func bumpGeneration(tx *bbolt.Tx) error {
	b := tx.Bucket(bucketStats)
	var gen uint64
	if data := b.Get(keyGen); len(data) == 8 {
		gen = binary.BigEndian.Uint64(data)
	}
	gen++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, gen)
	return b.Put(keyGen, buf)
}

// Totals derives page and chunk counts from the recorded pages. Unlike the
// stored stats, these cannot drift when a page is re-ingested.
func (l *Ledger) Totals() (pages, chunks int, err error) {
	err = l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPages).ForEach(func(k, v []byte) error {
			var rec PageRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			pages++
			chunks += rec.ChunkCount
			return nil
		})
	})
	return pages, chunks, err
}

// GetStats returns the stored ledger stats.
func (l *Ledger) GetStats() (Stats, error) {
	var stats Stats
	err := l.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

// UpdateStats stores the ledger stats.
func (l *Ledger) UpdateStats(stats Stats) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Put(keyStats, data)
	})
}

// Pages returns every recorded URL.
func (l *Ledger) Pages() ([]string, error) {
	var urls []string
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPages).ForEach(func(k, v []byte) error {
			urls = append(urls, string(k))
			return nil
		})
	})
	return urls, err
}
