package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/entity"
)

const DefaultTTL = 24 * time.Hour

// RecordCache stores extraction records keyed by the PDF's SHA-256.
type RecordCache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewRecordCache(store Store, ttl time.Duration, logger *slog.Logger) *RecordCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RecordCache{store: store, ttl: ttl, logger: logger}
}

// Key is the content hash of a document.
func Key(pdf []byte) string {
	sum := sha256.Sum256(pdf)
	return "record:" + hex.EncodeToString(sum[:])
}

// Lookup returns the cached record for pdf renamed to fileName. Store
// errors and undecodable entries are reported as misses.
func (c *RecordCache) Lookup(ctx context.Context, pdf []byte, fileName string) (entity.Record, bool) {
	log := common.LoggerWith(ctx, c.logger)
	key := Key(pdf)
	b, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Warn("cache.get.failed", "error", err)
		}
		return entity.Record{}, false
	}
	var rec entity.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		log.Warn("cache.decode.failed", "error", err)
		return entity.Record{}, false
	}
	rec.FileName = fileName
	log.Info("cache.hit", "key", key[:15])
	return rec, true
}

// Store caches a successful record. Failed records are never cached.
func (c *RecordCache) Store(ctx context.Context, pdf []byte, rec entity.Record) {
	if rec.Failed() {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, Key(pdf), b, c.ttl); err != nil {
		common.LoggerWith(ctx, c.logger).Warn("cache.set.failed", "error", err)
	}
}
