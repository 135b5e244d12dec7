package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
)

// Errors returned by this package.
var (
	ErrNotFound            = errors.New("store: hierarchy not found")
	ErrUnknownCodingSystem = errors.New("store: unknown coding system")
	ErrClosed              = errors.New("store: closed")
)

// Store persists hierarchy cache records by key.
type Store interface {
	// Get returns the record stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*hierarchy.CacheRecord, error)
	// Put stores rec under key, replacing any previous record.
	Put(ctx context.Context, key string, rec *hierarchy.CacheRecord) error
	Close() error
}

// Key identifies the hierarchy built for codes in one coding system. Order
// and duplicates in codes do not change the key.
func Key(systemID string, codes []string) string {
	h := sha256.New()
	h.Write([]byte(systemID))
	for _, c := range hierarchy.NewCodeSet(codes...).Sorted() {
		h.Write([]byte{0})
		h.Write([]byte(c))
	}
	return systemID + "/" + hex.EncodeToString(h.Sum(nil))
}
