package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"skillchain/internal/certificate/models"
)

// CachedStore wraps a Store with a redis read-through cache for the
// verification lookups. Records never change after creation, so entries
// carry only a TTL and are never invalidated. Cache failures degrade to the
// underlying store.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps inner with a redis cache.
func NewCached(inner Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

// Create writes through to the underlying store. The fresh record is cached
// opportunistically so the verification that typically follows issuance hits
// the cache.
func (s *CachedStore) Create(ctx context.Context, record *models.IssuanceRecord) error {
	if err := s.inner.Create(ctx, record); err != nil {
		return err
	}
	s.set(ctx, txRefKey(record.LedgerTxRef), record)
	return nil
}

func (s *CachedStore) FindByIdentityAndCourse(ctx context.Context, identityID, courseID string) (*models.IssuanceRecord, error) {
	return s.readThrough(ctx, pairCacheKey(identityID, courseID), func() (*models.IssuanceRecord, error) {
		return s.inner.FindByIdentityAndCourse(ctx, identityID, courseID)
	})
}

func (s *CachedStore) FindByTxRef(ctx context.Context, txRef string) (*models.IssuanceRecord, error) {
	return s.readThrough(ctx, txRefKey(txRef), func() (*models.IssuanceRecord, error) {
		return s.inner.FindByTxRef(ctx, txRef)
	})
}

func (s *CachedStore) FindByCredentialID(ctx context.Context, credentialID uint64) (*models.IssuanceRecord, error) {
	return s.readThrough(ctx, credentialIDKey(credentialID), func() (*models.IssuanceRecord, error) {
		return s.inner.FindByCredentialID(ctx, credentialID)
	})
}

func (s *CachedStore) readThrough(ctx context.Context, key string, load func() (*models.IssuanceRecord, error)) (*models.IssuanceRecord, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var record models.IssuanceRecord
		if unmarshalErr := json.Unmarshal(data, &record); unmarshalErr == nil {
			return &record, nil
		}
		// Corrupt entry; fall through to the store and rewrite it.
	} else if !errors.Is(err, redis.Nil) && s.logger != nil {
		s.logger.Warn("issuance record cache read failed", "key", key, "error", err)
	}

	record, err := load()
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, record)
	return record, nil
}

func (s *CachedStore) set(ctx context.Context, key string, record *models.IssuanceRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("issuance record cache write failed", "key", key, "error", err)
	}
}

func pairCacheKey(identityID, courseID string) string {
	return fmt.Sprintf("issuance:pair:%s:%s", identityID, courseID)
}

func txRefKey(txRef string) string {
	return "issuance:tx:" + txRef
}

func credentialIDKey(credentialID uint64) string {
	return fmt.Sprintf("issuance:cred:%d", credentialID)
}
