// Package directory resolves user ids to display profiles. The identity
// provider owns the records; this is a read-only lookup with an optional
// Redis read-through cache in front of the store.
package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"investmatch/internal/common/logger"
	"investmatch/internal/common/metrics"
	"investmatch/internal/models"
	"investmatch/internal/store"
)

// UserDirectory is the lookup contract the matching service consumes.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (models.UserProfile, error)
}

// StoreDirectory reads profiles from the users collection, caching them in
// Redis when a client is provided.
type StoreDirectory struct {
	store      store.Store
	collection string
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     logger.Logger
}

// NewStoreDirectory creates a directory. cache may be nil to disable caching.
func NewStoreDirectory(s store.Store, collection string, cache *redis.Client, cacheTTL time.Duration, log logger.Logger) *StoreDirectory {
	return &StoreDirectory{
		store:      s,
		collection: collection,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     log.WithFields(map[string]interface{}{"component": "directory"}),
	}
}

func (d *StoreDirectory) Lookup(ctx context.Context, userID string) (models.UserProfile, error) {
	if d.cache != nil {
		if cached, err := d.cache.Get(ctx, cacheKey(userID)).Result(); err == nil {
			var profile models.UserProfile
			if err := json.Unmarshal([]byte(cached), &profile); err == nil {
				metrics.DirectoryCacheHits.WithLabelValues("hit").Inc()
				return profile, nil
			}
			// Poisoned entry: drop it and fall through to the store.
			d.cache.Del(ctx, cacheKey(userID))
		}
		metrics.DirectoryCacheHits.WithLabelValues("miss").Inc()
	}

	rec, err := d.store.Get(ctx, d.collection, userID)
	if err != nil {
		return models.UserProfile{}, err
	}

	var profile models.UserProfile
	raw, err := json.Marshal(rec.Fields)
	if err != nil {
		return models.UserProfile{}, err
	}
	if err := json.Unmarshal(raw, &profile); err != nil {
		return models.UserProfile{}, err
	}
	profile.ID = rec.ID

	if d.cache != nil {
		encoded, err := json.Marshal(profile)
		if err == nil {
			if err := d.cache.Set(ctx, cacheKey(userID), encoded, d.cacheTTL).Err(); err != nil {
				d.logger.Warn("profile cache write failed", map[string]interface{}{
					"userId": userID,
					"error":  err.Error(),
				})
			}
		}
	}

	return profile, nil
}

func cacheKey(userID string) string {
	return "directory:user:" + userID
}
