package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/SAP-F-2025/proctoring-service/internal/models"
	"github.com/SAP-F-2025/proctoring-service/internal/repositories"
	"github.com/SAP-F-2025/proctoring-service/internal/utils"
	"golang.org/x/sync/singleflight"
)

const registryPrefix = "proctoring:registry:"

// TestRegistry caches the read-only test snapshot. Concurrent misses for the
// same key share one backend read; cache failures fall through to the backend.
type TestRegistry struct {
	next   repositories.TestRegistry
	cache  CacheService
	ttl    time.Duration
	group  singleflight.Group
	logger utils.Logger
}

func NewTestRegistry(next repositories.TestRegistry, cache CacheService, ttl time.Duration, logger utils.Logger) *TestRegistry {
	return &TestRegistry{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *TestRegistry) GetTest(ctx context.Context, testID string) (*models.Test, error) {
	var test models.Test
	err := r.load(ctx, registryPrefix+"test:"+testID, &test, func() (interface{}, error) {
		return r.next.GetTest(ctx, testID)
	})
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *TestRegistry) GetQuestions(ctx context.Context, ids []string) ([]models.Question, error) {
	var questions []models.Question
	err := r.load(ctx, registryPrefix+"questions:"+idsKey(ids), &questions, func() (interface{}, error) {
		return r.next.GetQuestions(ctx, ids)
	})
	return questions, err
}

func (r *TestRegistry) GetAnswerKeys(ctx context.Context, ids []string) ([]models.Question, error) {
	var keys []models.Question
	err := r.load(ctx, registryPrefix+"keys:"+idsKey(ids), &keys, func() (interface{}, error) {
		return r.next.GetAnswerKeys(ctx, ids)
	})
	return keys, err
}

// Invalidate drops every cached registry entry.
func (r *TestRegistry) Invalidate(ctx context.Context) error {
	return r.cache.DeletePattern(ctx, registryPrefix+"*")
}

func (r *TestRegistry) load(ctx context.Context, key string, dest interface{}, fetch func() (interface{}, error)) error {
	err := r.cache.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn("Registry cache read failed", "key", key, "error", err)
	}

	shared, err, _ := r.group.Do(key, func() (interface{}, error) {
		value, err := fetch()
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(ctx, key, value, r.ttl); err != nil {
			r.logger.Warn("Registry cache write failed", "key", key, "error", err)
		}
		return value, nil
	})
	if err != nil {
		return err
	}
	return assign(shared, dest)
}

func assign(value, dest interface{}) error {
	switch d := dest.(type) {
	case *models.Test:
		*d = *value.(*models.Test)
	case *[]models.Question:
		src := value.([]models.Question)
		*d = append([]models.Question(nil), src...)
	default:
		return errors.New("unsupported cache destination")
	}
	return nil
}

func idsKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:12])
}
