package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
)

// CatalogLoader fetches the ordered question list from the backing store.
type CatalogLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// CatalogCache keeps the full ordered catalog as one JSON value in Redis and
// falls back to the loader on a miss. The catalog is small and read on every
// submission, so caching it whole keeps ordering intact and avoids per-field
// reassembly.
type CatalogCache struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogCache(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const catalogKey = "test:questions"

func (c *CatalogCache) List(ctx context.Context) ([]domain.Question, error) {
	raw, err := c.client.Get(ctx, catalogKey).Bytes()
	if err == nil {
		return decodeQuestions(raw)
	}

	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		raw, err := c.client.Get(ctx, catalogKey).Bytes()
		if err == nil {
			return decodeAny(raw)
		}

		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(questions)
		if err != nil {
			return nil, fmt.Errorf("encode catalog: %w", err)
		}
		_ = c.client.Set(ctx, catalogKey, encoded, c.ttlWithJitter()).Err()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *CatalogCache) Count(ctx context.Context) (int, error) {
	questions, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(questions), nil
}

func (c *CatalogCache) Get(ctx context.Context, id int) (domain.Question, error) {
	questions, err := c.List(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	for _, q := range questions {
		if q.ID == id {
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

// Invalidate drops the cached catalog, forcing the next read through the
// loader. The seeding command calls this after inserting questions.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, catalogKey).Err()
}

func decodeQuestions(raw []byte) ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return questions, nil
}

func decodeAny(raw []byte) (interface{}, error) {
	return decodeQuestions(raw)
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
