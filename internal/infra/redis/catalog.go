package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"practice-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CatalogLoader fetches question content from a backing store (e.g. Postgres).
type CatalogLoader interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
	FindQuestionIDs(ctx context.Context, assignmentType, topicID string, questionType domain.QuestionType) ([]string, error)
}

// Catalog caches catalog lookups in Redis and falls back to a loader on miss.
// Question attributes are stored as:  SET practice:question:{id} {json}
// Selection queries are stored as:    SADD practice:find:{type}:{topic}:{qtype} {ids...}
type Catalog struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalog(client *redis.Client, loader CatalogLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Catalog) Get(ctx context.Context, questionID string) (domain.Question, error) {
	key := c.questionKey(questionID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var q domain.Question
		if err := json.Unmarshal(data, &q); err == nil {
			return q, nil
		}
		// Corrupt cache entry; fall through and reload.
	}

	result, err, _ := c.sf.Do("q:"+questionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		data, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var q domain.Question
			if err := json.Unmarshal(data, &q); err == nil {
				return q, nil
			}
		}

		q, err := c.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		if payload, err := json.Marshal(q); err == nil {
			_ = c.client.Set(ctx, key, payload, c.ttlWithJitter()).Err()
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *Catalog) Find(ctx context.Context, assignmentType, topicID string, questionType domain.QuestionType) ([]string, error) {
	key := c.findKey(assignmentType, topicID, questionType)

	ids, err := c.client.SMembers(ctx, key).Result()
	if err == nil && len(ids) > 0 {
		return cleanIDs(ids), nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("catalog find cache: %w", err)
	}

	result, err, _ := c.sf.Do("f:"+key, func() (interface{}, error) {
		ids, err := c.client.SMembers(ctx, key).Result()
		if err == nil && len(ids) > 0 {
			return cleanIDs(ids), nil
		}

		loaded, err := c.loader.FindQuestionIDs(ctx, assignmentType, topicID, questionType)
		if err != nil {
			return nil, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		if len(loaded) > 0 {
			members := make([]interface{}, len(loaded))
			for i, id := range loaded {
				members[i] = id
			}
			pipe.SAdd(ctx, key, members...)
		} else {
			// Cache emptiness too, with a sentinel, so missing content does
			// not hammer the backing store on every selection.
			pipe.SAdd(ctx, key, emptyMarker)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return append([]string(nil), loaded...), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

const emptyMarker = "__none__"

// cleanIDs strips the emptiness sentinel and sorts for reproducible draws.
func cleanIDs(ids []string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != emptyMarker {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) questionKey(questionID string) string {
	return "practice:question:" + questionID
}

func (c *Catalog) findKey(assignmentType, topicID string, questionType domain.QuestionType) string {
	return fmt.Sprintf("practice:find:%s:%s:%d", assignmentType, topicID, questionType)
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
