package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"practice-engine/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CatalogLoader fetches question content from a backing store (e.g. Postgres).
type CatalogLoader interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
	FindQuestionIDs(ctx context.Context, assignmentType, topicID string, questionType domain.QuestionType) ([]string, error)
}

// Catalog caches question lookups with TTL to avoid repeated store hits.
// Selection queries (Find) and attribute lookups (Get) are cached
// independently since they expire on different editorial events.
type Catalog struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	questions map[string]cachedQuestion
	finds     map[string]cachedFind
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

type cachedFind struct {
	ids       []string
	expiresAt time.Time
}

func NewCatalog(loader CatalogLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		loader:    loader,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		questions: make(map[string]cachedQuestion),
		finds:     make(map[string]cachedFind),
	}
}

func (c *Catalog) Get(ctx context.Context, questionID string) (domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.questions[questionID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.question, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("q:"+questionID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.questions[questionID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.question, nil
		}
		c.mu.RUnlock()

		question, err := c.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		c.mu.Lock()
		c.questions[questionID] = cachedQuestion{
			question:  question,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *Catalog) Find(ctx context.Context, assignmentType, topicID string, questionType domain.QuestionType) ([]string, error) {
	key := findKey(assignmentType, topicID, questionType)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.finds[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return append([]string(nil), entry.ids...), nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("f:"+key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.finds[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return append([]string(nil), entry.ids...), nil
		}
		c.mu.RUnlock()

		ids, err := c.loader.FindQuestionIDs(ctx, assignmentType, topicID, questionType)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.finds[key] = cachedFind{
			ids:       append([]string(nil), ids...),
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), result.([]string)...), nil
}

func findKey(assignmentType, topicID string, questionType domain.QuestionType) string {
	return fmt.Sprintf("%s|%s|%d", assignmentType, topicID, questionType)
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader is a simple loader backed by an in-memory question set
// (useful for tests/demos).
type StaticCatalogLoader struct {
	questions map[string]domain.Question
}

func NewStaticCatalogLoader(questions []domain.Question) *StaticCatalogLoader {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &StaticCatalogLoader{questions: byID}
}

func (l *StaticCatalogLoader) LoadQuestion(_ context.Context, questionID string) (domain.Question, error) {
	if q, ok := l.questions[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (l *StaticCatalogLoader) FindQuestionIDs(_ context.Context, assignmentType, topicID string, questionType domain.QuestionType) ([]string, error) {
	var ids []string
	for _, q := range l.questions {
		if q.AssignmentType == assignmentType && q.TopicID == topicID && q.Type == questionType {
			ids = append(ids, q.ID)
		}
	}
	// Map iteration order is random; keep draws reproducible under a seeded rng.
	sort.Strings(ids)
	return ids, nil
}
