package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"practice-engine/internal/domain"
)

// selector implements the two-stage weighted-random question choice. The
// random source is injected so tests can replay draws deterministically; a
// mutex guards it because records for different learners are scored
// concurrently while *rand.Rand is not goroutine-safe.
type selector struct {
	catalog QuestionCatalog

	mu  sync.Mutex
	rnd *rand.Rand
}

func newSelector(catalog QuestionCatalog, rnd *rand.Rand) *selector {
	return &selector{catalog: catalog, rnd: rnd}
}

func (s *selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// selectNext picks the next question for the record, appends it to the
// anti-repetition window, and stores it as the current question.
func (s *selector) selectNext(ctx context.Context, rec *domain.ScoreRecord, assignmentType string) (string, error) {
	if len(rec.TopicIDs) == 0 {
		return "", fmt.Errorf("select next: %w", domain.ErrNoQuestions)
	}

	topic := s.pickTopic(rec)
	typ := s.pickType(rec.TotalScore)

	questionID, err := s.pickQuestion(ctx, rec, assignmentType, topic, typ)
	if err != nil {
		return "", err
	}

	rec.PushRecent(questionID)
	rec.CurrentQuestionID = questionID
	return questionID, nil
}

// pickTopic draws a topic weighted by 100-score so weak topics dominate.
// Ties and ordering follow the stored TopicIDs sequence. When every topic is
// mastered (all weights zero) the draw degrades to uniform.
func (s *selector) pickTopic(rec *domain.ScoreRecord) string {
	totalWeight := 0
	for _, score := range rec.TopicScores {
		totalWeight += 100 - score
	}
	if totalWeight == 0 {
		return rec.TopicIDs[s.intn(len(rec.TopicIDs))]
	}

	r := s.intn(totalWeight)
	acc := 0
	for i, score := range rec.TopicScores {
		acc += 100 - score
		if acc > r {
			return rec.TopicIDs[i]
		}
	}
	// Unreachable while weights sum to totalWeight; keep the last topic as a
	// safe answer.
	return rec.TopicIDs[len(rec.TopicIDs)-1]
}

// pickType draws a question type weighted by distance from the learner's
// current quintile.
func (s *selector) pickType(totalScore int) domain.QuestionType {
	q := quintile(totalScore)

	totalWeight := 0
	for _, t := range domain.QuestionTypes {
		totalWeight += typeWeight(int(t), q)
	}

	r := s.intn(totalWeight)
	acc := 0
	for _, t := range domain.QuestionTypes {
		acc += typeWeight(int(t), q)
		if acc > r {
			return t
		}
	}
	return domain.QuestionTypes[len(domain.QuestionTypes)-1]
}

// pickQuestion resolves candidates for the chosen (topic, type), filters the
// anti-repetition window, and draws uniformly. Two recoverable widenings
// apply: if filtering empties the candidate set the window is relaxed for
// this draw, and if the catalog has nothing for the chosen pair the search
// widens over the remaining types (closest quintile weight first) and then
// the remaining topics in stored order before giving up with ErrNoQuestions.
func (s *selector) pickQuestion(ctx context.Context, rec *domain.ScoreRecord, assignmentType, topic string, typ domain.QuestionType) (string, error) {
	for _, t := range orderedTopics(rec, topic) {
		for _, k := range orderedTypes(rec.TotalScore, typ) {
			candidates, err := s.catalog.Find(ctx, assignmentType, t, k)
			if err != nil {
				return "", fmt.Errorf("catalog find %s/%s: %w", t, k, err)
			}
			if len(candidates) == 0 {
				continue
			}

			fresh := candidates[:0:0]
			for _, id := range candidates {
				if !rec.HasRecent(id) {
					fresh = append(fresh, id)
				}
			}
			if len(fresh) == 0 {
				// Anti-repetition would starve this draw; relax it.
				fresh = candidates
			}
			return fresh[s.intn(len(fresh))], nil
		}
	}
	return "", fmt.Errorf("assignment type %q topic %q: %w", assignmentType, topic, domain.ErrNoQuestions)
}

// orderedTopics returns the chosen topic first, then the rest in stored order.
func orderedTopics(rec *domain.ScoreRecord, chosen string) []string {
	out := make([]string, 0, len(rec.TopicIDs))
	out = append(out, chosen)
	for _, id := range rec.TopicIDs {
		if id != chosen {
			out = append(out, id)
		}
	}
	return out
}

// orderedTypes returns the chosen type first, then the rest by descending
// Stage B weight (nearest quintile first), ascending type as tie-break.
func orderedTypes(totalScore int, chosen domain.QuestionType) []domain.QuestionType {
	q := quintile(totalScore)
	rest := make([]domain.QuestionType, 0, len(domain.QuestionTypes)-1)
	for _, t := range domain.QuestionTypes {
		if t != chosen {
			rest = append(rest, t)
		}
	}
	// Five entries at most; insertion sort keeps it dependency-free.
	for i := 1; i < len(rest); i++ {
		for j := i; j > 0; j-- {
			wj := typeWeight(int(rest[j]), q)
			wp := typeWeight(int(rest[j-1]), q)
			if wj > wp || (wj == wp && rest[j] < rest[j-1]) {
				rest[j], rest[j-1] = rest[j-1], rest[j]
			} else {
				break
			}
		}
	}
	return append([]domain.QuestionType{chosen}, rest...)
}
