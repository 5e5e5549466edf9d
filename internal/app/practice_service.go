package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"practice-engine/internal/domain"
)

// RecordStore abstracts how score records are persisted (in-memory, Redis, etc).
// Update must apply fn under single-record atomicity: two concurrent updates
// for the same (learner, assignment) pair are serialized, records for other
// pairs are untouched. fn returning an error aborts the write.
type RecordStore interface {
	Get(ctx context.Context, learnerID, assignmentID string) (*domain.ScoreRecord, error)
	Save(ctx context.Context, rec *domain.ScoreRecord) error
	Update(ctx context.Context, learnerID, assignmentID string, fn func(*domain.ScoreRecord) error) (*domain.ScoreRecord, error)
}

// QuestionCatalog is the read-only question lookup the selector consults.
type QuestionCatalog interface {
	Find(ctx context.Context, assignmentType, topicID string, questionType domain.QuestionType) ([]string, error)
	Get(ctx context.Context, questionID string) (domain.Question, error)
}

// AssignmentSource loads assignment descriptors.
type AssignmentSource interface {
	Get(ctx context.Context, assignmentID string) (*domain.Assignment, error)
}

// GradeReporter receives best-effort high-water score notifications. Notify
// must not block; delivery is at-least-once and failures never surface here.
type GradeReporter interface {
	Notify(assignmentID, learnerID string)
}

// PracticeService contains the adaptive practice use cases: record
// initialization, answer scoring with next-question selection, topic-list
// repair, and progress reads.
type PracticeService struct {
	records     RecordStore
	catalog     QuestionCatalog
	assignments AssignmentSource
	reporter    GradeReporter // nil for self-hosted deployments
	selector    *selector
}

func NewPracticeService(records RecordStore, catalog QuestionCatalog, assignments AssignmentSource, reporter GradeReporter, rnd *rand.Rand) *PracticeService {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}
	return &PracticeService{
		records:     records,
		catalog:     catalog,
		assignments: assignments,
		reporter:    reporter,
		selector:    newSelector(catalog, rnd),
	}
}

// Begin returns the score record for the pair, creating it on first access:
// topics are copied from the assignment in order, scores zeroed, and an
// initial selector run fills the current question.
func (s *PracticeService) Begin(ctx context.Context, learnerID, assignmentID string) (*domain.ScoreRecord, error) {
	rec, err := s.records.Get(ctx, learnerID, assignmentID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err
	}

	assignment, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	rec = &domain.ScoreRecord{
		AssignmentID: assignmentID,
		LearnerID:    learnerID,
		TopicIDs:     append([]string(nil), assignment.TopicIDs...),
		TopicScores:  make([]int, len(assignment.TopicIDs)),
	}
	if _, err := s.selector.selectNext(ctx, rec, assignment.Type); err != nil {
		return nil, err
	}
	if err := s.records.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SubmitAnswer grades the submitted option against catalog content, runs the
// scoring update, and returns the outcome together with the next question.
func (s *PracticeService) SubmitAnswer(ctx context.Context, learnerID, assignmentID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	question, err := s.catalog.Get(ctx, sub.QuestionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	correct, err := gradeOption(question, sub.OptionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	qScore := 0
	if correct {
		qScore = 1
	}

	rec, attributed, err := s.update(ctx, learnerID, assignmentID, question, qScore)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return domain.AnswerResult{
		QuestionID:     sub.QuestionID,
		Correct:        correct,
		Attributed:     attributed,
		TotalScore:     rec.TotalScore,
		MaxScore:       rec.MaxScore,
		NextQuestionID: rec.CurrentQuestionID,
	}, nil
}

// Update applies a pre-graded answer outcome (qScore 0 or 1) for the given
// question and returns the next question id. This is the core scoring entry
// point; SubmitAnswer is the grading convenience on top of it.
func (s *PracticeService) Update(ctx context.Context, learnerID, assignmentID, questionID string, qScore int) (string, error) {
	question, err := s.catalog.Get(ctx, questionID)
	if err != nil {
		return "", err
	}
	rec, _, err := s.update(ctx, learnerID, assignmentID, question, qScore)
	if err != nil {
		return "", err
	}
	return rec.CurrentQuestionID, nil
}

func (s *PracticeService) update(ctx context.Context, learnerID, assignmentID string, question domain.Question, qScore int) (*domain.ScoreRecord, bool, error) {
	if qScore != 0 && qScore != 1 {
		return nil, false, fmt.Errorf("qScore must be 0 or 1, got %d", qScore)
	}

	assignment, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, false, err
	}

	var (
		prevMax    int
		attributed bool
	)
	rec, err := s.records.Update(ctx, learnerID, assignmentID, func(rec *domain.ScoreRecord) error {
		prevMax = rec.MaxScore
		attributed = false

		// Stale-record fault: the answered topic is unknown to the record.
		// Repair against the assignment's current topic list and retry the
		// lookup once before declaring the answer non-attributable.
		if rec.TopicIndex(question.TopicID) < 0 {
			dropped := repairTopics(rec, assignment)
			for _, d := range dropped {
				log.Printf("repair %s/%s: dropped topic %s (score %d)", learnerID, assignmentID, d.TopicID, d.Score)
			}
		}

		if i := rec.TopicIndex(question.TopicID); i >= 0 {
			attributed = true
			rec.TotalScore = nextTotalScore(rec.TotalScore, qScore)
			rec.TopicScores[i] = nextTopicScore(rec.TopicScores[i], qScore)
		}

		if _, err := s.selector.selectNext(ctx, rec, assignment.Type); err != nil {
			return err
		}

		if rec.TotalScore > rec.MaxScore {
			rec.MaxScore = rec.TotalScore
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if !attributed {
		log.Printf("answer on question %s for %s/%s: %v (topic %s left the assignment)", question.ID, learnerID, assignmentID, domain.ErrTopicNotTracked, question.TopicID)
	}

	// Only committed high-water improvements are reported, and only when an
	// external LMS hosts the assignment. Delivery never blocks this flow.
	if s.reporter != nil && assignment.PlatformHosted && rec.MaxScore > prevMax {
		s.reporter.Notify(assignmentID, learnerID)
	}
	return rec, attributed, nil
}

// Repair reconciles the record's topic lists with the assignment's current
// ones. Safe to call even when nothing diverged.
func (s *PracticeService) Repair(ctx context.Context, learnerID, assignmentID string) error {
	assignment, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return err
	}

	_, err = s.records.Update(ctx, learnerID, assignmentID, func(rec *domain.ScoreRecord) error {
		dropped := repairTopics(rec, assignment)
		for _, d := range dropped {
			log.Printf("repair %s/%s: dropped topic %s (score %d)", learnerID, assignmentID, d.TopicID, d.Score)
		}

		// The repaired list may no longer contain the current question's
		// topic; reselect so the on-deck question stays consistent.
		if rec.CurrentQuestionID != "" {
			q, err := s.catalog.Get(ctx, rec.CurrentQuestionID)
			if err == nil && rec.TopicIndex(q.TopicID) >= 0 {
				return nil
			}
		}
		_, err := s.selector.selectNext(ctx, rec, assignment.Type)
		return err
	})
	return err
}

// Progress returns the read view of a record for presentation layers.
func (s *PracticeService) Progress(ctx context.Context, learnerID, assignmentID string) (domain.Progress, error) {
	rec, err := s.records.Get(ctx, learnerID, assignmentID)
	if err != nil {
		return domain.Progress{}, err
	}

	topics := make([]domain.TopicProgress, len(rec.TopicIDs))
	for i, id := range rec.TopicIDs {
		topics[i] = domain.TopicProgress{TopicID: id, Score: rec.TopicScores[i]}
	}
	return domain.Progress{
		AssignmentID:      rec.AssignmentID,
		LearnerID:         rec.LearnerID,
		TotalScore:        rec.TotalScore,
		MaxScore:          rec.MaxScore,
		Topics:            topics,
		CurrentQuestionID: rec.CurrentQuestionID,
	}, nil
}

// CurrentQuestion loads the full catalog entry for the record's on-deck question.
func (s *PracticeService) CurrentQuestion(ctx context.Context, learnerID, assignmentID string) (domain.Question, error) {
	rec, err := s.records.Get(ctx, learnerID, assignmentID)
	if err != nil {
		return domain.Question{}, err
	}
	return s.catalog.Get(ctx, rec.CurrentQuestionID)
}

// gradeOption validates the submitted option against the question's options.
func gradeOption(question domain.Question, optionID string) (bool, error) {
	for i := range question.Options {
		if question.Options[i].ID == optionID {
			return question.Options[i].Correct, nil
		}
	}
	return false, domain.ErrOptionNotFound
}
