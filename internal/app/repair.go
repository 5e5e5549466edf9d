package app

import (
	"practice-engine/internal/domain"
)

// droppedTopic records a topic removed by repair together with the score the
// learner loses; callers log these so the data loss leaves an audit line.
type droppedTopic struct {
	TopicID string
	Score   int
}

// repairTopics rebuilds the record's topic lists to match the assignment's
// current ordered topic set. Retained topics carry their score forward (even
// if reordered), new topics start at zero, removed topics are dropped and
// returned. Idempotent: repairing an already-consistent record is a no-op.
func repairTopics(rec *domain.ScoreRecord, assignment *domain.Assignment) []droppedTopic {
	oldScores := make(map[string]int, len(rec.TopicIDs))
	for i, id := range rec.TopicIDs {
		oldScores[id] = rec.TopicScores[i]
	}

	topicIDs := make([]string, 0, len(assignment.TopicIDs))
	topicScores := make([]int, 0, len(assignment.TopicIDs))
	for _, id := range assignment.TopicIDs {
		score := 0
		if old, ok := oldScores[id]; ok {
			score = old
			delete(oldScores, id)
		}
		topicIDs = append(topicIDs, id)
		topicScores = append(topicScores, score)
	}

	var dropped []droppedTopic
	for _, id := range rec.TopicIDs {
		if score, ok := oldScores[id]; ok {
			dropped = append(dropped, droppedTopic{TopicID: id, Score: score})
		}
	}

	rec.TopicIDs = topicIDs
	rec.TopicScores = topicScores
	return dropped
}
