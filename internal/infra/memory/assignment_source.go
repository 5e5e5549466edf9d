package memory

import (
	"context"

	"practice-engine/internal/domain"
)

// StaticAssignmentSource serves assignment descriptors from an in-memory map
// (useful for tests/demos).
type StaticAssignmentSource struct {
	assignments map[string]domain.Assignment
}

func NewStaticAssignmentSource(assignments []domain.Assignment) *StaticAssignmentSource {
	byID := make(map[string]domain.Assignment, len(assignments))
	for _, a := range assignments {
		byID[a.ID] = a
	}
	return &StaticAssignmentSource{assignments: byID}
}

func (s *StaticAssignmentSource) Get(_ context.Context, assignmentID string) (*domain.Assignment, error) {
	a, ok := s.assignments[assignmentID]
	if !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	cp := a
	cp.TopicIDs = append([]string(nil), a.TopicIDs...)
	return &cp, nil
}

// SetTopics replaces an assignment's topic list, simulating editorial changes
// in tests of the repair path.
func (s *StaticAssignmentSource) SetTopics(assignmentID string, topicIDs []string) {
	a := s.assignments[assignmentID]
	a.TopicIDs = append([]string(nil), topicIDs...)
	s.assignments[assignmentID] = a
}
