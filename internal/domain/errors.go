package domain

import "errors"

var (
	// ErrRecordNotFound is returned when no score record exists for a
	// (learner, assignment) pair.
	ErrRecordNotFound = errors.New("score record not found")
	// ErrAssignmentNotFound indicates the assignment descriptor could not be loaded.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrQuestionNotFound indicates a question ID is not in the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid for the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrTopicNotTracked indicates an answered question's topic is absent from
	// the record even after repair; the answer cannot be attributed.
	ErrTopicNotTracked = errors.New("topic not tracked by score record")
	// ErrNoQuestions indicates the catalog has no askable question left for
	// the assignment.
	ErrNoQuestions = errors.New("no questions available for assignment")
)
