package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"practice-engine/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogLoader loads question JSONB from Postgres. The selector columns
// (assignment_type, topic_id, question_type) are denormalized out of the
// JSONB payload so Find stays an index scan.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, questionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return q, nil
}

func (l *CatalogLoader) FindQuestionIDs(ctx context.Context, assignmentType, topicID string, questionType domain.QuestionType) ([]string, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id FROM questions WHERE assignment_type=$1 AND topic_id=$2 AND question_type=$3 ORDER BY id`,
		assignmentType, topicID, int(questionType))
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	return ids, nil
}

// AssignmentSource loads assignment JSONB from Postgres.
type AssignmentSource struct {
	pool *pgxpool.Pool
}

func NewAssignmentSource(pool *pgxpool.Pool) *AssignmentSource {
	return &AssignmentSource{pool: pool}
}

func (s *AssignmentSource) Get(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM assignments WHERE id=$1`, assignmentID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	var a domain.Assignment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("unmarshal assignment: %w", err)
	}
	return &a, nil
}
