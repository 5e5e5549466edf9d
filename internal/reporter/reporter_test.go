package reporter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"practice-engine/internal/domain"
)

type staticRecords struct {
	rec *domain.ScoreRecord
}

func (s *staticRecords) Get(_ context.Context, learnerID, assignmentID string) (*domain.ScoreRecord, error) {
	if s.rec == nil || s.rec.LearnerID != learnerID || s.rec.AssignmentID != assignmentID {
		return nil, domain.ErrRecordNotFound
	}
	return s.rec.Clone(), nil
}

func TestReporterDeliversHighWaterMark(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	scores := make(chan scorePayload, 1)
	scoreServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var payload scorePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		scores <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer scoreServer.Close()

	records := &staticRecords{rec: &domain.ScoreRecord{
		AssignmentID: "a1",
		LearnerID:    "u1",
		TotalScore:   40,
		MaxScore:     56,
	}}
	sink := NewAGSClient(scoreServer.URL, tokenServer.URL, "client", "secret")
	rep := New(records, sink, 8)
	defer rep.Close()

	rep.Notify("a1", "u1")

	select {
	case payload := <-scores:
		if payload.UserID != "u1" {
			t.Fatalf("wrong user: %+v", payload)
		}
		// The stored high-water mark is reported, not the current total.
		if payload.ScoreGiven != 56 || payload.ScoreMaximum != 100 {
			t.Fatalf("wrong score: %+v", payload)
		}
		if payload.GradingProgress != "FullyGraded" {
			t.Fatalf("wrong grading progress: %+v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("score never delivered")
	}
}

func TestReporterSurvivesDeliveryFailure(t *testing.T) {
	records := &staticRecords{rec: &domain.ScoreRecord{AssignmentID: "a1", LearnerID: "u1", MaxScore: 10}}
	sink := NewAGSClient("http://127.0.0.1:1/scores", "http://127.0.0.1:1/token", "c", "s")
	rep := New(records, sink, 2)
	defer rep.Close()

	// Failures must never propagate; Notify stays non-blocking.
	for i := 0; i < 10; i++ {
		rep.Notify("a1", "u1")
	}
}

func TestReporterSkipsMissingRecord(t *testing.T) {
	delivered := make(chan struct{}, 1)
	sink := sinkFunc(func(context.Context, string, string, int, int) error {
		delivered <- struct{}{}
		return nil
	})
	rep := New(&staticRecords{}, sink, 2)
	defer rep.Close()

	rep.Notify("a1", "u1")
	select {
	case <-delivered:
		t.Fatalf("missing record must not be reported")
	case <-time.After(200 * time.Millisecond):
	}
}

type sinkFunc func(ctx context.Context, assignmentID, learnerID string, score, max int) error

func (f sinkFunc) PostScore(ctx context.Context, assignmentID, learnerID string, score, max int) error {
	return f(ctx, assignmentID, learnerID, score, max)
}
