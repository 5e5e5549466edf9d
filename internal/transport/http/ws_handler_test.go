package http

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"practice-engine/internal/app"
	"practice-engine/internal/domain"
	"practice-engine/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketPracticeFlow(t *testing.T) {
	service := newTestService()
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?learnerId=u1&assignmentId=a1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The question on deck arrives first.
	_, payload := readNext(conn, t, "question")
	questionID, _ := payload["id"].(string)
	if questionID == "" {
		t.Fatalf("expected a question id, got %+v", payload)
	}
	if _, exposed := payload["options"].([]any); !exposed {
		t.Fatalf("expected options in question payload")
	}

	// Answer it; every fixture question's correct option is "ok".
	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId": questionID,
			"optionId":   "ok",
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	// Expect answerResult, then progress, then the next question.
	_, result := readNext(conn, t, "answerResult")
	if correct, _ := result["correct"].(bool); !correct {
		t.Fatalf("expected correct answer, got %+v", result)
	}
	if total, _ := result["totalScore"].(float64); total != 10 {
		t.Fatalf("expected total 10, got %v", result["totalScore"])
	}

	_, progress := readNext(conn, t, "progress")
	if max, _ := progress["maxScore"].(float64); max != 10 {
		t.Fatalf("expected max 10, got %v", progress["maxScore"])
	}

	_, next := readNext(conn, t, "question")
	if nextID, _ := next["id"].(string); nextID == "" {
		t.Fatalf("expected next question, got %+v", next)
	}
}

func TestWebSocketRejectsMissingParams(t *testing.T) {
	service := newTestService()
	wsHandler := NewWSHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/ws?learnerId=u1", nil)
	rec := httptest.NewRecorder()
	wsHandler.ServeWS(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (payload %+v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}

func newTestService() *app.PracticeService {
	records := memory.NewRecordStore()
	catalog := memory.NewCatalog(memory.NewStaticCatalogLoader(sampleQuestions()), time.Minute)
	assignments := memory.NewStaticAssignmentSource([]domain.Assignment{
		{ID: "a1", Type: "drill", TopicIDs: []string{"t1", "t2"}},
	})
	return app.NewPracticeService(records, catalog, assignments, nil, rand.New(rand.NewSource(1)))
}

func sampleQuestions() []domain.Question {
	options := []domain.Option{
		{ID: "ok", Text: "right", Correct: true},
		{ID: "no", Text: "wrong"},
	}
	var qs []domain.Question
	for _, topic := range []string{"t1", "t2"} {
		for _, typ := range []domain.QuestionType{domain.TypeRecall, domain.TypeComprehension} {
			for _, suffix := range []string{"a", "b"} {
				qs = append(qs, domain.Question{
					ID:             topic + "-" + typ.String() + "-" + suffix,
					AssignmentType: "drill",
					TopicID:        topic,
					Type:           typ,
					Prompt:         "pick the right option",
					Options:        options,
				})
			}
		}
	}
	return qs
}
