package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"practice-engine/internal/app"
	"practice-engine/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.PracticeService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PracticeService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// optionView hides the correctness flag from clients.
type optionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID      string       `json:"id"`
	TopicID string       `json:"topicId"`
	Type    string       `json:"questionType"`
	Prompt  string       `json:"prompt"`
	Options []optionView `json:"options"`
}

func viewOf(q domain.Question) questionView {
	options := make([]optionView, len(q.Options))
	for i, o := range q.Options {
		options[i] = optionView{ID: o.ID, Text: o.Text}
	}
	return questionView{
		ID:      q.ID,
		TopicID: q.TopicID,
		Type:    q.Type.String(),
		Prompt:  q.Prompt,
		Options: options,
	}
}

// ServeWS upgrades HTTP requests to websockets and drives the practice loop:
// the server pushes the question on deck, the client answers, the server
// replies with the graded result, updated progress, and the next question.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("learnerId")
	assignmentID := r.URL.Query().Get("assignmentId")
	if learnerID == "" || assignmentID == "" {
		http.Error(w, "missing learnerId or assignmentId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if _, err := h.service.Begin(r.Context(), learnerID, assignmentID); err != nil {
		h.writeError(conn, err)
		return
	}
	if !h.sendCurrentQuestion(conn, r, learnerID, assignmentID) {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.writeError(conn, errors.New("invalid answer payload"))
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), learnerID, assignmentID, domain.AnswerSubmission{
				QuestionID: payload.QuestionID,
				OptionID:   payload.OptionID,
			})
			if err != nil {
				h.writeError(conn, err)
				continue
			}
			if err := conn.WriteJSON(outboundMessage[domain.AnswerResult]{Type: "answerResult", Payload: result}); err != nil {
				return
			}
			progress, err := h.service.Progress(r.Context(), learnerID, assignmentID)
			if err == nil {
				if err := conn.WriteJSON(outboundMessage[domain.Progress]{Type: "progress", Payload: progress}); err != nil {
					return
				}
			}
			if !h.sendCurrentQuestion(conn, r, learnerID, assignmentID) {
				return
			}
		case "progress":
			progress, err := h.service.Progress(r.Context(), learnerID, assignmentID)
			if err != nil {
				h.writeError(conn, err)
				continue
			}
			if err := conn.WriteJSON(outboundMessage[domain.Progress]{Type: "progress", Payload: progress}); err != nil {
				return
			}
		default:
			h.writeError(conn, errors.New("unsupported message type"))
		}
	}
}

func (h *WSHandler) sendCurrentQuestion(conn *websocket.Conn, r *http.Request, learnerID, assignmentID string) bool {
	question, err := h.service.CurrentQuestion(r.Context(), learnerID, assignmentID)
	if err != nil {
		h.writeError(conn, err)
		return false
	}
	return conn.WriteJSON(outboundMessage[questionView]{Type: "question", Payload: viewOf(question)}) == nil
}

func (h *WSHandler) writeError(conn *websocket.Conn, err error) {
	_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
}
