package domain

// QuestionType is the closed set of question difficulty tiers, ordered from
// easiest (Recall) to hardest (Synthesis). The integer value doubles as the
// catalog query parameter.
type QuestionType int

const (
	TypeRecall QuestionType = iota + 1
	TypeComprehension
	TypeApplication
	TypeAnalysis
	TypeSynthesis
)

// QuestionTypes lists all types in ascending difficulty order.
var QuestionTypes = []QuestionType{
	TypeRecall,
	TypeComprehension,
	TypeApplication,
	TypeAnalysis,
	TypeSynthesis,
}

func (t QuestionType) Valid() bool {
	return t >= TypeRecall && t <= TypeSynthesis
}

func (t QuestionType) String() string {
	switch t {
	case TypeRecall:
		return "recall"
	case TypeComprehension:
		return "comprehension"
	case TypeApplication:
		return "application"
	case TypeAnalysis:
		return "analysis"
	case TypeSynthesis:
		return "synthesis"
	default:
		return "unknown"
	}
}

// RecentWindowSize bounds the anti-repetition history kept per record.
const RecentWindowSize = 5

// ScoreRecord is the per (learner, assignment) performance state. TopicIDs
// and TopicScores are positionally mirrored: index i of one corresponds to
// index i of the other.
type ScoreRecord struct {
	AssignmentID      string   `json:"assignmentId"`
	LearnerID         string   `json:"learnerId"`
	TotalScore        int      `json:"totalScore"` // 0..100
	MaxScore          int      `json:"maxScore"`   // high-water mark of TotalScore, never decreases
	TopicIDs          []string `json:"topicIds"`
	TopicScores       []int    `json:"topicScores"`       // 0..100 each
	RecentQuestionIDs []string `json:"recentQuestionIds"` // oldest first, at most RecentWindowSize
	CurrentQuestionID string   `json:"currentQuestionId"`
}

// TopicIndex returns the position of topicID in TopicIDs, or -1.
func (r *ScoreRecord) TopicIndex(topicID string) int {
	for i, id := range r.TopicIDs {
		if id == topicID {
			return i
		}
	}
	return -1
}

// HasRecent reports whether questionID is inside the anti-repetition window.
func (r *ScoreRecord) HasRecent(questionID string) bool {
	for _, id := range r.RecentQuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// PushRecent appends questionID to the window, evicting the oldest entry
// once the window exceeds RecentWindowSize.
func (r *ScoreRecord) PushRecent(questionID string) {
	r.RecentQuestionIDs = append(r.RecentQuestionIDs, questionID)
	if len(r.RecentQuestionIDs) > RecentWindowSize {
		r.RecentQuestionIDs = r.RecentQuestionIDs[len(r.RecentQuestionIDs)-RecentWindowSize:]
	}
}

// Clone returns a deep copy so stores can hand out records without aliasing
// their internal state.
func (r *ScoreRecord) Clone() *ScoreRecord {
	cp := *r
	cp.TopicIDs = append([]string(nil), r.TopicIDs...)
	cp.TopicScores = append([]int(nil), r.TopicScores...)
	cp.RecentQuestionIDs = append([]string(nil), r.RecentQuestionIDs...)
	return &cp
}

// Assignment is the descriptor the engine consumes: an ordered topic list,
// the assignment type used for catalog lookups, and whether the deployment
// is hosted by an external LMS (drives grade reporting).
type Assignment struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	TopicIDs       []string `json:"topicIds"`
	PlatformHosted bool     `json:"platformHosted"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models a catalog item. TopicID and Type are the attributes the
// selector consults; Prompt/Options exist so the transport can serve and
// grade the question.
type Question struct {
	ID             string       `json:"id"`
	AssignmentType string       `json:"assignmentType"`
	TopicID        string       `json:"topicId"`
	Type           QuestionType `json:"questionType"`
	Prompt         string       `json:"prompt"`
	Options        []Option     `json:"options"`
}

// AnswerSubmission models the answer signal from clients.
type AnswerSubmission struct {
	QuestionID string
	OptionID   string
}

// AnswerResult summarizes the outcome of a submission for a single learner.
type AnswerResult struct {
	QuestionID     string `json:"questionId"`
	Correct        bool   `json:"correct"`
	Attributed     bool   `json:"attributed"`
	TotalScore     int    `json:"totalScore"`
	MaxScore       int    `json:"maxScore"`
	NextQuestionID string `json:"nextQuestionId"`
}

// TopicProgress pairs a topic with its current mastery estimate.
type TopicProgress struct {
	TopicID string `json:"topicId"`
	Score   int    `json:"score"`
}

// Progress is the read view presentation layers consume.
type Progress struct {
	AssignmentID      string          `json:"assignmentId"`
	LearnerID         string          `json:"learnerId"`
	TotalScore        int             `json:"totalScore"`
	MaxScore          int             `json:"maxScore"`
	Topics            []TopicProgress `json:"topics"`
	CurrentQuestionID string          `json:"currentQuestionId"`
}
