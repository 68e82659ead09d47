package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ID is an identifier that services send either as a JSON number or as a
// string. It is always held as a string.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("id must be a string or number: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// String returns the identifier as a string.
func (id ID) String() string {
	return string(id)
}

// Timestamp is an ISO-8601 timestamp as produced by Python's
// datetime.isoformat(), which omits the zone for naive datetimes.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON parses ISO-8601 strings and accepts null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}

	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON writes the timestamp as RFC 3339, or null when zero.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Token is the auth service response to register and login.
type Token struct {
	Token    string `json:"token"`
	UserID   ID     `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// User is the authenticated user returned by the auth service.
type User struct {
	ID        ID        `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt Timestamp `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// Conversation is a chat conversation summary.
type Conversation struct {
	ID           ID        `json:"id"`
	Title        string    `json:"title"`
	LastActive   Timestamp `json:"last_active"`
	CreatedAt    Timestamp `json:"created_at"`
	LastMessage  string    `json:"last_message"`
	MessageCount int       `json:"message_count"`
}

// Message is one stored chat message.
type Message struct {
	ID        ID        `json:"id"`
	Message   string    `json:"message"`
	Role      string    `json:"role"`
	Timestamp Timestamp `json:"timestamp"`
}

// ConversationHistory is a conversation with its messages.
type ConversationHistory struct {
	ConversationID ID        `json:"conversation_id"`
	Title          string    `json:"title"`
	Messages       []Message `json:"messages"`
}

// Document is a document stored by the document service.
type Document struct {
	ID             ID        `json:"id"`
	Filename       string    `json:"filename"`
	FileType       string    `json:"file_type"`
	S3URL          string    `json:"s3_url,omitempty"`
	ContentPreview string    `json:"content_preview,omitempty"`
	UploadedAt     Timestamp `json:"uploaded_at"`
	Processed      bool      `json:"processed"`
}

// UploadResult is the document service response to an upload.
type UploadResult struct {
	ID       ID     `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// Notes are the generated study notes for a document. Ready is false while
// the document is still being processed.
type Notes struct {
	Notes     *string   `json:"notes"`
	Summary   string    `json:"summary"`
	KeyPoints []string  `json:"key_points"`
	CreatedAt Timestamp `json:"created_at"`
	Message   string    `json:"message,omitempty"`
}

// Ready reports whether notes have been generated.
func (n *Notes) Ready() bool {
	return n != nil && n.Notes != nil
}

// Question types understood by the quiz service.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
)

// QuizRequest asks the quiz service to generate a quiz from a document.
type QuizRequest struct {
	DocumentID    string   `json:"document_id"`
	NumQuestions  int      `json:"num_questions"`
	QuestionTypes []string `json:"question_types"`
}

// GeneratedQuiz is the quiz service response to a generate request.
type GeneratedQuiz struct {
	QuizID       ID     `json:"quiz_id"`
	Title        string `json:"title"`
	NumQuestions int    `json:"num_questions"`
	Status       string `json:"status"`
}

// Question is a quiz question with the answer withheld.
type Question struct {
	ID       int      `json:"id"`
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// Quiz is a quiz ready to be taken.
type Quiz struct {
	ID        ID         `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt Timestamp  `json:"created_at"`
}

// Answer is one answer of a quiz submission.
type Answer struct {
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

// Feedback grades one answered question.
type Feedback struct {
	QuestionID    int    `json:"question_id"`
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Explanation   string `json:"explanation"`
}

// QuizResult is the graded result of a quiz submission.
type QuizResult struct {
	Score          float64    `json:"score"`
	CorrectCount   int        `json:"correct_count"`
	TotalQuestions int        `json:"total_questions"`
	Feedback       []Feedback `json:"feedback"`
	SubmittedAt    Timestamp  `json:"submitted_at"`
}

// QuizAttempt is one entry of a user's quiz history.
type QuizAttempt struct {
	QuizID      ID        `json:"quiz_id"`
	Title       string    `json:"title"`
	Score       float64   `json:"score"`
	SubmittedAt Timestamp `json:"submitted_at"`
}

// Health is a service health report. Fields not reported by a service are
// left empty.
type Health struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	AI       string `json:"gemini_ai,omitempty"`
	Database string `json:"database,omitempty"`
}

// statusResponse is the {"status": ...} body of mutating endpoints.
type statusResponse struct {
	Status  string `json:"status"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}
