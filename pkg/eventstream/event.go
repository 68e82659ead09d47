package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeChatTurn is emitted after an assistant reply finished streaming.
	EventTypeChatTurn = "study.chat.turn"
)

// ChatTurnEvent is a transport-neutral event payload for a completed chat turn.
type ChatTurnEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Turn          ChatTurn    `json:"turn"`
}

// EventSource identifies the client that produced the event.
type EventSource struct {
	Client  string `json:"client"`
	Version string `json:"version,omitempty"`
}

// ChatTurn describes one user message and the streamed reply to it.
type ChatTurn struct {
	ConversationID   string    `json:"conversation_id"`
	UserID           string    `json:"user_id"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	Completion       string    `json:"completion"`
	Events           int       `json:"events"`
	MalformedFrames  int       `json:"malformed_frames"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	DurationMs       int64     `json:"duration_ms"`
}

// NewChatTurnEvent wraps turn in a new event with a fresh id.
func NewChatTurnEvent(source EventSource, turn ChatTurn) *ChatTurnEvent {
	if turn.DurationMs == 0 && !turn.StartedAt.IsZero() && !turn.CompletedAt.IsZero() {
		turn.DurationMs = turn.CompletedAt.Sub(turn.StartedAt).Milliseconds()
	}

	return &ChatTurnEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeChatTurn,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Turn:          turn,
	}
}
