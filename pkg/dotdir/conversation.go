package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	conversationFile = "conversation.json"
)

// ConversationState is the persisted pointer to the active chat
// conversation on the chat service.
type ConversationState struct {
	// ID is the chat service conversation id.
	ID string `json:"id"`

	// Title is the conversation title as last seen by this client.
	Title string `json:"title"`

	// UserID is the user the conversation belongs to. Callers compare it
	// with the current session before resuming.
	UserID string `json:"user_id"`

	// UpdatedAt is when this client last used the conversation.
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadConversation loads the active conversation from .study/conversation.json.
// Returns nil, nil if no conversation is active.
func (m *Manager) LoadConversation(overrideDir string) (*ConversationState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, conversationFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading conversation state: %w", err)
	}

	state := &ConversationState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing conversation state: %w", err)
	}

	if state.ID == "" {
		return nil, nil
	}

	return state, nil
}

// SaveConversation persists state as the active conversation.
func (m *Manager) SaveConversation(state *ConversationState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil conversation state")
	}
	if state.ID == "" {
		return errors.New("cannot save conversation state without an id")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling conversation state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, conversationFile), data, 0o600); err != nil {
		return fmt.Errorf("writing conversation state: %w", err)
	}

	return nil
}

// ClearConversation removes the active conversation so the next chat
// session starts a new one. Returns nil if nothing was active.
func (m *Manager) ClearConversation(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, conversationFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing conversation state: %w", err)
	}

	return nil
}
