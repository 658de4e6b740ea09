package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Advice request kinds.
const (
	KindAnalysis = "analysis"
	KindChat     = "chat"
)

// AdviceRequestMessage asks a worker to run an advice flow for a user and
// append the result to their conversation.
type AdviceRequestMessage struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Query     string    `json:"query,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAdviceRequestMessage creates a message with a fresh request id.
func NewAdviceRequestMessage(userID, kind, query string) *AdviceRequestMessage {
	return &AdviceRequestMessage{
		RequestID: uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Query:     query,
		Timestamp: time.Now(),
	}
}

// Validate checks the fields a worker needs.
func (m *AdviceRequestMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return errors.New("missing user id")
	}
	switch m.Kind {
	case KindAnalysis:
	case KindChat:
		if strings.TrimSpace(m.Query) == "" {
			return errors.New("chat request without query")
		}
	default:
		return fmt.Errorf("unknown advice kind %q", m.Kind)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *AdviceRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AdviceRequestMessageFromJSON parses and validates a message.
func AdviceRequestMessageFromJSON(data []byte) (*AdviceRequestMessage, error) {
	var msg AdviceRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
