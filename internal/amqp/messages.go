package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// KeyChangedMessage tells the sync worker that a user's local key was
// written. The worker reads the current value itself.
type KeyChangedMessage struct {
	UserID    string    `json:"user_id"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

var errIncompleteMessage = errors.New("message needs user_id and key")

func NewKeyChangedMessage(userID, key string) *KeyChangedMessage {
	return &KeyChangedMessage{
		UserID:    userID,
		Key:       key,
		Timestamp: time.Now().UTC(),
	}
}

func (m *KeyChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// KeyChangedMessageFromJSON decodes a message and rejects ones missing the
// user or key.
func KeyChangedMessageFromJSON(data []byte) (*KeyChangedMessage, error) {
	var msg KeyChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.UserID) == "" || strings.TrimSpace(msg.Key) == "" {
		return nil, errIncompleteMessage
	}
	return &msg, nil
}
