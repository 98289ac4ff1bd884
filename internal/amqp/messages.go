package amqp

import (
	"encoding/json"
	"time"
)

// RefreshMessage announces that the CPI dataset was replaced with a
// fresh download. Consumers re-read the dataset from storage, the
// message carries only summary counts.
type RefreshMessage struct {
	Observations int       `json:"observations"`
	Categories   int       `json:"categories"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewRefreshMessage creates a refresh notification with the dataset counts
func NewRefreshMessage(observations, categories int) *RefreshMessage {
	return &RefreshMessage{
		Observations: observations,
		Categories:   categories,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshMessageFromJSON creates a message from JSON bytes
func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
