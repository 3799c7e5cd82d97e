package amqp

import (
	"encoding/json"
	"time"
)

// Action is the kind of change that produced a message.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
	ActionResync  Action = "resync"
)

// SubscriptionChanged is a lightweight notification that a user's
// subscriptions changed. The worker reloads the full list from the store.
type SubscriptionChanged struct {
	UserID         string    `json:"userId"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	Action         Action    `json:"action"`
	Version        int64     `json:"version"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewSubscriptionChanged creates a message stamped with the current time.
func NewSubscriptionChanged(userID, subscriptionID string, action Action, version int64) *SubscriptionChanged {
	return &SubscriptionChanged{
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Action:         action,
		Version:        version,
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SubscriptionChanged) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SubscriptionChangedFromJSON creates a message from JSON bytes
func SubscriptionChangedFromJSON(data []byte) (*SubscriptionChanged, error) {
	var msg SubscriptionChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
