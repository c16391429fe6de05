package notify

import "time"

// Notification is one message shown to a user, kept as in-app history.
type Notification struct {
	ID        string            `json:"id"`
	AccountID string            `json:"userId"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Result counts per-token push outcomes of one delivery.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
