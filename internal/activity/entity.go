package activity

import "time"

// Activity is one audit-trail entry describing an action a user took.
type Activity struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	UserID      string            `json:"userId"`
	EntityType  string            `json:"entityType"`
	EntityID    string            `json:"entityId"`
	ProjectID   string            `json:"projectId,omitempty"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}
