package alerts

import (
	"time"

	"github.com/google/uuid"
)

// Event types dispatched by the system.
const (
	EventChainIntegrityFailed = "trust.chain.integrity_failed"
	EventCollaboratorDown     = "trust.collaborator.unhealthy"
	EventCollaboratorUp       = "trust.collaborator.recovered"
)

// Target is one webhook endpoint. Deliveries are signed with Secret.
type Target struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

// Event is the JSON body POSTed to every target.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Delivery records the outcome of a single delivery attempt.
type Delivery struct {
	EventID    uuid.UUID
	URL        string
	StatusCode int
	Attempt    int
	Success    bool
	Err        string
}
