package webhook

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventStatus is the terminal disposition of a received webhook event.
type EventStatus string

const (
	// EventProcessed means the event matched a payment and was applied.
	EventProcessed EventStatus = "processed"
	// EventIgnored means the event type is not one we act on.
	EventIgnored EventStatus = "ignored"
	// EventUnmatched means no payment matched the correlation id. The event
	// is kept for audit and acknowledged so the provider stops redelivering.
	EventUnmatched EventStatus = "unmatched"
	// EventRetrying means applying the event hit a transient error and the
	// sweep worker will retry it.
	EventRetrying EventStatus = "retrying"
	// EventAbandoned means retries were exhausted.
	EventAbandoned EventStatus = "abandoned"
)

type WebhookEvent struct {
	EventID         snowflake.ID   `gorm:"column:event_id;primaryKey" json:"event_id"`
	Provider        string         `gorm:"column:provider;uniqueIndex:idx_provider_event" json:"provider"`
	ProviderEventID string         `gorm:"column:provider_event_id;uniqueIndex:idx_provider_event" json:"provider_event_id"`
	EventType       string         `gorm:"column:event_type" json:"event_type"`
	CorrelationID   string         `gorm:"column:correlation_id;index" json:"correlation_id"`
	Payload         datatypes.JSON `gorm:"column:payload" json:"payload"`
	Status          EventStatus    `gorm:"column:status;index" json:"status"`
	RetryCount      int            `gorm:"column:retry_count" json:"retry_count"`
	LastError       string         `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
