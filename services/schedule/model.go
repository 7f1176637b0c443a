package schedule

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"settlement-engine/services/payment"
)

// PaymentSchedule configures when and how a campaign pays its creators out.
type PaymentSchedule struct {
	ScheduleID                     snowflake.ID     `gorm:"column:schedule_id;primaryKey" json:"schedule_id"`
	CampaignID                     string           `gorm:"column:campaign_id;uniqueIndex" json:"campaign_id"`
	IsAutomated                    bool             `gorm:"column:is_automated" json:"is_automated"`
	TriggerOnDeliverableCompletion bool             `gorm:"column:trigger_on_deliverable_completion" json:"trigger_on_deliverable_completion"`
	TriggerOnGMVMilestone          bool             `gorm:"column:trigger_on_gmv_milestone" json:"trigger_on_gmv_milestone"`
	GMVMilestoneAmount             *decimal.Decimal `gorm:"column:gmv_milestone_amount;type:decimal(12,2)" json:"gmv_milestone_amount,omitempty"`
	TriggerOnCampaignCompletion    bool             `gorm:"column:trigger_on_campaign_completion" json:"trigger_on_campaign_completion"`
	TriggerExpression              string           `gorm:"column:trigger_expression" json:"trigger_expression,omitempty"`
	PaymentDelayDays               int              `gorm:"column:payment_delay_days" json:"payment_delay_days"`
	MinimumPayoutAmount            decimal.Decimal  `gorm:"column:minimum_payout_amount;type:decimal(12,2)" json:"minimum_payout_amount"`
	PaymentMethod                  payment.Method   `gorm:"column:payment_method" json:"payment_method"`
	CreatedAt                      time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt                      time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (PaymentSchedule) TableName() string { return "payment_schedules" }

// EligibleCreator is one creator's payable position under a campaign.
type EligibleCreator struct {
	CreatorID     string          `json:"creator_id"`
	EarningID     snowflake.ID    `json:"earning_id"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	EligibleAt    time.Time       `json:"eligible_at"`
}

// ExecutionResult is the per-creator outcome of a batch run. One creator
// failing never aborts the batch.
type ExecutionResult struct {
	CreatorID string          `json:"creator_id"`
	PaymentID *snowflake.ID   `json:"payment_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
}

const (
	ResultDispatched = "dispatched"
	ResultFailed     = "failed"
)
