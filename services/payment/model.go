package payment

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status is the payment state machine position.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
// failed is re-enterable through an explicit retry, completed and cancelled
// are final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Type classifies what the money movement settles. Classification only, it
// does not affect processing.
type Type string

const (
	TypeBasePayout       Type = "base_payout"
	TypeGMVCommission    Type = "gmv_commission"
	TypeBonus            Type = "bonus"
	TypeLeaderboardBonus Type = "leaderboard_bonus"
	TypeReferralBonus    Type = "referral_bonus"
	TypeManualAdjustment Type = "manual_adjustment"
)

func (t Type) Valid() bool {
	switch t {
	case TypeBasePayout, TypeGMVCommission, TypeBonus, TypeLeaderboardBonus, TypeReferralBonus, TypeManualAdjustment:
		return true
	}
	return false
}

// Method selects the rail the money moves over.
type Method string

const (
	MethodStripe       Method = "stripe"
	MethodFanbasis     Method = "fanbasis"
	MethodManual       Method = "manual"
	MethodBankTransfer Method = "bank_transfer"
)

func (m Method) Valid() bool {
	switch m {
	case MethodStripe, MethodFanbasis, MethodManual, MethodBankTransfer:
		return true
	}
	return false
}

// Payment is one attempted money movement. A failed payment retried by an
// operator re-enters the machine under the same row, not a new one.
type Payment struct {
	PaymentID             snowflake.ID    `gorm:"column:payment_id;primaryKey;autoIncrement:false" json:"payment_id"`
	CreatorID             string          `gorm:"column:creator_id;index;not null" json:"creator_id"`
	CampaignID            *string         `gorm:"column:campaign_id;index" json:"campaign_id,omitempty"`
	EarningID             *snowflake.ID   `gorm:"column:earning_id;index" json:"earning_id,omitempty"`
	Amount                decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	PaymentType           Type            `gorm:"column:payment_type;not null" json:"payment_type"`
	Method                Method          `gorm:"column:payment_method;not null" json:"payment_method"`
	Status                Status          `gorm:"column:status;index;not null;default:'pending'" json:"status"`
	ProviderAccount       string          `gorm:"column:provider_account" json:"provider_account,omitempty"`
	ExternalTransactionID string          `gorm:"column:external_transaction_id;index" json:"external_transaction_id,omitempty"`
	ProviderReference     string          `gorm:"column:provider_reference;index" json:"provider_reference,omitempty"`
	FailureReason         string          `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	InitiatedAt           *time.Time      `gorm:"column:initiated_at" json:"initiated_at,omitempty"`
	ProcessedAt           *time.Time      `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CompletedAt           *time.Time      `gorm:"column:completed_at" json:"completed_at,omitempty"`
	FailedAt              *time.Time      `gorm:"column:failed_at" json:"failed_at,omitempty"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// Application records that a completed payment has been applied to the
// ledger. One row per payment; the primary key makes re-application a
// conflict instead of a double count.
type Application struct {
	PaymentID snowflake.ID    `gorm:"column:payment_id;primaryKey;autoIncrement:false" json:"payment_id"`
	EarningID snowflake.ID    `gorm:"column:earning_id;index;not null" json:"earning_id"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	AppliedAt time.Time       `gorm:"column:applied_at;autoCreateTime" json:"applied_at"`
}

func (Application) TableName() string {
	return "payment_applications"
}
