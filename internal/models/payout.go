// internal/models/payout.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payout is a withdrawal request against a wallet's available balance.
type Payout struct {
	BaseModel
	UserID     uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	Reference  string          `json:"reference" gorm:"size:40;not null;uniqueIndex"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Currency   string          `json:"currency" gorm:"size:3;not null"`
	Method     PayoutMethod    `json:"method" gorm:"type:varchar(20);not null"`
	Recipient  JSONB           `json:"recipient" gorm:"type:jsonb"`
	Status     PayoutStatus    `json:"status" gorm:"type:varchar(10);not null;default:'PENDING';index"`
	Notes      string          `json:"notes,omitempty" gorm:"type:text"`
	ResolvedAt *time.Time      `json:"resolved_at"`
	ResolvedBy *uuid.UUID      `json:"resolved_by" gorm:"type:uuid"`
}
