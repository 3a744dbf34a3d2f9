// internal/models/commission.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Commission is the audit record of one completed sale's split. Amounts are
// never edited after creation; only Status, PaidAt and Notes move.
type Commission struct {
	BaseModel
	PaymentID        uuid.UUID        `json:"payment_id" gorm:"type:uuid;not null;uniqueIndex"`
	PurchaseID       uuid.UUID        `json:"purchase_id" gorm:"type:uuid;not null;index"`
	ItemID           uuid.UUID        `json:"item_id" gorm:"type:uuid;not null"`
	ItemType         ItemType         `json:"item_type" gorm:"type:varchar(20);not null"`
	BuyerID          uuid.UUID        `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID         uuid.UUID        `json:"seller_id" gorm:"type:uuid;not null;index"`
	SellerType       SellerType       `json:"seller_type" gorm:"type:varchar(20);not null"`
	TotalAmount      decimal.Decimal  `json:"total_amount" gorm:"type:decimal(14,2);not null"`
	SellerAmount     decimal.Decimal  `json:"seller_amount" gorm:"type:decimal(14,2);not null"`
	SuperadminAmount decimal.Decimal  `json:"superadmin_amount" gorm:"type:decimal(14,2);not null"`
	Percentage       decimal.Decimal  `json:"commission_percentage" gorm:"type:decimal(5,2);not null"`
	Currency         string           `json:"currency" gorm:"size:3;not null"`
	Status           CommissionStatus `json:"status" gorm:"type:varchar(10);not null;default:'PROCESSED';index"`
	ProcessedAt      time.Time        `json:"processed_at" gorm:"not null;index"`
	PaidAt           *time.Time       `json:"paid_at"`
	Notes            pq.StringArray   `json:"notes" gorm:"type:text[]"`
}
