// internal/models/purchase.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase is a buyer's acquisition of one item in one format.
type Purchase struct {
	BaseModel
	BuyerID        uuid.UUID       `json:"buyer_id" gorm:"type:uuid;not null;index:idx_purchases_buyer_item"`
	ItemID         uuid.UUID       `json:"item_id" gorm:"type:uuid;not null;index:idx_purchases_buyer_item"`
	ItemType       ItemType        `json:"item_type" gorm:"type:varchar(20);not null"`
	Format         ItemFormat      `json:"format" gorm:"type:varchar(10);not null;index:idx_purchases_buyer_item"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Currency       string          `json:"currency" gorm:"size:3;not null"`
	SellerID       uuid.UUID       `json:"seller_id" gorm:"type:uuid;not null;index"`
	SellerType     SellerType      `json:"seller_type" gorm:"type:varchar(20);not null"`
	Split          Split           `json:"commission" gorm:"embedded;embeddedPrefix:commission_"`
	PaymentMethod  string          `json:"payment_method" gorm:"size:30"`
	PaymentStatus  PurchaseStatus  `json:"payment_status" gorm:"type:varchar(20);not null;default:'pending';index"`
	EarningsStatus EarningsStatus  `json:"earnings_status" gorm:"type:varchar(10);not null;default:'pending'"`
	Tracker        string          `json:"transaction_reference" gorm:"size:128;index"`
	PaymentID      uuid.UUID       `json:"payment_id" gorm:"type:uuid;not null;uniqueIndex"`
}
