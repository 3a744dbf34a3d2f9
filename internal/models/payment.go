// internal/models/payment.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is the gateway-facing record of one attempt to collect funds.
type Payment struct {
	BaseModel
	BuyerID          uuid.UUID        `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID         uuid.UUID        `json:"seller_id" gorm:"type:uuid;not null;index"`
	SellerType       SellerType       `json:"seller_type" gorm:"type:varchar(20);not null"`
	ItemID           uuid.UUID        `json:"item_id" gorm:"type:uuid;not null"`
	ItemType         ItemType         `json:"item_type" gorm:"type:varchar(20);not null"`
	Format           ItemFormat       `json:"format" gorm:"type:varchar(10);not null"`
	Amount           decimal.Decimal  `json:"amount" gorm:"type:decimal(14,2);not null"`
	Currency         string           `json:"currency" gorm:"size:3;not null"`
	Split            Split            `json:"commission" gorm:"embedded;embeddedPrefix:commission_"`
	Gateway          string           `json:"gateway" gorm:"size:30;not null"`
	Tracker          string           `json:"tracker" gorm:"size:128;not null;uniqueIndex"`
	GatewayReference string           `json:"gateway_reference,omitempty" gorm:"size:128;index"`
	OrderID          string           `json:"order_id" gorm:"size:64;not null;uniqueIndex"`
	Status           PaymentStatus    `json:"status" gorm:"type:varchar(10);not null;default:'PENDING';index"`
	EarningsStatus   EarningsStatus   `json:"earnings_status" gorm:"type:varchar(10);not null;default:'pending'"`
	GatewayResponse  JSONB            `json:"gateway_response,omitempty" gorm:"type:jsonb"`
	CompletedVia     CompletionSource `json:"completed_via,omitempty" gorm:"type:varchar(20)"`
	CompletedAt      *time.Time       `json:"completed_at"`
	// hosted session details, kept so an open checkout can be handed out again
	CheckoutURL  string `json:"-" gorm:"size:1024"`
	ClientSecret string `json:"-" gorm:"size:255"`
}

// Split is the seller/platform breakdown of a gross amount.
type Split struct {
	SellerAmount     decimal.Decimal `json:"seller_amount" gorm:"type:decimal(14,2);not null;default:0"`
	SuperadminAmount decimal.Decimal `json:"superadmin_amount" gorm:"type:decimal(14,2);not null;default:0"`
	Percentage       decimal.Decimal `json:"commission_percentage" gorm:"type:decimal(5,2);not null;default:0"`
}

// Reconciles reports whether the split adds back up to total.
func (s Split) Reconciles(total decimal.Decimal) bool {
	return s.SellerAmount.Add(s.SuperadminAmount).Equal(total)
}
