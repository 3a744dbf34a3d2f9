// internal/models/maturation.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Maturation is a scheduled move of funds from pending to available.
type Maturation struct {
	BaseModel
	UserID       uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_maturations_commission_user"`
	CommissionID uuid.UUID        `json:"commission_id" gorm:"type:uuid;not null;uniqueIndex:idx_maturations_commission_user"`
	Amount       decimal.Decimal  `json:"amount" gorm:"type:decimal(14,2);not null"`
	DueAt        time.Time        `json:"due_at" gorm:"not null;index:idx_maturations_due"`
	Status       MaturationStatus `json:"status" gorm:"type:varchar(10);not null;default:'PENDING';index:idx_maturations_due"`
	MaturedAt    *time.Time       `json:"matured_at"`
}
