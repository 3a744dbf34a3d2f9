// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is the minimal projection of an account the ledger needs. Profile and
// credential columns belong to the auth service and are not mapped here.
type User struct {
	BaseModel
	Username string   `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email    string   `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Role     UserRole `json:"role" gorm:"type:varchar(20);not null;index"`
	Wallet   Wallet   `json:"wallet" gorm:"embedded;embeddedPrefix:wallet_"`

	// Relationships
	PayoutAccounts []PayoutAccount `json:"payout_accounts,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) IsPlatform() bool {
	return u.Role == UserRoleSuperadmin
}

// SellerType reports how a sale by this user is split.
func (u *User) SellerType() SellerType {
	if u.IsPlatform() {
		return SellerTypeSuperadmin
	}
	return SellerTypeAdmin
}

// Wallet holds running balances. TotalEarnings only grows; funds move
// pending -> available -> withdrawn.
type Wallet struct {
	TotalEarnings    decimal.Decimal `json:"total_earnings" gorm:"type:decimal(14,2);not null;default:0"`
	PendingBalance   decimal.Decimal `json:"pending_balance" gorm:"type:decimal(14,2);not null;default:0"`
	AvailableBalance decimal.Decimal `json:"available_balance" gorm:"type:decimal(14,2);not null;default:0"`
	Currency         string          `json:"currency" gorm:"size:3;not null;default:'PKR'"`
}

// PayoutAccount is a connected withdrawal destination for one method.
type PayoutAccount struct {
	BaseModel
	UserID        uuid.UUID    `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_payout_accounts_user_method"`
	Method        PayoutMethod `json:"method" gorm:"type:varchar(20);not null;uniqueIndex:idx_payout_accounts_user_method;uniqueIndex:idx_payout_accounts_method_account"`
	AccountNumber string       `json:"account_number" gorm:"size:34;not null;uniqueIndex:idx_payout_accounts_method_account"`
	AccountTitle  string       `json:"account_title" gorm:"size:100;not null"`
	BankName      string       `json:"bank_name,omitempty" gorm:"size:100"`
	IBAN          string       `json:"iban,omitempty" gorm:"size:34"`
	Verified      bool         `json:"verified" gorm:"not null;default:false"`
	VerifiedAt    *time.Time   `json:"verified_at"`
	VerifiedBy    *uuid.UUID   `json:"verified_by" gorm:"type:uuid"`
}

// Snapshot is the recipient copy stored on a payout so later edits to the
// account do not rewrite history.
func (a *PayoutAccount) Snapshot() JSONB {
	snap := JSONB{
		"method":         string(a.Method),
		"account_number": a.AccountNumber,
		"account_title":  a.AccountTitle,
	}
	if a.BankName != "" {
		snap["bank_name"] = a.BankName
	}
	if a.IBAN != "" {
		snap["iban"] = a.IBAN
	}
	return snap
}
