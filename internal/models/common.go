// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnsureID assigns a fresh id when the record has none yet. Postgres fills the
// column default on insert, but callers that link records inside one
// transaction need the id before the row exists.
func (b *BaseModel) EnsureID() {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserRole string

const (
	UserRoleBuyer      UserRole = "buyer"
	UserRoleAdmin      UserRole = "admin"
	UserRoleSuperadmin UserRole = "superadmin"
)

type SellerType string

const (
	SellerTypeAdmin      SellerType = "admin"
	SellerTypeSuperadmin SellerType = "superadmin"
)

func (t SellerType) Valid() bool {
	return t == SellerTypeAdmin || t == SellerTypeSuperadmin
}

type ItemType string

const (
	ItemTypeBook     ItemType = "book"
	ItemTypeJudgment ItemType = "judgment"
)

type ItemFormat string

const (
	ItemFormatText ItemFormat = "text"
	ItemFormatPDF  ItemFormat = "pdf"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
	// paid for an item the buyer already owned; money goes back, nothing is credited
	PurchaseStatusRefundPending PurchaseStatus = "refund_pending"
)

type EarningsStatus string

const (
	EarningsStatusPending   EarningsStatus = "pending"
	EarningsStatusProcessed EarningsStatus = "processed"
	EarningsStatusRefundDue EarningsStatus = "refund_due"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

type CommissionStatus string

const (
	CommissionStatusProcessed CommissionStatus = "PROCESSED"
	CommissionStatusPaidOut   CommissionStatus = "PAID_OUT"
)

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "PENDING"
	PayoutStatusApproved  PayoutStatus = "APPROVED"
	PayoutStatusCompleted PayoutStatus = "COMPLETED"
	PayoutStatusRejected  PayoutStatus = "REJECTED"
)

type PayoutMethod string

const (
	PayoutMethodJazzCash  PayoutMethod = "jazzcash"
	PayoutMethodEasypaisa PayoutMethod = "easypaisa"
	PayoutMethodBank      PayoutMethod = "bank"
)

func (m PayoutMethod) IsMobileWallet() bool {
	return m == PayoutMethodJazzCash || m == PayoutMethodEasypaisa
}

type MaturationStatus string

const (
	MaturationStatusPending MaturationStatus = "PENDING"
	MaturationStatusMatured MaturationStatus = "MATURED"
)

// CompletionSource names the entry point that delivered a completion event.
type CompletionSource string

const (
	CompletionSourceReturnURL    CompletionSource = "return_url"
	CompletionSourceWebhook      CompletionSource = "webhook"
	CompletionSourceVerifyReturn CompletionSource = "verify_return"
	CompletionSourceManual       CompletionSource = "manual"
)
