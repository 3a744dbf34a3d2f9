// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired      = "auth.required"
	KeyAuthInvalidToken  = "auth.invalid_token"
	KeyAuthTokenExpired  = "auth.token_expired"
	KeyAdminAccessDenied = "admin.access_denied"
	KeySellerOnly        = "auth.seller_only"

	// Payments
	KeyPaymentSuccess      = "payment.success"
	KeyPaymentFailed       = "payment.failed"
	KeyPaymentPending      = "payment.pending"
	KeyPaymentNotFound     = "payment.not_found"
	KeyPaymentAlreadyOwned = "payment.already_owned"
	KeyPaymentGatewayError = "payment.gateway_error"
	KeyPaymentMismatch     = "payment.mismatch"
	KeyWebhookInvalid      = "payment.webhook_invalid"

	// Wallet
	KeyWalletInsufficient      = "wallet.insufficient_balance"
	KeyWalletBelowMinimum      = "wallet.below_minimum"
	KeyPayoutRequested         = "payout.requested"
	KeyPayoutNotFound          = "payout.not_found"
	KeyPayoutInvalidState      = "payout.invalid_state"
	KeyPayoutMethodConnected   = "payout_method.connected"
	KeyPayoutMethodNotFound    = "payout_method.not_found"
	KeyPayoutMethodTaken       = "payout_method.taken"
	KeyPayoutMethodNotVerified = "payout_method.not_verified"

	// Commissions
	KeyCommissionNotFound = "commission.not_found"
	KeyCommissionPaidOut  = "commission.already_paid_out"

	// Generic
	KeyNotFound           = "common.not_found"
	KeyConflict           = "common.conflict"
	KeyInvalidState       = "common.invalid_state"
	KeyRateLimited        = "common.rate_limited"
	KeyInternalError      = "common.internal_error"
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
)
