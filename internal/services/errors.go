// internal/services/errors.go
package services

import (
	"errors"
	"fmt"

	"github.com/javajoker/earnings-ledger/internal/store"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrGatewayVerification = errors.New("gateway verification failed")
	ErrDuplicateCompletion = errors.New("completion already processed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation failed")
)

// storeErr turns storage sentinels into service sentinels and wraps the rest.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
