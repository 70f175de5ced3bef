package ledger

import (
	"errors"

	"github.com/suspectuso/tariff-ledger/internal/catalog"
)

// Errors returned by ledger operations. Match them with errors.Is.
var (
	ErrInvalidTariff               = catalog.ErrInvalidTariff
	ErrPayloadTooLarge             = errors.New("encrypted data too large")
	ErrAllowanceNotSet             = errors.New("token allowance not set")
	ErrInsufficientBalance         = errors.New("insufficient token balance")
	ErrTransferFailed              = errors.New("token transfer failed")
	ErrUnauthorized                = errors.New("caller is not the owner")
	ErrZeroAmount                  = errors.New("amount must be greater than 0")
	ErrInsufficientContractBalance = errors.New("insufficient ledger balance")
	ErrIndexOutOfRange             = errors.New("payment index out of range")
	ErrReentrantCall               = errors.New("reentrant ledger call")
)

// failureReason returns the metric label for a ledger error
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTariff):
		return "invalid_tariff"
	case errors.Is(err, ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, ErrAllowanceNotSet):
		return "allowance_not_set"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ErrInsufficientContractBalance):
		return "insufficient_ledger_balance"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant_call"
	default:
		return "internal"
	}
}
