package domain

import "errors"

// Business outcomes. Callers match them with errors.Is; they are never retried.
var (
	ErrNotFound              = errors.New("record not found")
	ErrValidation            = errors.New("validation failed")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrWouldGoNegative       = errors.New("credit balance would go negative")
	ErrAlreadyProcessed      = errors.New("transaction already processed")
	ErrOverReturn            = errors.New("returned quantity exceeds outstanding quantity")
	ErrMemberSuspended       = errors.New("member is suspended")
)

var (
	ErrLedgerMismatch  = errors.New("ledger entries do not reconcile with member credit")
	ErrImmutableLedger = errors.New("credit transactions are append-only")
)
