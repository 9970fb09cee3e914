package services

import "errors"

// Sentinel errors shared across services. Handlers map these onto HTTP
// status codes in one place.
var (
	ErrForbidden = errors.New("actor is not allowed to perform this action")

	ErrTournamentFull     = errors.New("tournament has reached its participant limit")
	ErrRegistrationClosed = errors.New("tournament registration is not open")
	ErrAlreadyRegistered  = errors.New("participant is already registered for this tournament")
	ErrNotEnoughPlayers   = errors.New("tournament does not have enough participants to start")
	ErrInvalidTransition  = errors.New("status transition is not allowed")
	ErrMatchesUnfinished  = errors.New("tournament still has unfinished matches")

	ErrInvalidAmount       = errors.New("amount must be a positive number of minor units")
	ErrInsufficientFunds   = errors.New("wallet balance is insufficient")
	ErrIdempotencyConflict = errors.New("idempotency key was already used with different parameters")
	ErrNotRefundable       = errors.New("transaction is not a refundable completed debit")
	ErrPrizeExceedsPool    = errors.New("prize payouts exceed the tournament prize pool")

	ErrNotParticipant     = errors.New("actor is not a participant of this match")
	ErrInvalidMatchStatus = errors.New("match is not in a status that allows this operation")
	ErrInvalidScore       = errors.New("submitted score is invalid")
	ErrMissingParticipant = errors.New("match does not have both participants assigned")
	ErrSelfConfirmation   = errors.New("a result cannot be confirmed by the user who submitted it")

	ErrAlreadyResolved   = errors.New("dispute ticket is already resolved")
	ErrInvalidResolution = errors.New("resolution outcome is not a valid dispute resolution")
	ErrDisputeWindowShut = errors.New("match result can no longer be disputed")
)

// ValidationError carries a field-level message for bad input. It is
// distinct from the sentinels so handlers can return the message verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func validationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
