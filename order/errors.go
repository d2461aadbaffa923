package order

import "errors"

var (
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrInvalidAmount      = errors.New("invalid order amount")
	ErrWrongNetwork       = errors.New("wallet is on the wrong network")
	ErrSignatureRejected  = errors.New("signature rejected")
	ErrSubmissionFailed   = errors.New("order submission failed")
	ErrSubmissionInFlight = errors.New("another submission is already in flight")
)

// RejectionError is a structured rejection from the submission service: the
// order reached the backend and was refused for the given reason.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "order rejected: " + e.Reason
}
