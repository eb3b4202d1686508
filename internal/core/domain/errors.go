package domain

import "errors"

// Every failure the transfer engine can surface is one of these named
// conditions. Handlers branch on them with errors.Is; none of them is
// ever collapsed into a generic failure, because the caller's next move
// (fix input, retry, contact support) differs per kind.
var (
	// ErrInvalidAmount: the amount is non-positive, non-numeric, or finer
	// than a cent. Rejected before any store access.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrReceiverNotFound: the receiver email matches no registered user.
	ErrReceiverNotFound = errors.New("receiver not found")

	// ErrNoReceiverAccount: the receiver exists but has no linked account
	// to deposit into.
	ErrNoReceiverAccount = errors.New("receiver has no active account")

	// ErrAccountNotFound: a point lookup by account id matched nothing.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUserNotFound: a point lookup by user id or email matched nothing.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotAccountOwner: the sender account exists but is not owned by
	// the requesting user.
	ErrNotAccountOwner = errors.New("account not owned by sender")

	// ErrSelfTransfer: sender and receiver resolve to the same account.
	ErrSelfTransfer = errors.New("cannot transfer to the same account")

	// ErrInsufficientFunds: the sender balance is below the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBalanceConflict: a conditional balance write lost to a concurrent
	// writer. Storage-level; the engine retries it, callers never see it
	// directly.
	ErrBalanceConflict = errors.New("balance changed concurrently")

	// ErrTransferFailedRefunded: the credit step failed after a successful
	// debit and the debit was compensated. The sender's balance is back at
	// its pre-transfer value; no transaction record exists.
	ErrTransferFailedRefunded = errors.New("transfer failed, funds refunded")

	// ErrResidualDebit: the credit failed AND the compensating re-credit
	// of the sender failed. The sender carries a debit with no matching
	// credit. Operator attention required; never retried blindly.
	ErrResidualDebit = errors.New("transfer failed and refund did not complete")

	// ErrStoreUnavailable: an infrastructure failure (including timeout)
	// before any balance was mutated. Safe for the caller to retry.
	ErrStoreUnavailable = errors.New("account store unavailable")

	// ErrPotNotFound: a savings pot lookup matched nothing.
	ErrPotNotFound = errors.New("pot not found")
)

// Retryable reports whether the caller may safely re-issue the request.
// Only failures that happened before any balance mutation qualify; once a
// debit has been applied a blind retry risks a double-debit, so the
// compensated and residual outcomes are terminal here.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
