package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/citadelhq/transferd/internal/core/domain"
)

// Config carries the engine's tuning knobs explicitly; the engine never
// reads ambient environment state.
type Config struct {
	// CallTimeout bounds each individual store call. Zero means no bound.
	CallTimeout time.Duration

	// MaxRetries bounds how often a conditional balance write is retried
	// after losing to a concurrent writer.
	MaxRetries int
}

// DefaultConfig matches what the API service runs with.
func DefaultConfig() Config {
	return Config{
		CallTimeout: 5 * time.Second,
		MaxRetries:  3,
	}
}

// Request describes one P2P transfer. Amount is in minor units.
type Request struct {
	SenderID        uuid.UUID
	SenderAccountID uuid.UUID
	ReceiverEmail   string
	Amount          int64
	Note            string
}

// Engine executes P2P balance movements between two accounts held in the
// store. Every invocation is independent; the engine holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	store Store
	cfg   Config
	log   *slog.Logger
}

func NewEngine(store Store, cfg Config, log *slog.Logger) *Engine {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, cfg: cfg, log: log}
}

// Transfer moves req.Amount from the sender's account to the account of
// the user registered under req.ReceiverEmail.
//
// The sequence is strictly ordered and fail-fast: resolve receiver,
// resolve receiver account, fresh-read sender, check funds, debit, credit,
// record. The debit is the commit point; if the credit then fails the
// debit is compensated and the caller gets ErrTransferFailedRefunded. Only
// the double failure (credit and compensation both failing) leaves a
// residual debit, surfaced as ErrResidualDebit and never swallowed.
//
// Balance writes are conditional on the previously read value and retried
// a bounded number of times, so two concurrent transfers touching the same
// account cannot silently overwrite each other's update.
func (e *Engine) Transfer(ctx context.Context, req Request) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", domain.ErrInvalidAmount, req.Amount)
	}

	receiver, err := e.resolveReceiver(ctx, req.ReceiverEmail)
	if err != nil {
		return nil, err
	}

	receiverAccount, err := e.resolveReceiverAccount(ctx, receiver.ID)
	if err != nil {
		return nil, err
	}

	sender, err := e.senderAccount(ctx, req)
	if err != nil {
		return nil, err
	}
	if sender.ID == receiverAccount.ID {
		return nil, domain.ErrSelfTransfer
	}
	if sender.Balance < req.Amount {
		return nil, fmt.Errorf("%w: balance %d, requested %d", domain.ErrInsufficientFunds, sender.Balance, req.Amount)
	}

	// Commit point. Once the debit lands the transfer is in flight and
	// must either complete or be compensated.
	debited, err := e.debit(ctx, sender, req.Amount)
	if err != nil {
		return nil, err
	}

	if err := e.credit(ctx, receiverAccount, req.Amount); err != nil {
		return nil, e.compensate(ctx, debited, req.Amount, err)
	}

	record, err := e.record(ctx, req, receiver, receiverAccount)
	if err != nil {
		return nil, e.unwind(ctx, debited, receiverAccount, req.Amount, err)
	}
	return record, nil
}

// resolveReceiver maps the receiver email to a user.
func (e *Engine) resolveReceiver(ctx context.Context, email string) (*domain.User, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	user, err := e.store.FindUserByEmail(callCtx, email)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("%w: no user registered as %q", domain.ErrReceiverNotFound, email)
	default:
		return nil, e.infra("resolve receiver", err)
	}
}

// resolveReceiverAccount picks the deposit target for a receiver with
// several linked accounts. Policy: the oldest linked account. The store
// returns accounts oldest first, so this is the head of the listing; any
// future default-account preference only needs to change this function.
func (e *Engine) resolveReceiverAccount(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	accounts, err := e.store.FindAccountsByOwner(callCtx, ownerID)
	if err != nil {
		return nil, e.infra("list receiver accounts", err)
	}
	if len(accounts) == 0 {
		return nil, domain.ErrNoReceiverAccount
	}
	return &accounts[0], nil
}

// senderAccount fresh-reads the sender's account and verifies ownership.
func (e *Engine) senderAccount(ctx context.Context, req Request) (*domain.Account, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	acc, err := e.store.GetAccount(callCtx, req.SenderAccountID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAccountNotFound):
		return nil, fmt.Errorf("%w: sender account %s", domain.ErrAccountNotFound, req.SenderAccountID)
	default:
		return nil, e.infra("fetch sender account", err)
	}
	if acc.OwnerID != req.SenderID {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotAccountOwner, req.SenderAccountID)
	}
	return acc, nil
}

// debit conditionally subtracts amount from the sender. On a lost race it
// re-reads and re-checks sufficiency before trying again, so a concurrent
// debit that drains the account surfaces ErrInsufficientFunds rather than
// an overdraft. Nothing has been mutated when debit returns an error.
func (e *Engine) debit(ctx context.Context, acc *domain.Account, amount int64) (*domain.Account, error) {
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		callCtx, cancel := e.callContext(ctx)
		updated, err := e.store.UpdateAccountBalance(callCtx, acc.ID, acc.Balance, acc.Balance-amount)
		cancel()

		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, domain.ErrBalanceConflict):
			fresh, rerr := e.rereadAccount(ctx, acc.ID)
			if rerr != nil {
				return nil, rerr
			}
			if fresh.Balance < amount {
				return nil, fmt.Errorf("%w: balance %d, requested %d", domain.ErrInsufficientFunds, fresh.Balance, amount)
			}
			acc = fresh
		default:
			return nil, e.infra("debit sender", err)
		}
	}
	return nil, e.infra("debit sender", fmt.Errorf("%w after %d attempts", domain.ErrBalanceConflict, e.cfg.MaxRetries))
}

// credit conditionally adds amount to the receiver, re-reading on
// conflict. Unlike debit there is no sufficiency check to repeat.
func (e *Engine) credit(ctx context.Context, acc *domain.Account, amount int64) error {
	balance := acc.Balance
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		callCtx, cancel := e.callContext(ctx)
		_, err := e.store.UpdateAccountBalance(callCtx, acc.ID, balance, balance+amount)
		cancel()

		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrBalanceConflict):
			fresh, rerr := e.rereadAccount(ctx, acc.ID)
			if rerr != nil {
				return rerr
			}
			balance = fresh.Balance
		default:
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts", domain.ErrBalanceConflict, e.cfg.MaxRetries)
}

// compensate re-credits the sender after a failed credit. The first write
// expects the debited balance and restores the exact pre-debit value; if
// another writer got in between, the add-back is retried against the
// fresh balance so no concurrent movement is clobbered. Its own failure
// is the residual-debit condition: logged loudly and surfaced distinctly,
// never folded into the original error.
func (e *Engine) compensate(ctx context.Context, debited *domain.Account, amount int64, cause error) error {
	e.log.Warn("credit failed, compensating debit",
		"sender_account", debited.ID, "amount", amount, "error", cause)

	if err := e.credit(ctx, debited, amount); err != nil {
		e.log.Error("RESIDUAL DEBIT: compensation failed, sender balance not restored",
			"sender_account", debited.ID, "amount", amount,
			"credit_error", cause, "compensation_error", err)
		return fmt.Errorf("%w: account %s short by %d: %v", domain.ErrResidualDebit, debited.ID, amount, cause)
	}

	return fmt.Errorf("%w: %v", domain.ErrTransferFailedRefunded, cause)
}

// unwind reverses both balance mutations after record creation failed, so
// a successful return and a persisted transaction record remain a single
// observable outcome. Receiver first, then sender.
func (e *Engine) unwind(ctx context.Context, debited, credited *domain.Account, amount int64, cause error) error {
	e.log.Warn("record creation failed, reversing transfer",
		"sender_account", debited.ID, "receiver_account", credited.ID, "amount", amount, "error", cause)

	if err := e.debitBack(ctx, credited.ID, amount); err != nil {
		e.log.Error("RESIDUAL CREDIT: could not reverse receiver credit after record failure",
			"receiver_account", credited.ID, "amount", amount, "error", err)
		return fmt.Errorf("%w: record creation failed and reversal incomplete: %v", domain.ErrResidualDebit, cause)
	}
	return e.compensate(ctx, debited, amount, cause)
}

// debitBack removes a previously applied credit during an unwind.
func (e *Engine) debitBack(ctx context.Context, accountID uuid.UUID, amount int64) error {
	acc, err := e.rereadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		callCtx, cancel := e.callContext(ctx)
		_, err := e.store.UpdateAccountBalance(callCtx, acc.ID, acc.Balance, acc.Balance-amount)
		cancel()

		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrBalanceConflict):
			if acc, err = e.rereadAccount(ctx, accountID); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts", domain.ErrBalanceConflict, e.cfg.MaxRetries)
}

// record persists the immutable transaction document. The note falls back
// to a generated default naming the receiver; the timestamp is assigned
// here, not by the caller.
func (e *Engine) record(ctx context.Context, req Request, receiver *domain.User, receiverAccount *domain.Account) (*domain.Transaction, error) {
	note := req.Note
	if note == "" {
		note = "P2P to " + receiver.FirstName
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	return e.store.CreateTransaction(callCtx, &domain.Transaction{
		ID:                uuid.New(),
		SenderID:          req.SenderID,
		ReceiverID:        receiver.ID,
		SenderAccountID:   req.SenderAccountID,
		ReceiverAccountID: receiverAccount.ID,
		Amount:            req.Amount,
		Currency:          receiverAccount.Currency,
		Kind:              domain.KindTransfer,
		Status:            domain.StatusSuccess,
		Note:              note,
		Category:          "Transfer",
		CreatedAt:         time.Now().UTC(),
	})
}

func (e *Engine) rereadAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	acc, err := e.store.GetAccount(callCtx, id)
	if err != nil {
		return nil, e.infra("re-read account", err)
	}
	return acc, nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.CallTimeout)
}

// infra classifies an unexpected store failure. Timeouts and transport
// errors all map to ErrStoreUnavailable so no raw infrastructure error
// crosses the engine boundary unclassified.
func (e *Engine) infra(step string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out", domain.ErrStoreUnavailable, step)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, step, err)
}
