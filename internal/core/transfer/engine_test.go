package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/citadelhq/transferd/internal/adapter/storage"
	"github.com/citadelhq/transferd/internal/core/domain"
)

type fixture struct {
	store    *storage.MemoryStore
	engine   *Engine
	sender   *domain.User
	receiver *domain.User
	senderAc *domain.Account
	recvAc   *domain.Account
}

// newFixture seeds a sender with 500.00 and a receiver with 50.00.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	sender := store.AddUser("alice@example.com", "Alice", "Reyes")
	receiver := store.AddUser("bob@example.com", "Bob", "Ngata")
	senderAc := store.AddAccount(sender.ID, 50000, domain.USD)
	recvAc := store.AddAccount(receiver.ID, 5000, domain.USD)

	return &fixture{
		store:    store,
		engine:   NewEngine(store, DefaultConfig(), nil),
		sender:   sender,
		receiver: receiver,
		senderAc: senderAc,
		recvAc:   recvAc,
	}
}

func (f *fixture) request(amount int64) Request {
	return Request{
		SenderID:        f.sender.ID,
		SenderAccountID: f.senderAc.ID,
		ReceiverEmail:   f.receiver.Email,
		Amount:          amount,
	}
}

func TestTransferSuccess(t *testing.T) {
	f := newFixture(t)

	tx, err := f.engine.Transfer(context.Background(), f.request(20000))
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if got := f.store.Balance(f.senderAc.ID); got != 30000 {
		t.Errorf("sender balance: want 30000, got %d", got)
	}
	if got := f.store.Balance(f.recvAc.ID); got != 25000 {
		t.Errorf("receiver balance: want 25000, got %d", got)
	}

	// Conservation: total funds across the two accounts is invariant.
	total := f.store.Balance(f.senderAc.ID) + f.store.Balance(f.recvAc.ID)
	if total != 55000 {
		t.Errorf("funds not conserved: want 55000, got %d", total)
	}

	records := f.store.Transactions()
	if len(records) != 1 {
		t.Fatalf("want exactly one transaction record, got %d", len(records))
	}
	rec := records[0]
	if rec.Amount != 20000 {
		t.Errorf("record amount: want 20000, got %d", rec.Amount)
	}
	if rec.Kind != domain.KindTransfer || rec.Status != domain.StatusSuccess {
		t.Errorf("record kind/status: got %s/%s", rec.Kind, rec.Status)
	}
	if rec.SenderID != f.sender.ID || rec.ReceiverID != f.receiver.ID {
		t.Errorf("record parties wrong: %s -> %s", rec.SenderID, rec.ReceiverID)
	}
	if rec.SenderAccountID != f.senderAc.ID || rec.ReceiverAccountID != f.recvAc.ID {
		t.Errorf("record accounts wrong: %s -> %s", rec.SenderAccountID, rec.ReceiverAccountID)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("record missing timestamp")
	}
	if tx.ID != rec.ID {
		t.Error("returned record does not match stored record")
	}
}

func TestTransferDefaultNote(t *testing.T) {
	f := newFixture(t)

	tx, err := f.engine.Transfer(context.Background(), f.request(100))
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if tx.Note != "P2P to Bob" {
		t.Errorf("default note: want %q, got %q", "P2P to Bob", tx.Note)
	}

	req := f.request(100)
	req.Note = "lunch"
	tx, err = f.engine.Transfer(context.Background(), req)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if tx.Note != "lunch" {
		t.Errorf("note: want %q, got %q", "lunch", tx.Note)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	f := newFixture(t)

	// Sender holds 500.00; ask for 600.00.
	_, err := f.engine.Transfer(context.Background(), f.request(60000))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	if got := f.store.Balance(f.senderAc.ID); got != 50000 {
		t.Errorf("sender balance changed: %d", got)
	}
	if got := f.store.Balance(f.recvAc.ID); got != 5000 {
		t.Errorf("receiver balance changed: %d", got)
	}
	if n := len(f.store.Transactions()); n != 0 {
		t.Errorf("no transaction should be recorded, got %d", n)
	}
	if domain.Retryable(err) {
		t.Error("insufficient funds must not be marked retryable")
	}
}

func TestTransferInvalidAmount(t *testing.T) {
	f := newFixture(t)

	for _, amount := range []int64{0, -1, -20000} {
		req := f.request(amount)
		if _, err := f.engine.Transfer(context.Background(), req); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("amount %d: want ErrInvalidAmount, got %v", amount, err)
		}
	}
	if got := f.store.Balance(f.senderAc.ID); got != 50000 {
		t.Errorf("sender balance changed: %d", got)
	}
}

func TestTransferReceiverNotFound(t *testing.T) {
	f := newFixture(t)

	req := f.request(100)
	req.ReceiverEmail = "nobody@example.com"
	_, err := f.engine.Transfer(context.Background(), req)
	if !errors.Is(err, domain.ErrReceiverNotFound) {
		t.Fatalf("want ErrReceiverNotFound, got %v", err)
	}
	if got := f.store.Balance(f.senderAc.ID); got != 50000 {
		t.Errorf("sender balance changed: %d", got)
	}
	if n := len(f.store.Transactions()); n != 0 {
		t.Errorf("no transaction should be recorded, got %d", n)
	}
}

func TestTransferNoReceiverAccount(t *testing.T) {
	f := newFixture(t)
	loner := f.store.AddUser("carol@example.com", "Carol", "Danvers")

	req := f.request(100)
	req.ReceiverEmail = loner.Email
	_, err := f.engine.Transfer(context.Background(), req)
	if !errors.Is(err, domain.ErrNoReceiverAccount) {
		t.Fatalf("want ErrNoReceiverAccount, got %v", err)
	}
}

func TestTransferNotAccountOwner(t *testing.T) {
	f := newFixture(t)

	req := f.request(100)
	req.SenderAccountID = f.recvAc.ID // Bob's account, Alice asking
	_, err := f.engine.Transfer(context.Background(), req)
	if !errors.Is(err, domain.ErrNotAccountOwner) {
		t.Fatalf("want ErrNotAccountOwner, got %v", err)
	}
	if got := f.store.Balance(f.recvAc.ID); got != 5000 {
		t.Errorf("balance changed: %d", got)
	}
}

func TestTransferSelfTransfer(t *testing.T) {
	f := newFixture(t)

	req := Request{
		SenderID:        f.sender.ID,
		SenderAccountID: f.senderAc.ID,
		ReceiverEmail:   f.sender.Email,
		Amount:          100,
	}
	_, err := f.engine.Transfer(context.Background(), req)
	if !errors.Is(err, domain.ErrSelfTransfer) {
		t.Fatalf("want ErrSelfTransfer, got %v", err)
	}
}

func TestTransferUnknownSenderAccount(t *testing.T) {
	f := newFixture(t)

	req := f.request(100)
	req.SenderAccountID = uuid.New()
	_, err := f.engine.Transfer(context.Background(), req)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestTransferCreditFailureIsCompensated(t *testing.T) {
	f := newFixture(t)

	boom := errors.New("connection reset")
	f.store.FailUpdate = func(id uuid.UUID) error {
		if id == f.recvAc.ID {
			return boom
		}
		return nil
	}

	_, err := f.engine.Transfer(context.Background(), f.request(20000))
	if !errors.Is(err, domain.ErrTransferFailedRefunded) {
		t.Fatalf("want ErrTransferFailedRefunded, got %v", err)
	}

	// Debit compensated: sender restored to the exact pre-debit value.
	if got := f.store.Balance(f.senderAc.ID); got != 50000 {
		t.Errorf("sender balance not restored: want 50000, got %d", got)
	}
	if got := f.store.Balance(f.recvAc.ID); got != 5000 {
		t.Errorf("receiver balance changed: %d", got)
	}
	if n := len(f.store.Transactions()); n != 0 {
		t.Errorf("no transaction should be recorded, got %d", n)
	}
	if domain.Retryable(err) {
		t.Error("a compensated failure must not be marked retryable")
	}
}

func TestTransferResidualDebit(t *testing.T) {
	f := newFixture(t)

	// The first sender write (the debit) succeeds; every write after
	// that fails, so both the credit and the compensation die.
	var senderWrites int
	f.store.FailUpdate = func(id uuid.UUID) error {
		if id == f.recvAc.ID {
			return errors.New("connection reset")
		}
		senderWrites++
		if senderWrites > 1 {
			return errors.New("connection reset")
		}
		return nil
	}

	_, err := f.engine.Transfer(context.Background(), f.request(20000))
	if !errors.Is(err, domain.ErrResidualDebit) {
		t.Fatalf("want ErrResidualDebit, got %v", err)
	}

	// The documented failure mode: debit applied, nothing else.
	if got := f.store.Balance(f.senderAc.ID); got != 30000 {
		t.Errorf("sender balance: want 30000 (debited), got %d", got)
	}
	if got := f.store.Balance(f.recvAc.ID); got != 5000 {
		t.Errorf("receiver balance changed: %d", got)
	}
	if domain.Retryable(err) {
		t.Error("a residual debit must never be marked retryable")
	}
}

func TestTransferRecordFailureReversesBothBalances(t *testing.T) {
	f := newFixture(t)
	f.store.FailTransaction = func() error { return errors.New("insert failed") }

	_, err := f.engine.Transfer(context.Background(), f.request(20000))
	if !errors.Is(err, domain.ErrTransferFailedRefunded) {
		t.Fatalf("want ErrTransferFailedRefunded, got %v", err)
	}
	if got := f.store.Balance(f.senderAc.ID); got != 50000 {
		t.Errorf("sender balance not restored: %d", got)
	}
	if got := f.store.Balance(f.recvAc.ID); got != 5000 {
		t.Errorf("receiver balance not restored: %d", got)
	}
	if n := len(f.store.Transactions()); n != 0 {
		t.Errorf("no transaction should be recorded, got %d", n)
	}
}

func TestTransferRecordFailureResidualCredit(t *testing.T) {
	f := newFixture(t)
	f.store.FailTransaction = func() error { return errors.New("insert failed") }

	// The credit itself goes through; every receiver write after it
	// fails, so the unwind cannot take the money back.
	var receiverWrites int
	f.store.FailUpdate = func(id uuid.UUID) error {
		if id != f.recvAc.ID {
			return nil
		}
		receiverWrites++
		if receiverWrites > 1 {
			return errors.New("connection reset")
		}
		return nil
	}

	_, err := f.engine.Transfer(context.Background(), f.request(20000))
	if !errors.Is(err, domain.ErrResidualDebit) {
		t.Fatalf("want ErrResidualDebit, got %v", err)
	}

	// Both mutations stand: debit applied, credit applied, no record.
	if got := f.store.Balance(f.senderAc.ID); got != 30000 {
		t.Errorf("sender balance: want 30000 (debited), got %d", got)
	}
	if got := f.store.Balance(f.recvAc.ID); got != 25000 {
		t.Errorf("receiver balance: want 25000 (credited), got %d", got)
	}
	if n := len(f.store.Transactions()); n != 0 {
		t.Errorf("no transaction should be recorded, got %d", n)
	}
	if domain.Retryable(err) {
		t.Error("an incomplete reversal must never be marked retryable")
	}
}

func TestTransferRetriesBalanceConflict(t *testing.T) {
	f := newFixture(t)

	// First debit attempt loses the race; the retry goes through.
	var calls int
	f.store.FailUpdate = func(id uuid.UUID) error {
		calls++
		if calls == 1 {
			return domain.ErrBalanceConflict
		}
		return nil
	}

	if _, err := f.engine.Transfer(context.Background(), f.request(20000)); err != nil {
		t.Fatalf("transfer should survive one conflict: %v", err)
	}
	if got := f.store.Balance(f.senderAc.ID); got != 30000 {
		t.Errorf("sender balance: want 30000, got %d", got)
	}
}

func TestTransferConflictExhaustionLeavesNoMutation(t *testing.T) {
	f := newFixture(t)
	f.store.FailUpdate = func(id uuid.UUID) error { return domain.ErrBalanceConflict }

	_, err := f.engine.Transfer(context.Background(), f.request(20000))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
	if got := f.store.Balance(f.senderAc.ID); got != 50000 {
		t.Errorf("sender balance changed: %d", got)
	}
	if !domain.Retryable(err) {
		t.Error("pre-debit exhaustion is safe to retry")
	}
}

func TestTransferStoreTimeout(t *testing.T) {
	f := newFixture(t)
	f.engine = NewEngine(f.store, Config{CallTimeout: time.Nanosecond, MaxRetries: 3}, nil)

	_, err := f.engine.Transfer(context.Background(), f.request(100))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable on timeout, got %v", err)
	}
	if got := f.store.Balance(f.senderAc.ID); got != 50000 {
		t.Errorf("sender balance changed: %d", got)
	}
	if !domain.Retryable(err) {
		t.Error("a timeout before any mutation is safe to retry")
	}
}

func TestReceiverAccountPolicyOldestFirst(t *testing.T) {
	f := newFixture(t)

	// Bob links a second, newer account. The credit must land on the
	// oldest linked account.
	newer := f.store.AddAccount(f.receiver.ID, 0, domain.USD)

	if _, err := f.engine.Transfer(context.Background(), f.request(100)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := f.store.Balance(f.recvAc.ID); got != 5100 {
		t.Errorf("oldest account should be credited: want 5100, got %d", got)
	}
	if got := f.store.Balance(newer.ID); got != 0 {
		t.Errorf("newer account must be untouched, got %d", got)
	}
}

func TestConcurrentTransfersConserveFunds(t *testing.T) {
	store := storage.NewMemoryStore()
	alice := store.AddUser("alice@example.com", "Alice", "Reyes")
	bob := store.AddUser("bob@example.com", "Bob", "Ngata")
	aliceAc := store.AddAccount(alice.ID, 100000, domain.USD)
	bobAc := store.AddAccount(bob.ID, 100000, domain.USD)

	// Plenty of retries: the point here is correctness under
	// contention, not conflict-budget tuning.
	engine := NewEngine(store, Config{CallTimeout: time.Second, MaxRetries: 1000}, nil)

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		// Half the workers send Alice -> Bob, half Bob -> Alice.
		req := Request{SenderID: alice.ID, SenderAccountID: aliceAc.ID, ReceiverEmail: bob.Email, Amount: 100}
		if w%2 == 1 {
			req = Request{SenderID: bob.ID, SenderAccountID: bobAc.ID, ReceiverEmail: alice.Email, Amount: 100}
		}
		go func(req Request) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := engine.Transfer(context.Background(), req); err != nil {
					errs <- err
				}
			}
		}(req)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent transfer failed: %v", err)
	}

	total := store.Balance(aliceAc.ID) + store.Balance(bobAc.ID)
	if total != 200000 {
		t.Errorf("funds not conserved under concurrency: want 200000, got %d", total)
	}
	if n := len(store.Transactions()); n != workers*perWorker {
		t.Errorf("want %d transaction records, got %d", workers*perWorker, n)
	}
	if store.Balance(aliceAc.ID) < 0 || store.Balance(bobAc.ID) < 0 {
		t.Error("negative balance observed")
	}
}

func TestConcurrentDebitsCannotOverdraw(t *testing.T) {
	store := storage.NewMemoryStore()
	alice := store.AddUser("alice@example.com", "Alice", "Reyes")
	bob := store.AddUser("bob@example.com", "Bob", "Ngata")
	aliceAc := store.AddAccount(alice.ID, 1000, domain.USD) // room for 2 transfers of 400
	bobAc := store.AddAccount(bob.ID, 0, domain.USD)

	engine := NewEngine(store, Config{CallTimeout: time.Second, MaxRetries: 1000}, nil)

	const attempts = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, insufficient int
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Transfer(context.Background(), Request{
				SenderID: alice.ID, SenderAccountID: aliceAc.ID,
				ReceiverEmail: bob.Email, Amount: 400,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 2 || insufficient != attempts-2 {
		t.Errorf("want 2 successes and %d rejections, got %d/%d", attempts-2, succeeded, insufficient)
	}
	if got := store.Balance(aliceAc.ID); got != 200 {
		t.Errorf("sender balance: want 200, got %d", got)
	}
	if got := store.Balance(bobAc.ID); got != 800 {
		t.Errorf("receiver balance: want 800, got %d", got)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("%w: wrapped", domain.ErrStoreUnavailable), true},
		{domain.ErrInsufficientFunds, false},
		{domain.ErrTransferFailedRefunded, false},
		{domain.ErrResidualDebit, false},
		{domain.ErrReceiverNotFound, false},
		{domain.ErrInvalidAmount, false},
	}
	for _, c := range cases {
		if got := domain.Retryable(c.err); got != c.want {
			t.Errorf("Retryable(%v): want %v, got %v", c.err, c.want, got)
		}
	}
}
