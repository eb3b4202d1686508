package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citadelhq/transferd/internal/core/domain"
)

// MemoryStore is an in-process account store with the same conditional
// write semantics as the Postgres repositories. It backs package tests
// and local development without a database.
//
// FailUpdate, when set, is consulted before every balance write; a
// non-nil return aborts the write with that error. Tests use it to force
// the compensation paths.
type MemoryStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]domain.User
	usersByEmail map[string]uuid.UUID
	accounts     map[uuid.UUID]domain.Account
	transactions []domain.Transaction

	FailUpdate      func(accountID uuid.UUID) error
	FailTransaction func() error

	seq int64
}

// nextTime hands out strictly increasing timestamps so listing order is
// deterministic regardless of clock resolution.
func (s *MemoryStore) nextTime() time.Time {
	s.seq++
	return time.Unix(0, s.seq).UTC()
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uuid.UUID]domain.User),
		usersByEmail: make(map[string]uuid.UUID),
		accounts:     make(map[uuid.UUID]domain.Account),
	}
}

// AddUser seeds a user record.
func (s *MemoryStore) AddUser(email, firstName, lastName string) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := domain.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		CreatedAt: s.nextTime(),
	}
	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return &u
}

// AddAccount seeds an account with an opening balance.
func (s *MemoryStore) AddAccount(ownerID uuid.UUID, balance int64, currency domain.Currency) *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := domain.Account{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Balance:   balance,
		Currency:  currency,
		CreatedAt: s.nextTime(),
	}
	s.accounts[acc.ID] = acc
	return &acc
}

func (s *MemoryStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

func (s *MemoryStore) FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts []domain.Account
	for _, acc := range s.accounts {
		if acc.OwnerID == ownerID {
			accounts = append(accounts, acc)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if !accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
		}
		return accounts[i].ID.String() < accounts[j].ID.String()
	})
	return accounts, nil
}

func (s *MemoryStore) UpdateAccountBalance(ctx context.Context, id uuid.UUID, expected, next int64) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpdate != nil {
		if err := s.FailUpdate(id); err != nil {
			return nil, err
		}
	}

	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if acc.Balance != expected {
		return nil, domain.ErrBalanceConflict
	}
	acc.Balance = next
	s.accounts[id] = acc
	return &acc, nil
}

func (s *MemoryStore) CreateTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailTransaction != nil {
		if err := s.FailTransaction(); err != nil {
			return nil, err
		}
	}
	s.transactions = append(s.transactions, *tx)
	return tx, nil
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := s.users[id]
	return &u, nil
}

// GetHistory mirrors the ledger repository: transactions touching the
// account on either side, newest first.
func (s *MemoryStore) GetHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []domain.Transaction
	for _, tx := range s.transactions {
		if tx.SenderAccountID == accountID || tx.ReceiverAccountID == accountID {
			history = append(history, tx)
		}
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].CreatedAt.After(history[j].CreatedAt)
	})
	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// Transactions returns a copy of all recorded transactions.
func (s *MemoryStore) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Balance reads an account balance directly, for assertions.
func (s *MemoryStore) Balance(id uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].Balance
}
