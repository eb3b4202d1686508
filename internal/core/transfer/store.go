package transfer

import (
	"context"

	"github.com/google/uuid"

	"github.com/citadelhq/transferd/internal/core/domain"
)

// Store is the engine's view of the account store. Implementations must
// make each call individually atomic; the engine composes them into a
// transfer with explicit compensation, it never assumes a multi-document
// transaction underneath.
type Store interface {
	// GetAccount returns the account or domain.ErrAccountNotFound.
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// FindAccountsByOwner returns the owner's accounts ordered oldest
	// first. An owner with no accounts yields an empty slice, not an error.
	FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error)

	// UpdateAccountBalance writes next only if the stored balance still
	// equals expected, returning the updated account. A lost race returns
	// domain.ErrBalanceConflict; a missing account returns
	// domain.ErrAccountNotFound.
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, expected, next int64) (*domain.Account, error)

	// CreateTransaction persists an immutable transaction record.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)

	// FindUserByEmail returns the user or domain.ErrUserNotFound.
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
}
