package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citadelhq/transferd/internal/core/domain"
)

// AccountRepository is the Postgres-backed account and user store.
type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, owner_id, balance, currency, mask, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(&acc.ID, &acc.OwnerID, &acc.Balance, &acc.Currency, &acc.Mask, &acc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// CreateUser registers a user record.
func (r *AccountRepository) CreateUser(ctx context.Context, email, firstName, lastName string) (*domain.User, error) {
	query := `
		INSERT INTO users (email, first_name, last_name)
		VALUES ($1, $2, $3)
		RETURNING id, email, first_name, last_name, created_at
	`
	var u domain.User
	err := r.db.QueryRow(ctx, query, email, firstName, lastName).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

// FindUserByEmail resolves an email to its user record.
func (r *AccountRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, email, first_name, last_name, created_at FROM users WHERE email = $1`
	var u domain.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateAccount opens a new account for a user with a zero balance.
func (r *AccountRepository) CreateAccount(ctx context.Context, ownerID uuid.UUID, currency domain.Currency, mask string) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (owner_id, currency, mask, balance)
		VALUES ($1, $2, $3, 0)
		RETURNING ` + accountColumns
	acc, err := scanAccount(r.db.QueryRow(ctx, query, ownerID, currency, mask))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	acc, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// FindAccountsByOwner lists a user's accounts, oldest first. The ordering
// is load-bearing: the transfer engine's receiver-account policy is
// "oldest linked account", which it takes to be the head of this listing.
func (r *AccountRepository) FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var acc domain.Account
		if err := rows.Scan(&acc.ID, &acc.OwnerID, &acc.Balance, &acc.Currency, &acc.Mask, &acc.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// UpdateAccountBalance writes next only if the stored balance still equals
// expected. A zero-row update means either the account vanished or a
// concurrent writer got there first; the follow-up existence check tells
// the two apart so the engine can retry conflicts and fail lookups.
func (r *AccountRepository) UpdateAccountBalance(ctx context.Context, id uuid.UUID, expected, next int64) (*domain.Account, error) {
	query := `
		UPDATE accounts SET balance = $3
		WHERE id = $1 AND balance = $2
		RETURNING ` + accountColumns
	acc, err := scanAccount(r.db.QueryRow(ctx, query, id, expected, next))
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrAccountNotFound
	}
	return nil, domain.ErrBalanceConflict
}

// SaveAPIKey stores the hashed key for a user.
func (r *AccountRepository) SaveAPIKey(ctx context.Context, userID uuid.UUID, keyHash, keyPrefix string) error {
	query := `INSERT INTO api_keys (user_id, key_hash, key_prefix) VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(ctx, query, userID, keyHash, keyPrefix); err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}
