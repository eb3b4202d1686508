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

// PotRepository manages savings pots. Funding a pot is the same
// read-modify-write shape as a balance update and uses the same
// conditional-write discipline.
type PotRepository struct {
	db *pgxpool.Pool
}

func NewPotRepository(db *pgxpool.Pool) *PotRepository {
	return &PotRepository{db: db}
}

const potColumns = `id, owner_id, name, target_amount, current_amount, created_at`

func scanPot(row pgx.Row) (*domain.Pot, error) {
	var p domain.Pot
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.TargetAmount, &p.CurrentAmount, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PotRepository) CreatePot(ctx context.Context, ownerID uuid.UUID, name string, targetAmount int64) (*domain.Pot, error) {
	query := `
		INSERT INTO pots (owner_id, name, target_amount, current_amount)
		VALUES ($1, $2, $3, 0)
		RETURNING ` + potColumns
	pot, err := scanPot(r.db.QueryRow(ctx, query, ownerID, name, targetAmount))
	if err != nil {
		return nil, fmt.Errorf("failed to create pot: %w", err)
	}
	return pot, nil
}

func (r *PotRepository) GetPot(ctx context.Context, id uuid.UUID) (*domain.Pot, error) {
	query := `SELECT ` + potColumns + ` FROM pots WHERE id = $1`
	pot, err := scanPot(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPotNotFound
	}
	if err != nil {
		return nil, err
	}
	return pot, nil
}

func (r *PotRepository) FindPotsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Pot, error) {
	query := `SELECT ` + potColumns + ` FROM pots WHERE owner_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pots []domain.Pot
	for rows.Next() {
		var p domain.Pot
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.TargetAmount, &p.CurrentAmount, &p.CreatedAt); err != nil {
			return nil, err
		}
		pots = append(pots, p)
	}
	return pots, rows.Err()
}

// FundPot adds amount to the pot, conditional on the previously read
// current amount so concurrent fundings cannot overwrite each other.
func (r *PotRepository) FundPot(ctx context.Context, id uuid.UUID, expectedCurrent, amount int64) (*domain.Pot, error) {
	query := `
		UPDATE pots SET current_amount = current_amount + $3
		WHERE id = $1 AND current_amount = $2
		RETURNING ` + potColumns
	pot, err := scanPot(r.db.QueryRow(ctx, query, id, expectedCurrent, amount))
	if err == nil {
		return pot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pots WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrPotNotFound
	}
	return nil, domain.ErrBalanceConflict
}
