package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citadelhq/transferd/internal/core/domain"
)

// LedgerRepository persists transaction records and serves history
// queries. Records are written once and never mutated.
type LedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const transactionColumns = `id, sender_id, receiver_id, sender_account_id, receiver_account_id,
	amount, currency, kind, status, note, category, created_at`

// CreateTransaction inserts one immutable transaction record.
func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		tx.ID, tx.SenderID, tx.ReceiverID, tx.SenderAccountID, tx.ReceiverAccountID,
		tx.Amount, tx.Currency, tx.Kind, tx.Status, tx.Note, tx.Category, tx.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return tx, nil
}

// GetHistory fetches transactions where the account appears on either
// side, newest first. A transfer between two accounts of the same owner
// matches both predicates but the OR keeps it to a single row, so no
// dedup pass is needed.
func (r *LedgerRepository) GetHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sender_account_id = $1 OR receiver_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.SenderID, &tx.ReceiverID, &tx.SenderAccountID, &tx.ReceiverAccountID,
			&tx.Amount, &tx.Currency, &tx.Kind, &tx.Status, &tx.Note, &tx.Category, &tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		history = append(history, tx)
	}
	return history, rows.Err()
}

// EnqueueWebhook queues an event payload for the background dispatcher.
func (r *LedgerRepository) EnqueueWebhook(ctx context.Context, url string, payload []byte) error {
	query := `INSERT INTO webhook_jobs (url, payload) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, url, payload); err != nil {
		return fmt.Errorf("failed to enqueue webhook: %w", err)
	}
	return nil
}
