package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/citadelhq/transferd/internal/core/domain"
)

// LedgerStore is the slice of the store this handler reads and writes.
type LedgerStore interface {
	CreateTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)
	GetHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error)
}

type TransactionHandler struct {
	Ledger LedgerStore
}

// GetHistory lists transactions touching the account, newest first.
func (h *TransactionHandler) GetHistory(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account id"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	history, err := h.Ledger.GetHistory(c.Context(), accountID, limit)
	if err != nil {
		slog.Error("Failed to fetch history", "error", err, "account_id", accountID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch history"})
	}

	out := make([]TransactionResponse, 0, len(history))
	for i := range history {
		out = append(out, toTransactionResponse(&history[i]))
	}
	return c.JSON(fiber.Map{"transactions": out})
}

type ManualEntryRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"` // optional, defaults to USD
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"` // RFC3339, optional
}

// CreateManualEntry records a cash/manual transaction against the
// sentinel cash pseudo-account. No ledger balance moves.
func (h *TransactionHandler) CreateManualEntry(c *fiber.Ctx) error {
	var req ManualEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	userID, err := authenticatedUser(c)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	currency := domain.USD
	if req.Currency != "" {
		switch domain.Currency(req.Currency) {
		case domain.USD, domain.EUR:
			currency = domain.Currency(req.Currency)
		default:
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Unsupported currency, use USD or EUR"})
		}
	}

	when := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date, use RFC3339"})
		}
		when = parsed.UTC()
	}

	tx, err := h.Ledger.CreateTransaction(c.Context(), &domain.Transaction{
		ID:                uuid.New(),
		SenderID:          userID,
		ReceiverID:        userID,
		SenderAccountID:   domain.ManualCashAccount,
		ReceiverAccountID: domain.ManualCashAccount,
		Amount:            amount,
		Currency:          currency,
		Kind:              domain.KindManual,
		Status:            domain.StatusSuccess,
		Note:              req.Description,
		Category:          req.Category,
		CreatedAt:         when,
	})
	if err != nil {
		slog.Error("Failed to record manual entry", "error", err, "user_id", userID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not record entry"})
	}

	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}
