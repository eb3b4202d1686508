package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/citadelhq/transferd/internal/adapter/middleware"
	"github.com/citadelhq/transferd/internal/core/domain"
	"github.com/citadelhq/transferd/internal/core/transfer"
)

// EventQueue is where completed-transfer events go for async delivery.
type EventQueue interface {
	EnqueueWebhook(ctx context.Context, url string, payload []byte) error
}

type TransferHandler struct {
	Engine *transfer.Engine

	// Events and WebhookURL are optional; when both are set, successful
	// transfers enqueue a transfer.completed event.
	Events     EventQueue
	WebhookURL string
}

type TransferRequest struct {
	SenderAccountID string `json:"sender_account_id"`
	ReceiverEmail   string `json:"receiver_email"`
	Amount          string `json:"amount"` // major units, e.g. "120.50"
	Note            string `json:"note"`
}

type TransactionResponse struct {
	ID                string `json:"id"`
	SenderID          string `json:"sender_id"`
	ReceiverID        string `json:"receiver_id"`
	SenderAccountID   string `json:"sender_account_id"`
	ReceiverAccountID string `json:"receiver_account_id"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Kind              string `json:"kind"`
	Status            string `json:"status"`
	Note              string `json:"note"`
	Category          string `json:"category"`
	CreatedAt         string `json:"created_at"`
}

func toTransactionResponse(tx *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                tx.ID.String(),
		SenderID:          tx.SenderID.String(),
		ReceiverID:        tx.ReceiverID.String(),
		SenderAccountID:   tx.SenderAccountID.String(),
		ReceiverAccountID: tx.ReceiverAccountID.String(),
		Amount:            domain.FormatAmount(tx.Amount),
		Currency:          string(tx.Currency),
		Kind:              string(tx.Kind),
		Status:            tx.Status,
		Note:              tx.Note,
		Category:          tx.Category,
		CreatedAt:         tx.CreatedAt.Format(time.RFC3339),
	}
}

// Transfer executes a P2P transfer on behalf of the authenticated user.
func (h *TransferHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid transfer body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	senderID, err := authenticatedUser(c)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
	}

	senderAccountID, err := uuid.Parse(req.SenderAccountID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid sender account id"})
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	tx, err := h.Engine.Transfer(c.Context(), transfer.Request{
		SenderID:        senderID,
		SenderAccountID: senderAccountID,
		ReceiverEmail:   req.ReceiverEmail,
		Amount:          amount,
		Note:            req.Note,
	})
	if err != nil {
		return transferError(c, err)
	}

	h.publishCompleted(tx)

	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}

// transferError maps each engine error kind to its HTTP shape. The body
// distinguishes fix-your-input from try-again from contact-support, and
// carries a machine-readable retryable flag.
func transferError(c *fiber.Ctx, err error) error {
	var status int
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrSelfTransfer):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrReceiverNotFound), errors.Is(err, domain.ErrNoReceiverAccount),
		errors.Is(err, domain.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotAccountOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrResidualDebit):
		slog.Error("Residual debit surfaced to API", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error":     err.Error(),
			"retryable": false,
			"action":    "contact support",
		})
	case errors.Is(err, domain.ErrTransferFailedRefunded):
		status = http.StatusBadGateway
	default:
		slog.Error("Unclassified transfer error", "error", err)
		status = http.StatusInternalServerError
	}

	return c.Status(status).JSON(fiber.Map{
		"error":     err.Error(),
		"retryable": domain.Retryable(err),
	})
}

// publishCompleted queues the transfer.completed event. Best effort: the
// transfer has already committed, so a queue failure is logged, not
// surfaced.
func (h *TransferHandler) publishCompleted(tx *domain.Transaction) {
	if h.Events == nil || h.WebhookURL == "" {
		return
	}

	payload, err := json.Marshal(fiber.Map{
		"event": "transfer.completed",
		"data":  toTransactionResponse(tx),
	})
	if err != nil {
		slog.Error("Failed to marshal transfer event", "error", err, "transaction_id", tx.ID)
		return
	}
	if err := h.Events.EnqueueWebhook(context.Background(), h.WebhookURL, payload); err != nil {
		slog.Error("Failed to enqueue transfer event", "error", err, "transaction_id", tx.ID)
	}
}

// authenticatedUser reads the user id the auth middleware stored.
func authenticatedUser(c *fiber.Ctx) (uuid.UUID, error) {
	raw, _ := c.Locals(middleware.UserIDKey).(string)
	return uuid.Parse(raw)
}
