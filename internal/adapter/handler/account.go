package handler

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/citadelhq/transferd/internal/adapter/storage"
	"github.com/citadelhq/transferd/internal/core/domain"
	"github.com/citadelhq/transferd/internal/core/security"
)

type AccountHandler struct {
	Repo *storage.AccountRepository
}

type CreateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *AccountHandler) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid user body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Email == "" || req.FirstName == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Email and first name are required"})
	}

	user, err := h.Repo.CreateUser(c.Context(), req.Email, req.FirstName, req.LastName)
	if err != nil {
		slog.Error("Failed to create user", "error", err, "email", req.Email)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create user"})
	}

	slog.Info("User created", "id", user.ID, "email", user.Email)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":         user.ID,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	})
}

type CreateAccountRequest struct {
	OwnerID  string `json:"owner_id"`
	Currency string `json:"currency"`
	Mask     string `json:"mask"`
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid account body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid owner id"})
	}

	validCurrencies := map[string]bool{"USD": true, "EUR": true}
	if !validCurrencies[req.Currency] {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid currency. Use USD or EUR"})
	}

	account, err := h.Repo.CreateAccount(c.Context(), ownerID, domain.Currency(req.Currency), req.Mask)
	if err != nil {
		slog.Error("Failed to create account", "error", err, "owner", ownerID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create account"})
	}

	slog.Info("Account created", "id", account.ID, "owner", ownerID)
	return c.Status(http.StatusCreated).JSON(accountResponse(account))
}

func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account id"})
	}

	account, err := h.Repo.GetAccount(c.Context(), accountID)
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
	}
	return c.JSON(accountResponse(account))
}

func (h *AccountHandler) GenerateKey(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	realKey, keyHash, err := security.GenerateAPIKey()
	if err != nil {
		slog.Error("Crypto error generating key", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Crypto error"})
	}

	if err := h.Repo.SaveAPIKey(c.Context(), userID, keyHash, security.KeyPrefix); err != nil {
		slog.Error("Failed to save API key", "error", err, "user_id", userID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save key"})
	}

	slog.Info("API key generated", "user_id", userID)
	return c.JSON(fiber.Map{
		"api_key": realKey,
		"warning": "Save this now! We won't show it again.",
	})
}

func accountResponse(acc *domain.Account) fiber.Map {
	return fiber.Map{
		"id":       acc.ID,
		"owner_id": acc.OwnerID,
		"balance":  domain.FormatAmount(acc.Balance),
		"currency": acc.Currency,
		"mask":     acc.Mask,
	}
}
