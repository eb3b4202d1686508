package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/citadelhq/transferd/internal/adapter/storage"
	"github.com/citadelhq/transferd/internal/core/domain"
)

type PotHandler struct {
	Repo *storage.PotRepository
}

type CreatePotRequest struct {
	Name         string `json:"name"`
	TargetAmount string `json:"target_amount"`
}

func (h *PotHandler) CreatePot(c *fiber.Ctx) error {
	var req CreatePotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	userID, err := authenticatedUser(c)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
	}
	if req.Name == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Pot name is required"})
	}

	target, err := domain.ParseAmount(req.TargetAmount)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	pot, err := h.Repo.CreatePot(c.Context(), userID, req.Name, target)
	if err != nil {
		slog.Error("Failed to create pot", "error", err, "user_id", userID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create pot"})
	}

	return c.Status(http.StatusCreated).JSON(potResponse(pot))
}

func (h *PotHandler) ListPots(c *fiber.Ctx) error {
	userID, err := authenticatedUser(c)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
	}

	pots, err := h.Repo.FindPotsByOwner(c.Context(), userID)
	if err != nil {
		slog.Error("Failed to list pots", "error", err, "user_id", userID)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not list pots"})
	}

	out := make([]fiber.Map, 0, len(pots))
	for i := range pots {
		out = append(out, potResponse(&pots[i]))
	}
	return c.JSON(fiber.Map{"pots": out})
}

type FundPotRequest struct {
	Amount string `json:"amount"`
}

// FundPot adds money to a pot. The write is conditional on the current
// amount read just before, retried a few times on conflict.
func (h *PotHandler) FundPot(c *fiber.Ctx) error {
	potID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pot id"})
	}

	var req FundPotRequest
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

	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		pot, err := h.Repo.GetPot(c.Context(), potID)
		if err != nil {
			if errors.Is(err, domain.ErrPotNotFound) {
				return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Pot not found"})
			}
			slog.Error("Failed to read pot", "error", err, "pot_id", potID)
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": "Store unavailable"})
		}
		if pot.OwnerID != userID {
			return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "Not your pot"})
		}

		updated, err := h.Repo.FundPot(c.Context(), potID, pot.CurrentAmount, amount)
		if err == nil {
			return c.JSON(potResponse(updated))
		}
		if !errors.Is(err, domain.ErrBalanceConflict) {
			slog.Error("Failed to fund pot", "error", err, "pot_id", potID)
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": "Store unavailable"})
		}
	}
	return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "Pot is busy, try again"})
}

func potResponse(p *domain.Pot) fiber.Map {
	return fiber.Map{
		"id":             p.ID,
		"owner_id":       p.OwnerID,
		"name":           p.Name,
		"target_amount":  domain.FormatAmount(p.TargetAmount),
		"current_amount": domain.FormatAmount(p.CurrentAmount),
	}
}
