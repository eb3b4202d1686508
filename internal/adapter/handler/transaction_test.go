package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/citadelhq/transferd/internal/adapter/middleware"
	"github.com/citadelhq/transferd/internal/adapter/storage"
	"github.com/citadelhq/transferd/internal/core/domain"
)

type manualEnv struct {
	app   *fiber.App
	store *storage.MemoryStore
}

func newManualEnv(t *testing.T) *manualEnv {
	t.Helper()

	store := storage.NewMemoryStore()
	user := store.AddUser("alice@example.com", "Alice", "Reyes")

	h := &TransactionHandler{Ledger: store}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.UserIDKey, user.ID.String())
		return c.Next()
	})
	app.Post("/v1/transactions/manual", h.CreateManualEntry)

	return &manualEnv{app: app, store: store}
}

func (e *manualEnv) post(t *testing.T, body ManualEntryRequest) (*http.Response, map[string]interface{}) {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/transactions/manual", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]interface{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decode body %q: %v", data, err)
		}
	}
	return resp, decoded
}

func TestManualEntryDefaultsToUSD(t *testing.T) {
	env := newManualEnv(t)

	resp, _ := env.post(t, ManualEntryRequest{Amount: "12.50", Category: "Groceries"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	recorded := env.store.Transactions()
	if len(recorded) != 1 {
		t.Fatalf("recorded %d transactions, want 1", len(recorded))
	}
	if recorded[0].Currency != domain.USD {
		t.Fatalf("currency = %s, want %s", recorded[0].Currency, domain.USD)
	}
	if recorded[0].Amount != 1250 {
		t.Fatalf("amount = %d, want 1250", recorded[0].Amount)
	}
}

func TestManualEntryAcceptsEUR(t *testing.T) {
	env := newManualEnv(t)

	resp, _ := env.post(t, ManualEntryRequest{Amount: "7.00", Currency: "EUR", Category: "Travel"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	recorded := env.store.Transactions()
	if len(recorded) != 1 {
		t.Fatalf("recorded %d transactions, want 1", len(recorded))
	}
	if recorded[0].Currency != domain.EUR {
		t.Fatalf("currency = %s, want %s", recorded[0].Currency, domain.EUR)
	}
}

func TestManualEntryRejectsUnknownCurrency(t *testing.T) {
	env := newManualEnv(t)

	resp, body := env.post(t, ManualEntryRequest{Amount: "7.00", Currency: "GBP"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if body["error"] == "" {
		t.Fatal("expected an error message in the body")
	}
	if got := len(env.store.Transactions()); got != 0 {
		t.Fatalf("recorded %d transactions, want 0", got)
	}
}
