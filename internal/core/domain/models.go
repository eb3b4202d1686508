package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record kept in the store. The engine only ever
// reads users, to resolve a receiver email into an account owner.
type User struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// Account is a ledger account owned by a user. One user may own several.
// Balance is the authoritative figure for P2P movements; it is stored in
// minor units (cents) and never goes negative through the transfer engine.
type Account struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Balance   int64
	Currency  Currency
	Mask      string // display-only, e.g. "•••• 4213"
	CreatedAt time.Time
}

// TransactionKind distinguishes engine-created transfers from
// user-recorded manual/cash entries.
type TransactionKind string

const (
	KindTransfer TransactionKind = "transfer"
	KindManual   TransactionKind = "manual"
)

// StatusSuccess is the only persisted status: failed transfers never
// reach record creation.
const StatusSuccess = "SUCCESS"

// ManualCashAccount is the sentinel pseudo-account referenced by manual
// entries, which move no ledger balance.
var ManualCashAccount = uuid.MustParse("00000000-0000-0000-0000-00000000ca5e")

// Transaction is a completed movement of money. Immutable once created.
type Transaction struct {
	ID                uuid.UUID
	SenderID          uuid.UUID
	ReceiverID        uuid.UUID
	SenderAccountID   uuid.UUID
	ReceiverAccountID uuid.UUID
	Amount            int64
	Currency          Currency
	Kind              TransactionKind
	Status            string
	Note              string
	Category          string
	CreatedAt         time.Time
}

// Pot is a savings pot: a named target the owner funds over time.
// Funding a pot is a read-modify-write like a balance update and uses the
// same conditional-write discipline.
type Pot struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Name          string
	TargetAmount  int64
	CurrentAmount int64
	CreatedAt     time.Time
}
