package storage

// Store combines the account and ledger repositories into the single
// view the transfer engine consumes.
type Store struct {
	*AccountRepository
	*LedgerRepository
}

func NewStore(accounts *AccountRepository, ledger *LedgerRepository) Store {
	return Store{AccountRepository: accounts, LedgerRepository: ledger}
}
