package storage

// Storage defines the root interface for the entire data layer.
// It composes all available storage operations. Components should depend on the
// more granular interfaces (RelationStore, TokenStore, etc.) instead of this one.
type Storage interface {
	VendorStore
	CustomerStore
	RelationStore
	TransactionStore
	TokenStore
}

// LedgerStore is the data access surface the credit ledger needs.
type LedgerStore interface {
	VendorReader
	CustomerStore
	RelationStore
	TransactionStore
}

// ReconciliationStore is the surface of the scheduled overdue and default sweep.
type ReconciliationStore interface {
	TransactionReader
	TransactionSweeper
}
