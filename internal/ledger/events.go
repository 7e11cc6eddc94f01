package ledger

import (
	"context"

	"github.com/google/uuid"

	"ledger/internal/core"
)

// Mutation operations carried on change events. Event names follow the
// entity.verb convention so observers can route on prefix.
const (
	OpAccountCreated      = "account.created"
	OpTransactionRecorded = "transaction.recorded"
	OpTransferRecorded    = "transfer.recorded"
	OpDebtRecorded        = "debt.recorded"
	OpRepaymentRecorded   = "repayment.recorded"
	OpBudgetSet           = "budget.set"
	OpCategoryAdded       = "category.added"
	OpSubcategoryAdded    = "subcategory.added"
	OpSettingUpdated      = "setting.updated"
	OpSnapshotImported    = "snapshot.imported"
	OpStateCleared        = "state.cleared"
)

// ChangeEvent describes one successful mutation. Only the fields touched by
// the mutation are populated; everything is a post-mutation copy so observers
// can hold on to it.
type ChangeEvent struct {
	Op string

	// Accounts whose cached balance changed, post-mutation.
	Accounts []core.Account
	// Transactions recorded by the mutation: one for a plain transaction,
	// two or three for a transfer (both legs plus an optional fee expense).
	Transactions []core.Transaction
	Debt         *core.Debt
	Budget       *core.Budget

	CategoryKind core.TxnKind
	Category     string
	Subcategory  string

	SettingKey   string
	SettingValue string

	// Snapshot carries the full replacement state for snapshot.imported and
	// state.cleared; persistence observers rewrite everything from it.
	Snapshot *Snapshot
}

// Observer receives change events after each successful mutation. Returned
// errors are logged as warnings by the store; they never undo the mutation.
type Observer interface {
	LedgerChanged(ctx context.Context, ev ChangeEvent) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev ChangeEvent) error

func (f ObserverFunc) LedgerChanged(ctx context.Context, ev ChangeEvent) error {
	return f(ctx, ev)
}

func newEntityID() string {
	return uuid.New().String()
}
