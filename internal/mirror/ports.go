// Package mirror defines the ports for the off-device ledger mirror: an
// append-only copy of recorded transactions and debt activity kept in an
// external spreadsheet.
package mirror

import (
	"context"

	"ledger/internal/core"
)

type (
	// TransactionWriter appends one transaction row to the mirror.
	TransactionWriter interface {
		AppendTransaction(ctx context.Context, t core.Transaction) error
	}

	// DebtWriter appends one debt status row to the mirror.
	DebtWriter interface {
		AppendDebt(ctx context.Context, d core.Debt) error
	}
)
