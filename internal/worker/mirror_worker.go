// Package worker drives the spreadsheet mirror: it reacts to ledger events
// from AMQP, loads the touched records from SQLite and appends them to the
// mirror sheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/ledger"
	"ledger/internal/mirror"
	"ledger/internal/storage"
)

type MirrorWorker struct {
	storage *storage.SQLiteRepository
	txns    mirror.TransactionWriter
	debts   mirror.DebtWriter
}

func NewMirrorWorker(storage *storage.SQLiteRepository, txns mirror.TransactionWriter, debts mirror.DebtWriter) *MirrorWorker {
	return &MirrorWorker{
		storage: storage,
		txns:    txns,
		debts:   debts,
	}
}

// HandleEvent processes a single ledger event from AMQP. Errors bubble up so
// the consumer requeues the delivery.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"op", msg.Op,
		"transactions", len(msg.TransactionIDs),
		"debt_id", msg.DebtID)

	switch msg.Op {
	case ledger.OpTransactionRecorded, ledger.OpTransferRecorded:
		for _, id := range msg.TransactionIDs {
			txn, err := w.storage.GetTransaction(ctx, id)
			if err != nil {
				return fmt.Errorf("get transaction from storage: %w", err)
			}
			if err := w.txns.AppendTransaction(ctx, txn); err != nil {
				return fmt.Errorf("mirror transaction: %w", err)
			}
		}
	case ledger.OpDebtRecorded, ledger.OpRepaymentRecorded:
		if w.debts == nil {
			slog.WarnContext(ctx, "No debt writer configured, skipping", "debt_id", msg.DebtID)
			return nil
		}
		debt, err := w.storage.GetDebt(ctx, msg.DebtID)
		if err != nil {
			return fmt.Errorf("get debt from storage: %w", err)
		}
		if err := w.debts.AppendDebt(ctx, debt); err != nil {
			return fmt.Errorf("mirror debt: %w", err)
		}
	default:
		slog.DebugContext(ctx, "Ignoring event", "op", msg.Op)
	}

	return nil
}

// RunSweep logs a periodic heartbeat with the current row counts so a stuck
// mirror shows up in the logs. Runs until the context is cancelled.
func (w *MirrorWorker) RunSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st, err := w.storage.LoadState(ctx)
			if err != nil {
				slog.WarnContext(ctx, "Sweep failed to read storage", "error", err)
				continue
			}
			slog.InfoContext(ctx, "Mirror sweep",
				"transactions", len(st.Transactions),
				"debts", len(st.Debts),
				"accounts", len(st.Accounts))
		}
	}
}
