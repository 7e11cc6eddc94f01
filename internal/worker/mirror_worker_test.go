package worker

import (
	"context"
	"path/filepath"
	"testing"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/storage"
)

type fakeTxnWriter struct {
	appended []core.Transaction
}

func (f *fakeTxnWriter) AppendTransaction(ctx context.Context, t core.Transaction) error {
	f.appended = append(f.appended, t)
	return nil
}

type fakeDebtWriter struct {
	appended []core.Debt
}

func (f *fakeDebtWriter) AppendDebt(ctx context.Context, d core.Debt) error {
	f.appended = append(f.appended, d)
	return nil
}

// seedLedger opens a temp-dir repository and plays a few commands through a
// store wired to it, returning the repo and the recorded entity ids.
func seedLedger(t *testing.T) (repo *storage.SQLiteRepository, txnID, debtID string) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := ledger.New()
	store.Subscribe(repo)
	ctx := context.Background()

	acct, err := store.CreateAccount(ctx, ledger.CreateAccountCmd{
		Name: "Checking", Type: core.BankAccount,
		OpeningBalance: core.Money{Cents: 100000},
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	txn, err := store.RecordTransaction(ctx, ledger.TransactionCmd{
		Kind: core.Expense, Date: core.NewDate(2025, 6, 1),
		Amount: core.Money{Cents: 2500}, AccountID: acct.ID, Category: "Groceries",
	})
	if err != nil {
		t.Fatalf("record transaction: %v", err)
	}

	debt, err := store.RecordDebt(ctx, ledger.DebtCmd{
		Counterparty: "Alice", Date: core.NewDate(2025, 6, 2),
		Amount: core.Money{Cents: 10000}, AccountID: acct.ID,
	})
	if err != nil {
		t.Fatalf("record debt: %v", err)
	}

	return repo, txn.ID, debt.ID
}

func TestHandleEventMirrorsTransaction(t *testing.T) {
	repo, txnID, _ := seedLedger(t)
	txns := &fakeTxnWriter{}
	w := NewMirrorWorker(repo, txns, &fakeDebtWriter{})

	msg := amqp.NewLedgerEventMessage(ledger.OpTransactionRecorded, []string{txnID}, "")
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(txns.appended) != 1 {
		t.Fatalf("mirrored %d transactions, want 1", len(txns.appended))
	}
	if txns.appended[0].ID != txnID {
		t.Fatalf("mirrored id=%s want %s", txns.appended[0].ID, txnID)
	}
}

func TestHandleEventMirrorsDebt(t *testing.T) {
	repo, _, debtID := seedLedger(t)
	debts := &fakeDebtWriter{}
	w := NewMirrorWorker(repo, &fakeTxnWriter{}, debts)

	msg := amqp.NewLedgerEventMessage(ledger.OpDebtRecorded, nil, debtID)
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(debts.appended) != 1 || debts.appended[0].ID != debtID {
		t.Fatalf("debt not mirrored: %+v", debts.appended)
	}
}

func TestHandleEventUnknownRecordFails(t *testing.T) {
	repo, _, _ := seedLedger(t)
	w := NewMirrorWorker(repo, &fakeTxnWriter{}, &fakeDebtWriter{})

	msg := amqp.NewLedgerEventMessage(ledger.OpTransactionRecorded, []string{"missing"}, "")
	if err := w.HandleEvent(context.Background(), msg); err == nil {
		t.Fatalf("expected error for unknown transaction id")
	}
}

func TestHandleEventIgnoresOtherOps(t *testing.T) {
	repo, _, _ := seedLedger(t)
	txns := &fakeTxnWriter{}
	w := NewMirrorWorker(repo, txns, &fakeDebtWriter{})

	msg := amqp.NewLedgerEventMessage(ledger.OpBudgetSet, nil, "")
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(txns.appended) != 0 {
		t.Fatalf("unexpected mirror writes: %d", len(txns.appended))
	}
}

func TestHandleEventNoDebtWriterSkips(t *testing.T) {
	repo, _, debtID := seedLedger(t)
	w := NewMirrorWorker(repo, &fakeTxnWriter{}, nil)

	msg := amqp.NewLedgerEventMessage(ledger.OpRepaymentRecorded, nil, debtID)
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleEvent with nil debt writer: %v", err)
	}
}
