package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ledger/internal/core"
)

func newTestStore() *Store {
	s := New()
	s.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	return s
}

func mustAccount(t *testing.T, s *Store, name string, typ core.AccountType, openingCents int64) core.Account {
	t.Helper()
	acct, err := s.CreateAccount(context.Background(), CreateAccountCmd{
		Name:           name,
		Type:           typ,
		OpeningBalance: core.Money{Cents: openingCents},
	})
	if err != nil {
		t.Fatalf("create account %s: %v", name, err)
	}
	return acct
}

func balance(t *testing.T, s *Store, id string) int64 {
	t.Helper()
	acct, err := s.Account(id)
	if err != nil {
		t.Fatalf("account %s: %v", id, err)
	}
	return acct.Balance.Cents
}

func TestCreateAccountValidation(t *testing.T) {
	s := newTestStore()
	if _, err := s.CreateAccount(context.Background(), CreateAccountCmd{Name: "  ", Type: core.CashAccount}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := s.CreateAccount(context.Background(), CreateAccountCmd{Name: "X", Type: "stocks"}); !errors.Is(err, core.ErrInvalidAccountType) {
		t.Fatalf("expected ErrInvalidAccountType, got %v", err)
	}
	acct := mustAccount(t, s, "Wallet", core.CashAccount, 500)
	if acct.ID == "" || acct.Balance.Cents != 500 {
		t.Fatalf("unexpected account %+v", acct)
	}
}

// Balance equals opening balance plus the signed sum of all recorded amounts.
func TestTransactionBalanceConsistency(t *testing.T) {
	s := newTestStore()
	acct := mustAccount(t, s, "Bank", core.BankAccount, 100000)

	moves := []struct {
		kind  core.TxnKind
		cents int64
	}{
		{core.Income, 25000},
		{core.Expense, 4000},
		{core.Expense, 1250},
		{core.Income, 300},
		{core.Expense, 9999},
	}
	signed := int64(0)
	for _, m := range moves {
		txn, err := s.RecordTransaction(context.Background(), TransactionCmd{
			Kind:      m.kind,
			Date:      core.NewDate(2025, 6, 10),
			Amount:    core.Money{Cents: m.cents},
			AccountID: acct.ID,
			Category:  "General",
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if m.kind == core.Income {
			signed += m.cents
		} else {
			signed -= m.cents
		}
		if txn.BalanceAfter.Cents != 100000+signed {
			t.Fatalf("balance snapshot %d, expected %d", txn.BalanceAfter.Cents, 100000+signed)
		}
	}
	if got := balance(t, s, acct.ID); got != 100000+signed {
		t.Fatalf("final balance %d, expected %d", got, 100000+signed)
	}
}

func TestRecordTransactionValidation(t *testing.T) {
	s := newTestStore()
	acct := mustAccount(t, s, "Bank", core.BankAccount, 0)

	cases := []struct {
		name string
		cmd  TransactionCmd
		want error
	}{
		{"zero amount", TransactionCmd{Kind: core.Expense, AccountID: acct.ID, Category: "Food"}, core.ErrInvalidAmount},
		{"bad kind", TransactionCmd{Kind: "refund", Amount: core.Money{Cents: 100}, AccountID: acct.ID, Category: "Food"}, core.ErrInvalidKind},
		{"missing account", TransactionCmd{Kind: core.Expense, Amount: core.Money{Cents: 100}, Category: "Food"}, core.ErrMissingAccount},
		{"missing category", TransactionCmd{Kind: core.Expense, Amount: core.Money{Cents: 100}, AccountID: acct.ID}, core.ErrEmptyCategory},
		{"unknown account", TransactionCmd{Kind: core.Expense, Amount: core.Money{Cents: 100}, AccountID: "nope", Category: "Food"}, core.ErrAccountNotFound},
		{"bad clock time", TransactionCmd{Kind: core.Expense, Amount: core.Money{Cents: 100}, AccountID: acct.ID, Category: "Food", ClockTime: "25:00"}, core.ErrInvalidClockTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.RecordTransaction(context.Background(), tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if got := balance(t, s, acct.ID); got != 0 {
		t.Fatalf("rejected commands mutated balance to %d", got)
	}
	if n := len(s.Transactions()); n != 0 {
		t.Fatalf("rejected commands stored %d transactions", n)
	}
}

// Transfer conservation: balance(A)+balance(B) drops by exactly the fee.
func TestRecordTransferConservation(t *testing.T) {
	s := newTestStore()
	a := mustAccount(t, s, "A", core.BankAccount, 100000)
	b := mustAccount(t, s, "B", core.BankAccount, 0)

	txns, err := s.RecordTransfer(context.Background(), TransferCmd{
		FromID: a.ID, ToID: b.ID,
		Amount: core.Money{Cents: 30000},
		Fee:    core.Money{Cents: 1000},
		Date:   core.NewDate(2025, 6, 12),
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balance(t, s, a.ID); got != 69000 {
		t.Fatalf("source balance %d, expected 69000", got)
	}
	if got := balance(t, s, b.ID); got != 30000 {
		t.Fatalf("destination balance %d, expected 30000", got)
	}
	if sum := balance(t, s, a.ID) + balance(t, s, b.ID); sum != 100000-1000 {
		t.Fatalf("combined balance %d, expected fee-only leakage", sum)
	}

	if len(txns) != 3 {
		t.Fatalf("expected 2 legs + fee, got %d records", len(txns))
	}
	fee := txns[2]
	if fee.Kind != core.Expense || fee.Category != TransferFeeCategory || fee.AccountID != a.ID || fee.Amount.Cents != 1000 {
		t.Fatalf("unexpected fee transaction %+v", fee)
	}
	for _, txn := range txns {
		if txn.TransferID != txns[0].TransferID {
			t.Fatalf("transfer records not linked: %+v", txns)
		}
	}
}

func TestRecordTransferNoFee(t *testing.T) {
	s := newTestStore()
	a := mustAccount(t, s, "A", core.BankAccount, 5000)
	b := mustAccount(t, s, "B", core.CashAccount, 0)

	txns, err := s.RecordTransfer(context.Background(), TransferCmd{
		FromID: a.ID, ToID: b.ID, Amount: core.Money{Cents: 2000},
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(txns))
	}
	if balance(t, s, a.ID) != 3000 || balance(t, s, b.ID) != 2000 {
		t.Fatalf("balances %d/%d, expected 3000/2000", balance(t, s, a.ID), balance(t, s, b.ID))
	}
}

// A transfer onto itself always fails validation and never mutates state.
func TestRecordTransferSameAccount(t *testing.T) {
	s := newTestStore()
	a := mustAccount(t, s, "A", core.BankAccount, 5000)

	_, err := s.RecordTransfer(context.Background(), TransferCmd{
		FromID: a.ID, ToID: a.ID, Amount: core.Money{Cents: 100},
	})
	if !errors.Is(err, core.ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	if got := balance(t, s, a.ID); got != 5000 {
		t.Fatalf("balance mutated to %d", got)
	}
	if n := len(s.Transactions()); n != 0 {
		t.Fatalf("stored %d transactions", n)
	}
}

func TestRecordTransferValidation(t *testing.T) {
	s := newTestStore()
	a := mustAccount(t, s, "A", core.BankAccount, 5000)

	cases := []struct {
		name string
		cmd  TransferCmd
		want error
	}{
		{"missing from", TransferCmd{ToID: a.ID, Amount: core.Money{Cents: 100}}, core.ErrMissingAccount},
		{"missing to", TransferCmd{FromID: a.ID, Amount: core.Money{Cents: 100}}, core.ErrMissingAccount},
		{"zero amount", TransferCmd{FromID: a.ID, ToID: "other"}, core.ErrInvalidAmount},
		{"negative fee", TransferCmd{FromID: a.ID, ToID: "other", Amount: core.Money{Cents: 100}, Fee: core.Money{Cents: -1}}, core.ErrInvalidAmount},
		{"unknown destination", TransferCmd{FromID: a.ID, ToID: "nope", Amount: core.Money{Cents: 100}}, core.ErrAccountNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.RecordTransfer(context.Background(), tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRecordDebt(t *testing.T) {
	s := newTestStore()
	a := mustAccount(t, s, "Bank", core.BankAccount, 50000)

	debt, err := s.RecordDebt(context.Background(), DebtCmd{
		Counterparty: "Alice",
		Date:         core.NewDate(2025, 6, 1),
		Amount:       core.Money{Cents: 20000},
		AccountID:    a.ID,
		InterestRate: 2.5,
		Purpose:      "car repair",
	})
	if err != nil {
		t.Fatalf("record debt: %v", err)
	}
	if debt.Status != core.DebtOutstanding || debt.Remaining.Cents != 20000 {
		t.Fatalf("unexpected debt %+v", debt)
	}
	if got := balance(t, s, a.ID); got != 30000 {
		t.Fatalf("source balance %d, expected 30000", got)
	}

	cases := []struct {
		name string
		cmd  DebtCmd
		want error
	}{
		{"no counterparty", DebtCmd{Date: core.NewDate(2025, 6, 1), Amount: core.Money{Cents: 1}, AccountID: a.ID}, core.ErrEmptyCounterparty},
		{"no date", DebtCmd{Counterparty: "B", Amount: core.Money{Cents: 1}, AccountID: a.ID}, core.ErrInvalidDate},
		{"no amount", DebtCmd{Counterparty: "B", Date: core.NewDate(2025, 6, 1), AccountID: a.ID}, core.ErrInvalidAmount},
		{"no account", DebtCmd{Counterparty: "B", Date: core.NewDate(2025, 6, 1), Amount: core.Money{Cents: 1}}, core.ErrMissingAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.RecordDebt(context.Background(), tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// Repayments summing past the original amount clamp remaining at zero and
// flip the status to paid; short sums keep it outstanding.
func TestRepaymentClampAndStatus(t *testing.T) {
	s := newTestStore()
	bank := mustAccount(t, s, "Bank", core.BankAccount, 100000)
	cash := mustAccount(t, s, "Wallet", core.CashAccount, 0)

	debt, err := s.RecordDebt(context.Background(), DebtCmd{
		Counterparty: "Bob",
		Date:         core.NewDate(2025, 6, 1),
		Amount:       core.Money{Cents: 10000},
		AccountID:    bank.ID,
	})
	if err != nil {
		t.Fatalf("record debt: %v", err)
	}

	got, err := s.RecordRepayment(context.Background(), RepaymentCmd{
		DebtID: debt.ID, Amount: core.Money{Cents: 4000},
		AccountID: cash.ID, Mode: core.DirectToCash,
		Date: core.NewDate(2025, 6, 5),
	})
	if err != nil {
		t.Fatalf("repayment: %v", err)
	}
	if got.Status != core.DebtOutstanding || got.Remaining.Cents != 6000 {
		t.Fatalf("after partial repayment: %+v", got)
	}
	if balance(t, s, cash.ID) != 4000 {
		t.Fatalf("cash balance %d, expected 4000", balance(t, s, cash.ID))
	}

	// Overpay: remaining clamps at zero.
	got, err = s.RecordRepayment(context.Background(), RepaymentCmd{
		DebtID: debt.ID, Amount: core.Money{Cents: 7000},
		AccountID: cash.ID, Mode: core.DirectToCash,
		Date: core.NewDate(2025, 6, 20),
	})
	if err != nil {
		t.Fatalf("repayment: %v", err)
	}
	if got.Status != core.DebtPaid || got.Remaining.Cents != 0 {
		t.Fatalf("after overpayment: %+v", got)
	}
	if len(got.Repayments) != 2 {
		t.Fatalf("expected 2 repayment records, got %d", len(got.Repayments))
	}
	if s.OutstandingDebtTotal().Cents != 0 {
		t.Fatalf("outstanding total should be zero")
	}
}

func TestRepaymentModes(t *testing.T) {
	s := newTestStore()
	bank := mustAccount(t, s, "Bank", core.BankAccount, 100000)
	cash := mustAccount(t, s, "Wallet", core.CashAccount, 0)
	deposit := mustAccount(t, s, "Savings", core.BankAccount, 0)

	debt, err := s.RecordDebt(context.Background(), DebtCmd{
		Counterparty: "Carol",
		Date:         core.NewDate(2025, 6, 1),
		Amount:       core.Money{Cents: 50000},
		AccountID:    bank.ID,
	})
	if err != nil {
		t.Fatalf("record debt: %v", err)
	}

	t.Run("direct-to-cash requires a cash account", func(t *testing.T) {
		_, err := s.RecordRepayment(context.Background(), RepaymentCmd{
			DebtID: debt.ID, Amount: core.Money{Cents: 1000},
			AccountID: deposit.ID, Mode: core.DirectToCash,
		})
		if !errors.Is(err, core.ErrNotCashAccount) {
			t.Fatalf("expected ErrNotCashAccount, got %v", err)
		}
	})

	t.Run("deposit-to-account credits the chosen account", func(t *testing.T) {
		if _, err := s.RecordRepayment(context.Background(), RepaymentCmd{
			DebtID: debt.ID, Amount: core.Money{Cents: 10000},
			AccountID: deposit.ID, Mode: core.DepositToAccount,
			Date: core.NewDate(2025, 6, 10),
		}); err != nil {
			t.Fatalf("repayment: %v", err)
		}
		if balance(t, s, deposit.ID) != 10000 {
			t.Fatalf("deposit balance %d, expected 10000", balance(t, s, deposit.ID))
		}
	})

	t.Run("split-partial routes portions to both accounts", func(t *testing.T) {
		if _, err := s.RecordRepayment(context.Background(), RepaymentCmd{
			DebtID: debt.ID, Amount: core.Money{Cents: 9000},
			AccountID: deposit.ID, Mode: core.SplitPartial,
			CashAccountID:  cash.ID,
			DepositPortion: core.Money{Cents: 6000},
			Date:           core.NewDate(2025, 6, 11),
		}); err != nil {
			t.Fatalf("repayment: %v", err)
		}
		if balance(t, s, deposit.ID) != 16000 {
			t.Fatalf("deposit balance %d, expected 16000", balance(t, s, deposit.ID))
		}
		if balance(t, s, cash.ID) != 3000 {
			t.Fatalf("cash balance %d, expected 3000", balance(t, s, cash.ID))
		}
	})

	t.Run("split-partial rejects deposit above the amount", func(t *testing.T) {
		before := balance(t, s, deposit.ID)
		_, err := s.RecordRepayment(context.Background(), RepaymentCmd{
			DebtID: debt.ID, Amount: core.Money{Cents: 1000},
			AccountID: deposit.ID, Mode: core.SplitPartial,
			CashAccountID:  cash.ID,
			DepositPortion: core.Money{Cents: 2000},
		})
		if !errors.Is(err, core.ErrDepositExceedsAmount) {
			t.Fatalf("expected ErrDepositExceedsAmount, got %v", err)
		}
		if balance(t, s, deposit.ID) != before {
			t.Fatalf("rejected repayment mutated balance")
		}
	})

	t.Run("unknown debt", func(t *testing.T) {
		_, err := s.RecordRepayment(context.Background(), RepaymentCmd{
			DebtID: "nope", Amount: core.Money{Cents: 1000},
			AccountID: cash.ID, Mode: core.DirectToCash,
		})
		if !errors.Is(err, core.ErrDebtNotFound) {
			t.Fatalf("expected ErrDebtNotFound, got %v", err)
		}
	})
}

// Re-saving a category's budget replaces the entry instead of appending.
func TestSetBudgetUpsert(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	if _, err := s.SetBudget(ctx, core.Budget{Category: "Groceries", Amount: core.Money{Cents: 50000}}); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	if _, err := s.SetBudget(ctx, core.Budget{Category: "Groceries", Amount: core.Money{Cents: 70000}, Rollover: true}); err != nil {
		t.Fatalf("set budget: %v", err)
	}

	budgets := s.Budgets()
	if len(budgets) != 1 {
		t.Fatalf("expected 1 budget, got %d", len(budgets))
	}
	b := budgets[0]
	if b.Category != "Groceries" || b.Amount.Cents != 70000 || !b.Rollover {
		t.Fatalf("unexpected budget %+v", b)
	}

	if _, err := s.SetBudget(ctx, core.Budget{Category: "", Amount: core.Money{Cents: 1}}); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	if _, err := s.SetBudget(ctx, core.Budget{Category: "Travel"}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestAddCategory(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	for _, name := range []string{"Groceries", "Rent", "Fun"} {
		if err := s.AddCategory(ctx, core.Expense, name); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	if err := s.AddCategory(ctx, core.Expense, "Rent"); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}
	if err := s.AddCategory(ctx, core.Expense, " "); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	if err := s.AddCategory(ctx, "refund", "X"); !errors.Is(err, core.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}

	got := s.Categories()[core.Expense]
	want := []string{"Groceries", "Rent", "Fun"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order not preserved: expected %v, got %v", want, got)
		}
	}

	if err := s.AddSubcategory(ctx, "Groceries", "Supermarket"); err != nil {
		t.Fatalf("add subcategory: %v", err)
	}
	if err := s.AddSubcategory(ctx, "Groceries", "Supermarket"); !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}
}

func TestObserversSeeMutations(t *testing.T) {
	s := newTestStore()
	var ops []string
	s.Subscribe(ObserverFunc(func(_ context.Context, ev ChangeEvent) error {
		ops = append(ops, ev.Op)
		return nil
	}))
	// A failing observer must not fail the command.
	s.Subscribe(ObserverFunc(func(_ context.Context, _ ChangeEvent) error {
		return errors.New("disk full")
	}))

	acct := mustAccount(t, s, "Bank", core.BankAccount, 0)
	if _, err := s.RecordTransaction(context.Background(), TransactionCmd{
		Kind: core.Income, Amount: core.Money{Cents: 100},
		AccountID: acct.ID, Category: "Salary",
		Date: core.NewDate(2025, 6, 2),
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	want := []string{OpAccountCreated, OpTransactionRecorded}
	if len(ops) != len(want) {
		t.Fatalf("expected ops %v, got %v", want, ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("expected ops %v, got %v", want, ops)
		}
	}
}
