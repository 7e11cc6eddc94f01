package ledger

import (
	"context"
	"testing"

	"ledger/internal/core"
)

func seedTxn(t *testing.T, s *Store, kind core.TxnKind, date core.Date, cents int64, accountID, category string) core.Transaction {
	t.Helper()
	txn, err := s.RecordTransaction(context.Background(), TransactionCmd{
		Kind:      kind,
		Date:      date,
		Amount:    core.Money{Cents: cents},
		AccountID: accountID,
		Category:  category,
	})
	if err != nil {
		t.Fatalf("seed txn: %v", err)
	}
	return txn
}

func TestTotalBalance(t *testing.T) {
	s := newTestStore()
	if s.TotalBalance().Cents != 0 {
		t.Fatalf("empty store should total zero")
	}
	mustAccount(t, s, "A", core.CashAccount, 1000)
	mustAccount(t, s, "B", core.BankAccount, -250)
	mustAccount(t, s, "C", core.CardAccount, 4000)
	if got := s.TotalBalance().Cents; got != 4750 {
		t.Fatalf("total %d, expected 4750", got)
	}
}

func TestPeriodTotal(t *testing.T) {
	s := newTestStore()
	a := mustAccount(t, s, "Bank", core.BankAccount, 0)

	seedTxn(t, s, core.Income, core.NewDate(2025, 6, 1), 50000, a.ID, "Salary")
	seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 3), 7000, a.ID, "Groceries")
	seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 28), 3000, a.ID, "Fun")
	seedTxn(t, s, core.Expense, core.NewDate(2025, 5, 31), 9999, a.ID, "Groceries")

	june := core.YearMonth{Year: 2025, Month: 6}
	if got := s.PeriodTotal(core.Expense, june).Cents; got != 10000 {
		t.Fatalf("june expenses %d, expected 10000", got)
	}
	if got := s.PeriodTotal(core.Income, june).Cents; got != 50000 {
		t.Fatalf("june income %d, expected 50000", got)
	}
	if got := s.PeriodTotal(core.Expense, core.YearMonth{Year: 2025, Month: 7}).Cents; got != 0 {
		t.Fatalf("empty month should be zero, got %d", got)
	}
}

func TestCategoryBreakdown(t *testing.T) {
	s := newTestStore()
	a := mustAccount(t, s, "Bank", core.BankAccount, 0)
	june := core.YearMonth{Year: 2025, Month: 6}

	if got := s.CategoryBreakdown(june); len(got) != 0 {
		t.Fatalf("empty month expected empty breakdown, got %v", got)
	}

	seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 2), 6000, a.ID, "Groceries")
	seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 9), 3000, a.ID, "Transport")
	seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 17), 1000, a.ID, "Fun")
	seedTxn(t, s, core.Income, core.NewDate(2025, 6, 1), 99999, a.ID, "Salary") // ignored

	got := s.CategoryBreakdown(june)
	if len(got) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(got))
	}
	if got[0].Category != "Groceries" || got[0].Amount.Cents != 6000 || got[0].Percent != 60 {
		t.Fatalf("unexpected top share %+v", got[0])
	}
	if got[1].Category != "Transport" || got[1].Percent != 30 {
		t.Fatalf("unexpected second share %+v", got[1])
	}
	if got[2].Category != "Fun" || got[2].Percent != 10 {
		t.Fatalf("unexpected third share %+v", got[2])
	}
}

func TestBudgetStatus(t *testing.T) {
	s := newTestStore()
	a := mustAccount(t, s, "Bank", core.BankAccount, 0)
	june := core.YearMonth{Year: 2025, Month: 6}

	if _, err := s.SetBudget(context.Background(), core.Budget{Category: "Groceries", Amount: core.Money{Cents: 50000}}); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 2), 20000, a.ID, "Groceries")
	seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 20), 5000, a.ID, "Groceries")
	seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 21), 7777, a.ID, "Fun")

	st := s.BudgetStatus("Groceries", june)
	if st.Spent.Cents != 25000 || st.BudgetAmount.Cents != 50000 || st.Remaining.Cents != 25000 {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Percent != 50 {
		t.Fatalf("percent %f, expected 50", st.Percent)
	}

	// No budget set for the category: zero budget, spend still reported.
	st = s.BudgetStatus("Fun", june)
	if st.BudgetAmount.Cents != 0 || st.Spent.Cents != 7777 || st.Percent != 0 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestMonthlyTrend(t *testing.T) {
	s := newTestStore() // "now" pinned to 2025-06-15
	a := mustAccount(t, s, "Bank", core.BankAccount, 0)

	seedTxn(t, s, core.Income, core.NewDate(2025, 4, 5), 10000, a.ID, "Salary")
	seedTxn(t, s, core.Expense, core.NewDate(2025, 4, 6), 4000, a.ID, "Rent")
	seedTxn(t, s, core.Income, core.NewDate(2025, 6, 1), 20000, a.ID, "Salary")
	seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 10), 2500, a.ID, "Fun")

	trend := s.MonthlyTrend(3)
	if len(trend) != 3 {
		t.Fatalf("expected 3 months, got %d", len(trend))
	}
	if trend[0].Month != "2025-04" || trend[1].Month != "2025-05" || trend[2].Month != "2025-06" {
		t.Fatalf("months out of order: %+v", trend)
	}
	if trend[0].Net.Cents != 6000 {
		t.Fatalf("april net %d, expected 6000", trend[0].Net.Cents)
	}
	if trend[1].Income.Cents != 0 || trend[1].Expense.Cents != 0 {
		t.Fatalf("may should be empty: %+v", trend[1])
	}
	if trend[2].Income.Cents != 20000 || trend[2].Expense.Cents != 2500 || trend[2].Net.Cents != 17500 {
		t.Fatalf("unexpected june flow %+v", trend[2])
	}

	if got := s.MonthlyTrend(0); got != nil {
		t.Fatalf("n=0 should return nil, got %v", got)
	}
}

func TestMonthlyTrendCrossesYearBoundary(t *testing.T) {
	s := newTestStore()
	trend := s.MonthlyTrend(7) // back to December 2024
	if trend[0].Month != "2024-12" {
		t.Fatalf("expected trailing window to start at 2024-12, got %s", trend[0].Month)
	}
}

func TestRecentTransactions(t *testing.T) {
	s := newTestStore()
	a := mustAccount(t, s, "Bank", core.BankAccount, 0)

	first := seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 1), 100, a.ID, "Old")
	tied1 := seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 10), 200, a.ID, "TiedA")
	tied2 := seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 10), 300, a.ID, "TiedB")
	timed, err := s.RecordTransaction(context.Background(), TransactionCmd{
		Kind: core.Expense, Date: core.NewDate(2025, 6, 10), ClockTime: "18:45",
		Amount: core.Money{Cents: 400}, AccountID: a.ID, Category: "Evening",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	got := s.RecentTransactions(3)
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	// Clock time beats no clock time within the same day; ties keep
	// insertion order.
	if got[0].ID != timed.ID {
		t.Fatalf("expected timed txn first, got %s", got[0].ID)
	}
	if got[1].ID != tied1.ID || got[2].ID != tied2.ID {
		t.Fatalf("tie order wrong: %s, %s", got[1].ID, got[2].ID)
	}

	all := s.RecentTransactions(100)
	if len(all) != 4 {
		t.Fatalf("expected all 4, got %d", len(all))
	}
	if all[3].ID != first.ID {
		t.Fatalf("oldest should be last, got %s", all[3].ID)
	}
}

func TestOutstandingDebtTotal(t *testing.T) {
	s := newTestStore()
	bank := mustAccount(t, s, "Bank", core.BankAccount, 100000)
	cash := mustAccount(t, s, "Wallet", core.CashAccount, 0)

	d1, err := s.RecordDebt(context.Background(), DebtCmd{
		Counterparty: "A", Date: core.NewDate(2025, 6, 1),
		Amount: core.Money{Cents: 10000}, AccountID: bank.ID,
	})
	if err != nil {
		t.Fatalf("debt: %v", err)
	}
	if _, err := s.RecordDebt(context.Background(), DebtCmd{
		Counterparty: "B", Date: core.NewDate(2025, 6, 2),
		Amount: core.Money{Cents: 5000}, AccountID: bank.ID,
	}); err != nil {
		t.Fatalf("debt: %v", err)
	}

	if got := s.OutstandingDebtTotal().Cents; got != 15000 {
		t.Fatalf("outstanding %d, expected 15000", got)
	}

	// Pay the first one off entirely; it drops out of the total.
	if _, err := s.RecordRepayment(context.Background(), RepaymentCmd{
		DebtID: d1.ID, Amount: core.Money{Cents: 10000},
		AccountID: cash.ID, Mode: core.DirectToCash,
	}); err != nil {
		t.Fatalf("repayment: %v", err)
	}
	if got := s.OutstandingDebtTotal().Cents; got != 5000 {
		t.Fatalf("outstanding %d, expected 5000", got)
	}
}

// The worked example from the product notes: one cash account, one expense.
func TestScenarioCashExpense(t *testing.T) {
	s := newTestStore()
	cash := mustAccount(t, s, "Cash", core.CashAccount, 100000)

	txn := seedTxn(t, s, core.Expense, core.NewDate(2025, 6, 14), 20000, cash.ID, "Groceries")
	if got := balance(t, s, cash.ID); got != 80000 {
		t.Fatalf("balance %d, expected 80000", got)
	}
	if txn.BalanceAfter.Cents != 80000 {
		t.Fatalf("snapshot %d, expected 80000", txn.BalanceAfter.Cents)
	}

	shares := s.CategoryBreakdown(core.YearMonth{Year: 2025, Month: 6})
	if len(shares) != 1 || shares[0].Category != "Groceries" || shares[0].Amount.Cents != 20000 || shares[0].Percent != 100 {
		t.Fatalf("unexpected breakdown %+v", shares)
	}
}
