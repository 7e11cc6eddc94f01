package ledger

import (
	"sort"

	"ledger/internal/core"
)

type (
	// CategoryShare is one slice of a month's expense breakdown.
	CategoryShare struct {
		Category string     `json:"category"`
		Amount   core.Money `json:"amount"`
		// Percent of the month's total expenses, 0-100.
		Percent float64 `json:"percent"`
	}

	// BudgetStatus compares a category's monthly spend to its budget.
	BudgetStatus struct {
		Category     string     `json:"category"`
		Spent        core.Money `json:"spent"`
		BudgetAmount core.Money `json:"budget_amount"`
		Remaining    core.Money `json:"remaining"`
		// Percent of the budget already spent, 0 when no budget is set.
		Percent float64 `json:"percent"`
	}

	// MonthFlow is one month of the income/expense trend.
	MonthFlow struct {
		Month   string     `json:"month"` // "YYYY-MM"
		Income  core.Money `json:"income"`
		Expense core.Money `json:"expense"`
		Net     core.Money `json:"net"`
	}
)

// TotalBalance sums the cached balances of all accounts.
func (s *Store) TotalBalance() core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total core.Money
	for _, a := range s.state.Accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// PeriodTotal sums transaction amounts of the given kind inside one calendar
// month. Transfer legs only count when asked for explicitly.
func (s *Store) PeriodTotal(kind core.TxnKind, ym core.YearMonth) core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periodTotalLocked(kind, ym)
}

func (s *Store) periodTotalLocked(kind core.TxnKind, ym core.YearMonth) core.Money {
	var total core.Money
	for _, t := range s.state.Transactions {
		if t.Kind == kind && ym.Contains(t.Date) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// CategoryBreakdown maps each category to its summed expense amount for the
// month, with the share of the monthly expense total. Sorted by amount
// descending, category name ascending on ties.
func (s *Store) CategoryBreakdown(ym core.YearMonth) []CategoryShare {
	s.mu.Lock()
	defer s.mu.Unlock()

	sums := make(map[string]core.Money)
	var monthTotal core.Money
	for _, t := range s.state.Transactions {
		if t.Kind != core.Expense || !ym.Contains(t.Date) {
			continue
		}
		sums[t.Category] = sums[t.Category].Add(t.Amount)
		monthTotal = monthTotal.Add(t.Amount)
	}

	out := make([]CategoryShare, 0, len(sums))
	for cat, amount := range sums {
		share := CategoryShare{Category: cat, Amount: amount}
		if monthTotal.Cents > 0 {
			share.Percent = float64(amount.Cents) / float64(monthTotal.Cents) * 100
		}
		out = append(out, share)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// BudgetStatus reports spend versus budget for one category and month. A
// missing budget yields a zero budget amount and zero percent rather than an
// error.
func (s *Store) BudgetStatus(category string, ym core.YearMonth) BudgetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var spent core.Money
	for _, t := range s.state.Transactions {
		if t.Kind == core.Expense && t.Category == category && ym.Contains(t.Date) {
			spent = spent.Add(t.Amount)
		}
	}

	status := BudgetStatus{
		Category:  category,
		Spent:     spent,
		Remaining: core.Money{Cents: -spent.Cents},
	}
	for _, b := range s.state.Budgets {
		if b.Category == category {
			status.BudgetAmount = b.Amount
			status.Remaining = b.Amount.Sub(spent)
			status.Percent = float64(spent.Cents) / float64(b.Amount.Cents) * 100
			break
		}
	}
	return status
}

// MonthlyTrend returns income, expense and net for the trailing n calendar
// months including the current one, oldest first.
func (s *Store) MonthlyTrend(n int) []MonthFlow {
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ym := core.YearMonth{Year: now.Year(), Month: int(now.Month())}
	months := make([]core.YearMonth, n)
	for i := n - 1; i >= 0; i-- {
		months[i] = ym
		ym = ym.Prev()
	}

	out := make([]MonthFlow, n)
	for i, m := range months {
		income := s.periodTotalLocked(core.Income, m)
		expense := s.periodTotalLocked(core.Expense, m)
		out[i] = MonthFlow{
			Month:   m.String(),
			Income:  income,
			Expense: expense,
			Net:     income.Sub(expense),
		}
	}
	return out
}

// OutstandingDebtTotal sums the remaining amount of all outstanding debts.
func (s *Store) OutstandingDebtTotal() core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total core.Money
	for _, d := range s.state.Debts {
		if d.Outstanding() {
			total = total.Add(d.Remaining)
		}
	}
	return total
}

// RecentTransactions returns the n most recent transactions ordered by date
// and clock time descending. The sort is stable, so transactions sharing a
// timestamp keep their insertion order.
func (s *Store) RecentTransactions(n int) []core.Transaction {
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	txns := copyTransactions(s.state.Transactions)
	s.mu.Unlock()

	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date.Time) {
			return txns[i].Date.After(txns[j].Date.Time)
		}
		return txns[i].ClockTime > txns[j].ClockTime
	})
	if len(txns) > n {
		txns = txns[:n]
	}
	return txns
}
