package http

import (
	"errors"
	"net/http"
	"strings"

	"ledger/internal/charts"
	"ledger/internal/core"
	"ledger/internal/ledger"
)

type balanceReport struct {
	Total    core.Money     `json:"total"`
	Accounts []core.Account `json:"accounts"`
}

func (s *Server) handleBalanceReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	writeJSON(w, http.StatusOK, balanceReport{
		Total:    s.store.TotalBalance(),
		Accounts: s.store.Accounts(),
	})
}

type periodReport struct {
	Month   string     `json:"month"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Net     core.Money `json:"net"`
}

func (s *Server) handlePeriodReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	ym, err := parseMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	income := s.store.PeriodTotal(core.Income, ym)
	expense := s.store.PeriodTotal(core.Expense, ym)
	writeJSON(w, http.StatusOK, periodReport{
		Month:   ym.String(),
		Income:  income,
		Expense: expense,
		Net:     income.Sub(expense),
	})
}

func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	ym, err := parseMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.CategoryBreakdown(ym))
}

func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	ym, err := parseMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		writeJSON(w, http.StatusOK, s.store.BudgetStatus(category, ym))
		return
	}

	statuses := make([]ledger.BudgetStatus, 0)
	for _, b := range s.store.Budgets() {
		statuses = append(statuses, s.store.BudgetStatus(b.Category, ym))
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleTrendReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	writeJSON(w, http.StatusOK, s.store.MonthlyTrend(s.trendMonths))
}

type debtReport struct {
	Outstanding core.Money  `json:"outstanding"`
	Debts       []core.Debt `json:"debts"`
}

func (s *Server) handleDebtReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	writeJSON(w, http.StatusOK, debtReport{
		Outstanding: s.store.OutstandingDebtTotal(),
		Debts:       s.store.Debts(),
	})
}

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	s.serveChart(w, r, "trend", func() ([]byte, error) {
		return charts.MonthlyTrend(s.store.MonthlyTrend(s.trendMonths))
	})
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	ym, err := parseMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveChart(w, r, "categories:"+ym.String(), func() ([]byte, error) {
		return charts.CategoryBreakdown(s.store.CategoryBreakdown(ym))
	})
}

func (s *Server) serveChart(w http.ResponseWriter, r *http.Request, key string, render func() ([]byte, error)) {
	png, ok := s.chartCache.Get(key)
	if !ok {
		var err error
		png, err = render()
		if errors.Is(err, charts.ErrNoData) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.chartCache.Set(key, png)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(png)
}
