package http

import (
	"log/slog"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

type accountRequest struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	OpeningBalance string `json:"opening_balance,omitempty"`
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Accounts())
	case http.MethodPost:
		var req accountRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err)
			return
		}

		opening := core.Money{}
		if req.OpeningBalance != "" {
			parsed, err := core.ParseSignedMoney(req.OpeningBalance)
			if err != nil {
				writeError(w, r, err)
				return
			}
			opening = parsed
		}

		acct, err := s.store.CreateAccount(r.Context(), ledger.CreateAccountCmd{
			Name:           sanitizeInput(req.Name),
			Type:           core.AccountType(req.Type),
			OpeningBalance: opening,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "Account created",
			"account_id", acct.ID,
			"account_type", string(acct.Type),
			"component", "account_handler")
		writeJSON(w, http.StatusCreated, acct)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

type transactionRequest struct {
	Kind          string             `json:"kind"`
	Date          string             `json:"date"`
	ClockTime     string             `json:"clock_time,omitempty"`
	Amount        string             `json:"amount"`
	AccountID     string             `json:"account_id"`
	Category      string             `json:"category,omitempty"`
	Subcategory   string             `json:"subcategory,omitempty"`
	Vendor        string             `json:"vendor,omitempty"`
	Brand         string             `json:"brand,omitempty"`
	Items         string             `json:"items,omitempty"`
	Notes         string             `json:"notes,omitempty"`
	TaxDeductible bool               `json:"tax_deductible,omitempty"`
	Recurring     bool               `json:"recurring,omitempty"`
	Installments  *core.Installments `json:"installments,omitempty"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Transactions())
	case http.MethodPost:
		var req transactionRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err)
			return
		}

		amount, err := core.ParseMoney(req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}

		cmd := ledger.TransactionCmd{
			Kind:          core.TxnKind(req.Kind),
			ClockTime:     req.ClockTime,
			Amount:        amount,
			AccountID:     req.AccountID,
			Category:      sanitizeInput(req.Category),
			Subcategory:   sanitizeInput(req.Subcategory),
			Vendor:        sanitizeInput(req.Vendor),
			Brand:         sanitizeInput(req.Brand),
			Items:         sanitizeInput(req.Items),
			Notes:         sanitizeInput(req.Notes),
			TaxDeductible: req.TaxDeductible,
			Recurring:     req.Recurring,
			Installments:  req.Installments,
		}
		if req.Date != "" {
			cmd.Date, err = core.ParseDate(req.Date)
			if err != nil {
				writeError(w, r, err)
				return
			}
		}

		txn, err := s.store.RecordTransaction(r.Context(), cmd)
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "Transaction recorded",
			"transaction_id", txn.ID,
			"kind", string(txn.Kind),
			"amount_cents", txn.Amount.Cents,
			"category", txn.Category,
			"component", "transaction_handler")
		writeJSON(w, http.StatusCreated, txn)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	writeJSON(w, http.StatusOK, s.store.RecentTransactions(s.recentLimit))
}

type transferRequest struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Amount string `json:"amount"`
	Fee    string `json:"fee,omitempty"`
	Date   string `json:"date,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fee := core.Money{}
	if req.Fee != "" {
		if fee, err = core.ParseMoney(req.Fee); err != nil {
			writeError(w, r, err)
			return
		}
	}

	cmd := ledger.TransferCmd{
		FromID: req.FromID,
		ToID:   req.ToID,
		Amount: amount,
		Fee:    fee,
		Notes:  sanitizeInput(req.Notes),
	}
	if req.Date != "" {
		if cmd.Date, err = core.ParseDate(req.Date); err != nil {
			writeError(w, r, err)
			return
		}
	}

	legs, err := s.store.RecordTransfer(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Transfer recorded",
		"from_account", req.FromID,
		"to_account", req.ToID,
		"amount_cents", amount.Cents,
		"fee_cents", fee.Cents,
		"component", "transfer_handler")
	writeJSON(w, http.StatusCreated, legs)
}

type debtRequest struct {
	Counterparty string  `json:"counterparty"`
	Date         string  `json:"date"`
	Amount       string  `json:"amount"`
	AccountID    string  `json:"account_id"`
	InterestRate float64 `json:"interest_rate,omitempty"`
	Purpose      string  `json:"purpose,omitempty"`
}

func (s *Server) handleDebts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Debts())
	case http.MethodPost:
		var req debtRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err)
			return
		}

		amount, err := core.ParseMoney(req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		date, err := core.ParseDate(req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}

		debt, err := s.store.RecordDebt(r.Context(), ledger.DebtCmd{
			Counterparty: sanitizeInput(req.Counterparty),
			Date:         date,
			Amount:       amount,
			AccountID:    req.AccountID,
			InterestRate: req.InterestRate,
			Purpose:      sanitizeInput(req.Purpose),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		slog.InfoContext(r.Context(), "Debt recorded",
			"debt_id", debt.ID,
			"amount_cents", debt.Original.Cents,
			"component", "debt_handler")
		writeJSON(w, http.StatusCreated, debt)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

type repaymentRequest struct {
	Amount         string `json:"amount"`
	AccountID      string `json:"account_id"`
	Mode           string `json:"mode"`
	CashAccountID  string `json:"cash_account_id,omitempty"`
	DepositPortion string `json:"deposit_portion,omitempty"`
	Date           string `json:"date,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

func (s *Server) handleRepayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req repaymentRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}

	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cmd := ledger.RepaymentCmd{
		DebtID:        r.PathValue("id"),
		Amount:        amount,
		AccountID:     req.AccountID,
		Mode:          core.RepaymentMode(req.Mode),
		CashAccountID: req.CashAccountID,
		Notes:         sanitizeInput(req.Notes),
	}
	if req.DepositPortion != "" {
		if cmd.DepositPortion, err = core.ParseMoney(req.DepositPortion); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Date != "" {
		if cmd.Date, err = core.ParseDate(req.Date); err != nil {
			writeError(w, r, err)
			return
		}
	}

	debt, err := s.store.RecordRepayment(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Repayment recorded",
		"debt_id", debt.ID,
		"amount_cents", amount.Cents,
		"mode", req.Mode,
		"debt_status", string(debt.Status),
		"component", "debt_handler")
	writeJSON(w, http.StatusCreated, debt)
}

type budgetRequest struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Rollover bool   `json:"rollover,omitempty"`
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Budgets())
	case http.MethodPost:
		var req budgetRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err)
			return
		}

		amount, err := core.ParseMoney(req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}

		budget, err := s.store.SetBudget(r.Context(), core.Budget{
			Category: sanitizeInput(req.Category),
			Amount:   amount,
			Rollover: req.Rollover,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, budget)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

type categoryRequest struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Categories())
	case http.MethodPost:
		var req categoryRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err)
			return
		}
		if err := s.store.AddCategory(r.Context(), core.TxnKind(req.Kind), sanitizeInput(req.Name)); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.store.Categories())
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

type subcategoryRequest struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

func (s *Server) handleSubcategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Subcategories())
	case http.MethodPost:
		var req subcategoryRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err)
			return
		}
		if err := s.store.AddSubcategory(r.Context(), sanitizeInput(req.Category), sanitizeInput(req.Name)); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.store.Subcategories())
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

type settingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Settings())
	case http.MethodPost:
		var req settingRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err)
			return
		}
		if err := s.store.SetSetting(r.Context(), sanitizeInput(req.Key), sanitizeInput(req.Value)); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.store.Settings())
	default:
		methodNotAllowed(w, "GET, POST")
	}
}
