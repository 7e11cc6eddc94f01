package ledger

import (
	"context"
	"strings"

	"ledger/internal/core"
)

// TransferFeeCategory is the category stamped on the synthetic expense that
// carries a transfer's fee against the source account.
const TransferFeeCategory = "Transfer Fee"

type (
	// CreateAccountCmd opens a new account. OpeningBalance may be zero or
	// negative (an already overdrawn card).
	CreateAccountCmd struct {
		Name           string
		Type           core.AccountType
		OpeningBalance core.Money
	}

	// TransactionCmd records a single income or expense. Transfer-kind
	// records are accepted for imports of raw data but adjust no balance;
	// transfers between accounts go through RecordTransfer.
	TransactionCmd struct {
		Kind          core.TxnKind
		Date          core.Date
		ClockTime     string
		Amount        core.Money
		AccountID     string
		Category      string
		Subcategory   string
		Vendor        string
		Brand         string
		Items         string
		Notes         string
		TaxDeductible bool
		Recurring     bool
		Installments  *core.Installments
	}

	TransferCmd struct {
		FromID string
		ToID   string
		Amount core.Money
		Fee    core.Money
		Date   core.Date
		Notes  string
	}

	DebtCmd struct {
		Counterparty string
		Date         core.Date
		Amount       core.Money
		AccountID    string
		InterestRate float64
		Purpose      string
	}

	// RepaymentCmd settles part of a debt. AccountID is the settlement
	// target: the cash account for direct-to-cash, the deposit account for
	// the other modes. Split-partial additionally names the cash account
	// receiving the remainder and the portion going to the deposit account.
	RepaymentCmd struct {
		DebtID         string
		Amount         core.Money
		AccountID      string
		Mode           core.RepaymentMode
		CashAccountID  string
		DepositPortion core.Money
		Date           core.Date
		Notes          string
	}
)

// CreateAccount appends a new account with the given starting balance.
func (s *Store) CreateAccount(ctx context.Context, cmd CreateAccountCmd) (core.Account, error) {
	acct := core.Account{
		Name:    strings.TrimSpace(cmd.Name),
		Type:    cmd.Type,
		Balance: cmd.OpeningBalance,
	}
	if err := acct.Validate(); err != nil {
		return core.Account{}, err
	}

	s.mu.Lock()
	acct.ID = s.newID()
	s.state.Accounts = append(s.state.Accounts, acct)
	s.mu.Unlock()

	s.notify(ctx, ChangeEvent{Op: OpAccountCreated, Accounts: []core.Account{acct}})
	return acct, nil
}

// RecordTransaction validates the command, applies the balance change to the
// referenced account and stores the transaction with a post-mutation balance
// snapshot. No state is touched when validation fails.
func (s *Store) RecordTransaction(ctx context.Context, cmd TransactionCmd) (core.Transaction, error) {
	if err := cmd.Kind.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := cmd.Amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := core.ValidateClockTime(cmd.ClockTime); err != nil {
		return core.Transaction{}, err
	}
	if cmd.Kind != core.Transfer {
		if cmd.AccountID == "" {
			return core.Transaction{}, core.ErrMissingAccount
		}
		if strings.TrimSpace(cmd.Category) == "" {
			return core.Transaction{}, core.ErrEmptyCategory
		}
	}

	s.mu.Lock()
	var acct *core.Account
	if cmd.AccountID != "" {
		acct = s.findAccount(cmd.AccountID)
		if acct == nil {
			s.mu.Unlock()
			return core.Transaction{}, core.ErrAccountNotFound
		}
	}

	switch cmd.Kind {
	case core.Income:
		acct.Balance = acct.Balance.Add(cmd.Amount)
	case core.Expense:
		acct.Balance = acct.Balance.Sub(cmd.Amount)
	}

	txn := s.appendTransaction(cmd, "")
	ev := ChangeEvent{Op: OpTransactionRecorded, Transactions: []core.Transaction{txn}}
	if acct != nil {
		ev.Accounts = []core.Account{*acct}
	}
	s.mu.Unlock()

	s.notify(ctx, ev)
	return txn, nil
}

// RecordTransfer moves amount between two distinct accounts. The source pays
// amount plus fee, the destination receives the gross amount; a non-zero fee
// is additionally recorded as a synthetic expense against the source.
func (s *Store) RecordTransfer(ctx context.Context, cmd TransferCmd) ([]core.Transaction, error) {
	if cmd.FromID == "" || cmd.ToID == "" {
		return nil, core.ErrMissingAccount
	}
	if cmd.FromID == cmd.ToID {
		return nil, core.ErrSameAccount
	}
	if err := cmd.Amount.Validate(); err != nil {
		return nil, err
	}
	if cmd.Fee.Cents < 0 {
		return nil, core.ErrInvalidAmount
	}

	s.mu.Lock()
	src := s.findAccount(cmd.FromID)
	dst := s.findAccount(cmd.ToID)
	if src == nil || dst == nil {
		s.mu.Unlock()
		return nil, core.ErrAccountNotFound
	}

	transferID := s.newID()
	date := s.defaultDate(cmd.Date)

	src.Balance = src.Balance.Sub(cmd.Amount)
	out := s.appendTransaction(TransactionCmd{
		Kind:      core.Transfer,
		Date:      date,
		Amount:    cmd.Amount,
		AccountID: src.ID,
		Notes:     joinNotes("Transfer to "+dst.Name, cmd.Notes),
	}, transferID)

	dst.Balance = dst.Balance.Add(cmd.Amount)
	in := s.appendTransaction(TransactionCmd{
		Kind:      core.Transfer,
		Date:      date,
		Amount:    cmd.Amount,
		AccountID: dst.ID,
		Notes:     joinNotes("Transfer from "+src.Name, cmd.Notes),
	}, transferID)

	txns := []core.Transaction{out, in}
	if cmd.Fee.Cents > 0 {
		src.Balance = src.Balance.Sub(cmd.Fee)
		fee := s.appendTransaction(TransactionCmd{
			Kind:      core.Expense,
			Date:      date,
			Amount:    cmd.Fee,
			AccountID: src.ID,
			Category:  TransferFeeCategory,
			Notes:     "Fee for transfer to " + dst.Name,
		}, transferID)
		txns = append(txns, fee)
	}

	ev := ChangeEvent{
		Op:           OpTransferRecorded,
		Accounts:     []core.Account{*src, *dst},
		Transactions: txns,
	}
	s.mu.Unlock()

	s.notify(ctx, ev)
	return txns, nil
}

// RecordDebt lends money out of the source account: the account balance drops
// by the lent amount and the debt starts outstanding with the full amount
// remaining.
func (s *Store) RecordDebt(ctx context.Context, cmd DebtCmd) (core.Debt, error) {
	if strings.TrimSpace(cmd.Counterparty) == "" {
		return core.Debt{}, core.ErrEmptyCounterparty
	}
	if err := cmd.Date.Validate(); err != nil {
		return core.Debt{}, err
	}
	if err := cmd.Amount.Validate(); err != nil {
		return core.Debt{}, err
	}
	if cmd.AccountID == "" {
		return core.Debt{}, core.ErrMissingAccount
	}

	s.mu.Lock()
	src := s.findAccount(cmd.AccountID)
	if src == nil {
		s.mu.Unlock()
		return core.Debt{}, core.ErrAccountNotFound
	}

	src.Balance = src.Balance.Sub(cmd.Amount)
	debt := core.Debt{
		ID:           s.newID(),
		Counterparty: strings.TrimSpace(cmd.Counterparty),
		AccountID:    cmd.AccountID,
		Original:     cmd.Amount,
		Remaining:    cmd.Amount,
		InterestRate: cmd.InterestRate,
		Purpose:      cmd.Purpose,
		Status:       core.DebtOutstanding,
		OpenedOn:     cmd.Date,
	}
	s.state.Debts = append(s.state.Debts, debt)
	ev := ChangeEvent{
		Op:       OpDebtRecorded,
		Accounts: []core.Account{*src},
		Debt:     &debt,
	}
	s.mu.Unlock()

	s.notify(ctx, ev)
	return debt, nil
}

// RecordRepayment appends a repayment to the debt, drops the remaining amount
// (clamped at zero, flipping status to paid), and routes the settled money to
// accounts according to the handling mode.
func (s *Store) RecordRepayment(ctx context.Context, cmd RepaymentCmd) (core.Debt, error) {
	if err := cmd.Amount.Validate(); err != nil {
		return core.Debt{}, err
	}
	if cmd.AccountID == "" {
		return core.Debt{}, core.ErrMissingAccount
	}
	if err := cmd.Mode.Validate(); err != nil {
		return core.Debt{}, err
	}
	if cmd.Mode == core.SplitPartial {
		if err := cmd.DepositPortion.Validate(); err != nil {
			return core.Debt{}, core.ErrMissingDeposit
		}
		if cmd.DepositPortion.Cents > cmd.Amount.Cents {
			return core.Debt{}, core.ErrDepositExceedsAmount
		}
		if cmd.CashAccountID == "" {
			return core.Debt{}, core.ErrMissingAccount
		}
	}

	s.mu.Lock()
	debt := s.findDebt(cmd.DebtID)
	if debt == nil {
		s.mu.Unlock()
		return core.Debt{}, core.ErrDebtNotFound
	}

	target := s.findAccount(cmd.AccountID)
	if target == nil {
		s.mu.Unlock()
		return core.Debt{}, core.ErrAccountNotFound
	}

	var touched []*core.Account
	switch cmd.Mode {
	case core.DirectToCash:
		if target.Type != core.CashAccount {
			s.mu.Unlock()
			return core.Debt{}, core.ErrNotCashAccount
		}
		target.Balance = target.Balance.Add(cmd.Amount)
		touched = []*core.Account{target}
	case core.DepositToAccount:
		target.Balance = target.Balance.Add(cmd.Amount)
		touched = []*core.Account{target}
	case core.SplitPartial:
		cash := s.findAccount(cmd.CashAccountID)
		if cash == nil {
			s.mu.Unlock()
			return core.Debt{}, core.ErrAccountNotFound
		}
		if cash.Type != core.CashAccount {
			s.mu.Unlock()
			return core.Debt{}, core.ErrNotCashAccount
		}
		target.Balance = target.Balance.Add(cmd.DepositPortion)
		cash.Balance = cash.Balance.Add(cmd.Amount.Sub(cmd.DepositPortion))
		touched = []*core.Account{target, cash}
	}

	rep := core.Repayment{
		ID:        s.newID(),
		Amount:    cmd.Amount,
		Date:      s.defaultDate(cmd.Date),
		Mode:      cmd.Mode,
		AccountID: cmd.AccountID,
		Notes:     cmd.Notes,
	}
	if cmd.Mode == core.SplitPartial {
		rep.CashAccountID = cmd.CashAccountID
		rep.DepositPortion = cmd.DepositPortion
	}
	debt.Repayments = append(debt.Repayments, rep)

	debt.Remaining = debt.Remaining.Sub(cmd.Amount)
	if debt.Remaining.Cents <= 0 {
		debt.Remaining = core.Money{}
		debt.Status = core.DebtPaid
	}

	updated := copyDebt(*debt)
	ev := ChangeEvent{Op: OpRepaymentRecorded, Debt: &updated}
	for _, a := range touched {
		ev.Accounts = append(ev.Accounts, *a)
	}
	s.mu.Unlock()

	s.notify(ctx, ev)
	return updated, nil
}

// SetBudget upserts the budget for a category: re-saving a category replaces
// its entry, it never duplicates.
func (s *Store) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	s.mu.Lock()
	replaced := false
	for i := range s.state.Budgets {
		if s.state.Budgets[i].Category == b.Category {
			s.state.Budgets[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		s.state.Budgets = append(s.state.Budgets, b)
	}
	s.mu.Unlock()

	s.notify(ctx, ChangeEvent{Op: OpBudgetSet, Budget: &b})
	return b, nil
}

// AddCategory appends a category name under a transaction kind. Append-only:
// duplicates are rejected, existing order is preserved.
func (s *Store) AddCategory(ctx context.Context, kind core.TxnKind, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	if err := kind.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, existing := range s.state.Categories[kind] {
		if existing == name {
			s.mu.Unlock()
			return core.ErrDuplicateCategory
		}
	}
	s.state.Categories[kind] = append(s.state.Categories[kind], name)
	s.mu.Unlock()

	s.notify(ctx, ChangeEvent{Op: OpCategoryAdded, CategoryKind: kind, Category: name})
	return nil
}

// AddSubcategory appends a subcategory name under a category, same
// append-only rules as AddCategory.
func (s *Store) AddSubcategory(ctx context.Context, category, name string) error {
	category = strings.TrimSpace(category)
	name = strings.TrimSpace(name)
	if category == "" || name == "" {
		return core.ErrEmptyCategory
	}

	s.mu.Lock()
	for _, existing := range s.state.Subcategories[category] {
		if existing == name {
			s.mu.Unlock()
			return core.ErrDuplicateCategory
		}
	}
	s.state.Subcategories[category] = append(s.state.Subcategories[category], name)
	s.mu.Unlock()

	s.notify(ctx, ChangeEvent{Op: OpSubcategoryAdded, Category: category, Subcategory: name})
	return nil
}

// SetSetting stores a flat key/value setting, e.g. the default cash account.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return core.ErrEmptyName
	}

	s.mu.Lock()
	s.state.Settings[key] = value
	s.mu.Unlock()

	s.notify(ctx, ChangeEvent{Op: OpSettingUpdated, SettingKey: key, SettingValue: value})
	return nil
}

// appendTransaction builds and stores a transaction from the command fields.
// Caller holds the lock and has already applied the balance change; the
// snapshot reads the account balance as it stands now.
func (s *Store) appendTransaction(cmd TransactionCmd, transferID string) core.Transaction {
	txn := core.Transaction{
		ID:            s.newID(),
		Kind:          cmd.Kind,
		Date:          s.defaultDate(cmd.Date),
		ClockTime:     cmd.ClockTime,
		Amount:        cmd.Amount,
		AccountID:     cmd.AccountID,
		Category:      cmd.Category,
		Subcategory:   cmd.Subcategory,
		Vendor:        cmd.Vendor,
		Brand:         cmd.Brand,
		Items:         cmd.Items,
		Notes:         cmd.Notes,
		TaxDeductible: cmd.TaxDeductible,
		Recurring:     cmd.Recurring,
		TransferID:    transferID,
		Seq:           s.state.NextSeq,
	}
	if cmd.Installments != nil {
		inst := *cmd.Installments
		txn.Installments = &inst
	}
	if acct := s.findAccount(cmd.AccountID); acct != nil {
		txn.BalanceAfter = acct.Balance
	}
	s.state.NextSeq++
	s.state.Transactions = append(s.state.Transactions, txn)
	return txn
}

func (s *Store) defaultDate(d core.Date) core.Date {
	if !d.IsZero() {
		return d
	}
	now := s.now()
	return core.NewDate(now.Year(), int(now.Month()), now.Day())
}

func joinNotes(prefix, notes string) string {
	if notes == "" {
		return prefix
	}
	return prefix + ". " + notes
}
