// Package storage persists the ledger state in SQLite. The repository plays
// two roles: it rebuilds the full in-memory state at startup and it observes
// the ledger engine, applying every change event inside one transaction.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping verifies the database connection, used by readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadState reads every store into a ledger.State for engine startup.
// Insertion order is rowid order; transactions come back in seq order.
func (r *SQLiteRepository) LoadState(ctx context.Context) (ledger.State, error) {
	st := ledger.DefaultState()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, balance_cents FROM accounts ORDER BY rowid`)
	if err != nil {
		return st, fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Balance.Cents); err != nil {
			return st, fmt.Errorf("scan account: %w", err)
		}
		st.Accounts = append(st.Accounts, a)
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("iterate accounts: %w", err)
	}

	if st.Transactions, err = r.loadTransactions(ctx); err != nil {
		return st, err
	}
	if st.Debts, err = r.loadDebts(ctx); err != nil {
		return st, err
	}

	brows, err := r.db.QueryContext(ctx,
		`SELECT category, amount_cents, rollover FROM budgets ORDER BY rowid`)
	if err != nil {
		return st, fmt.Errorf("load budgets: %w", err)
	}
	defer brows.Close()
	for brows.Next() {
		var b core.Budget
		if err := brows.Scan(&b.Category, &b.Amount.Cents, &b.Rollover); err != nil {
			return st, fmt.Errorf("scan budget: %w", err)
		}
		st.Budgets = append(st.Budgets, b)
	}
	if err := brows.Err(); err != nil {
		return st, fmt.Errorf("iterate budgets: %w", err)
	}

	crows, err := r.db.QueryContext(ctx,
		`SELECT kind, name FROM categories ORDER BY rowid`)
	if err != nil {
		return st, fmt.Errorf("load categories: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var kind, name string
		if err := crows.Scan(&kind, &name); err != nil {
			return st, fmt.Errorf("scan category: %w", err)
		}
		k := core.TxnKind(kind)
		st.Categories[k] = append(st.Categories[k], name)
	}
	if err := crows.Err(); err != nil {
		return st, fmt.Errorf("iterate categories: %w", err)
	}

	srows, err := r.db.QueryContext(ctx,
		`SELECT category, name FROM subcategories ORDER BY rowid`)
	if err != nil {
		return st, fmt.Errorf("load subcategories: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var category, name string
		if err := srows.Scan(&category, &name); err != nil {
			return st, fmt.Errorf("scan subcategory: %w", err)
		}
		st.Subcategories[category] = append(st.Subcategories[category], name)
	}
	if err := srows.Err(); err != nil {
		return st, fmt.Errorf("iterate subcategories: %w", err)
	}

	krows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return st, fmt.Errorf("load settings: %w", err)
	}
	defer krows.Close()
	for krows.Next() {
		var k, v string
		if err := krows.Scan(&k, &v); err != nil {
			return st, fmt.Errorf("scan setting: %w", err)
		}
		st.Settings[k] = v
	}
	if err := krows.Err(); err != nil {
		return st, fmt.Errorf("iterate settings: %w", err)
	}

	return st, nil
}

func (r *SQLiteRepository) loadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, date, clock_time, amount_cents, account_id,
		       category, subcategory, vendor, brand, items, notes,
		       tax_deductible, recurring,
		       has_installments, installment_current, installment_total, installment_remaining,
		       balance_after_cents, transfer_id, seq
		FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t            core.Transaction
			date         string
			hasInst      bool
			cur, tot, rm int
		)
		if err := rows.Scan(
			&t.ID, &t.Kind, &date, &t.ClockTime, &t.Amount.Cents, &t.AccountID,
			&t.Category, &t.Subcategory, &t.Vendor, &t.Brand, &t.Items, &t.Notes,
			&t.TaxDeductible, &t.Recurring,
			&hasInst, &cur, &tot, &rm,
			&t.BalanceAfter.Cents, &t.TransferID, &t.Seq,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: bad date %q", t.ID, date)
		}
		if hasInst {
			t.Installments = &core.Installments{Current: cur, Total: tot, Remaining: rm}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) loadDebts(ctx context.Context) ([]core.Debt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, counterparty, account_id, original_cents, remaining_cents,
		       interest_rate, purpose, status, opened_on
		FROM debts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load debts: %w", err)
	}
	defer rows.Close()

	var out []core.Debt
	index := make(map[string]int)
	for rows.Next() {
		var (
			d      core.Debt
			opened string
		)
		if err := rows.Scan(&d.ID, &d.Counterparty, &d.AccountID,
			&d.Original.Cents, &d.Remaining.Cents,
			&d.InterestRate, &d.Purpose, &d.Status, &opened); err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		if d.OpenedOn, err = core.ParseDate(opened); err != nil {
			return nil, fmt.Errorf("debt %s: bad date %q", d.ID, opened)
		}
		index[d.ID] = len(out)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate debts: %w", err)
	}

	rrows, err := r.db.QueryContext(ctx, `
		SELECT id, debt_id, amount_cents, date, mode, account_id,
		       cash_account_id, deposit_portion_cents, notes
		FROM repayments ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load repayments: %w", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		var (
			rep    core.Repayment
			debtID string
			date   string
		)
		if err := rrows.Scan(&rep.ID, &debtID, &rep.Amount.Cents, &date, &rep.Mode,
			&rep.AccountID, &rep.CashAccountID, &rep.DepositPortion.Cents, &rep.Notes); err != nil {
			return nil, fmt.Errorf("scan repayment: %w", err)
		}
		if rep.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("repayment %s: bad date %q", rep.ID, date)
		}
		if i, ok := index[debtID]; ok {
			out[i].Repayments = append(out[i].Repayments, rep)
		}
	}
	if err := rrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repayments: %w", err)
	}

	return out, nil
}

// GetTransaction fetches one transaction by id, for the mirror worker.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	txns, err := r.loadTransactions(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	for _, t := range txns {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, sql.ErrNoRows)
}

// GetDebt fetches one debt with its repayments, for the mirror worker.
func (r *SQLiteRepository) GetDebt(ctx context.Context, id string) (core.Debt, error) {
	debts, err := r.loadDebts(ctx)
	if err != nil {
		return core.Debt{}, err
	}
	for _, d := range debts {
		if d.ID == id {
			return d, nil
		}
	}
	return core.Debt{}, fmt.Errorf("debt %s: %w", id, sql.ErrNoRows)
}

// LedgerChanged implements ledger.Observer: it applies one change event
// inside a single database transaction. The engine logs a warning when this
// fails; the in-memory mutation stands either way.
func (r *SQLiteRepository) LedgerChanged(ctx context.Context, ev ledger.ChangeEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	switch ev.Op {
	case ledger.OpSnapshotImported, ledger.OpStateCleared:
		if err := r.rewriteAll(ctx, tx, ev.Snapshot); err != nil {
			return err
		}
	case ledger.OpCategoryAdded:
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (kind, name) VALUES (?, ?)`,
			string(ev.CategoryKind), ev.Category); err != nil {
			return fmt.Errorf("insert category: %w", err)
		}
	case ledger.OpSubcategoryAdded:
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO subcategories (category, name) VALUES (?, ?)`,
			ev.Category, ev.Subcategory); err != nil {
			return fmt.Errorf("insert subcategory: %w", err)
		}
	case ledger.OpSettingUpdated:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			ev.SettingKey, ev.SettingValue); err != nil {
			return fmt.Errorf("upsert setting: %w", err)
		}
	default:
		if err := r.applyEntities(ctx, tx, ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Ledger change persisted", "op", ev.Op)
	return nil
}

func (r *SQLiteRepository) applyEntities(ctx context.Context, tx *sql.Tx, ev ledger.ChangeEvent) error {
	for _, a := range ev.Accounts {
		if err := upsertAccount(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, t := range ev.Transactions {
		if err := upsertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}
	if ev.Debt != nil {
		if err := upsertDebt(ctx, tx, *ev.Debt); err != nil {
			return err
		}
	}
	if ev.Budget != nil {
		if err := upsertBudget(ctx, tx, *ev.Budget); err != nil {
			return err
		}
	}
	return nil
}

// rewriteAll truncates every store and reinserts the snapshot contents.
// Used for imports and clears: the replacement is all-or-nothing.
func (r *SQLiteRepository) rewriteAll(ctx context.Context, tx *sql.Tx, snap *ledger.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("rewrite: nil snapshot")
	}
	for _, table := range []string{
		"settings", "subcategories", "categories", "budgets",
		"repayments", "debts", "transactions", "accounts",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	for _, a := range snap.Accounts {
		if err := upsertAccount(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, t := range snap.Transactions {
		if err := upsertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, d := range snap.Debts {
		if err := upsertDebt(ctx, tx, d); err != nil {
			return err
		}
	}
	for _, b := range snap.Budgets {
		if err := upsertBudget(ctx, tx, b); err != nil {
			return err
		}
	}
	for kind, names := range snap.Categories {
		for _, name := range names {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (kind, name) VALUES (?, ?)`,
				string(kind), name); err != nil {
				return fmt.Errorf("insert category: %w", err)
			}
		}
	}
	for category, names := range snap.Subcategories {
		for _, name := range names {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO subcategories (category, name) VALUES (?, ?)`,
				category, name); err != nil {
				return fmt.Errorf("insert subcategory: %w", err)
			}
		}
	}
	for k, v := range snap.Settings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert setting: %w", err)
		}
	}
	return nil
}

func upsertAccount(ctx context.Context, tx *sql.Tx, a core.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, name, type, balance_cents)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			balance_cents = excluded.balance_cents`,
		a.ID, a.Name, string(a.Type), a.Balance.Cents)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.ID, err)
	}
	return nil
}

func upsertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	var (
		hasInst      bool
		cur, tot, rm int
	)
	if t.Installments != nil {
		hasInst = true
		cur, tot, rm = t.Installments.Current, t.Installments.Total, t.Installments.Remaining
	}
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO transactions (
			id, kind, date, clock_time, amount_cents, account_id,
			category, subcategory, vendor, brand, items, notes,
			tax_deductible, recurring,
			has_installments, installment_current, installment_total, installment_remaining,
			balance_after_cents, transfer_id, seq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Kind), t.Date.Format("2006-01-02"), t.ClockTime,
		t.Amount.Cents, t.AccountID,
		t.Category, t.Subcategory, t.Vendor, t.Brand, t.Items, t.Notes,
		t.TaxDeductible, t.Recurring,
		hasInst, cur, tot, rm,
		t.BalanceAfter.Cents, t.TransferID, t.Seq)
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", t.ID, err)
	}
	return nil
}

func upsertDebt(ctx context.Context, tx *sql.Tx, d core.Debt) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO debts (id, counterparty, account_id, original_cents,
			remaining_cents, interest_rate, purpose, status, opened_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remaining_cents = excluded.remaining_cents,
			status = excluded.status`,
		d.ID, d.Counterparty, d.AccountID, d.Original.Cents,
		d.Remaining.Cents, d.InterestRate, d.Purpose, string(d.Status),
		d.OpenedOn.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("upsert debt %s: %w", d.ID, err)
	}
	for _, rep := range d.Repayments {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO repayments (id, debt_id, amount_cents, date,
				mode, account_id, cash_account_id, deposit_portion_cents, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.ID, d.ID, rep.Amount.Cents, rep.Date.Format("2006-01-02"),
			string(rep.Mode), rep.AccountID, rep.CashAccountID,
			rep.DepositPortion.Cents, rep.Notes); err != nil {
			return fmt.Errorf("insert repayment %s: %w", rep.ID, err)
		}
	}
	return nil
}

func upsertBudget(ctx context.Context, tx *sql.Tx, b core.Budget) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO budgets (category, amount_cents, rollover)
		VALUES (?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			rollover = excluded.rollover`,
		b.Category, b.Amount.Cents, b.Rollover)
	if err != nil {
		return fmt.Errorf("upsert budget %s: %w", b.Category, err)
	}
	return nil
}
