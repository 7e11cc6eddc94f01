// Package ledger implements the mutation engine and report queries over one
// user's financial state: accounts, transactions, debts, budgets and the
// category taxonomy. Persistence and rendering are outside collaborators;
// they observe successful mutations, the engine never calls back into them
// for reads.
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ledger/internal/core"
)

// State is the complete in-memory ledger. One instance per Store; all access
// goes through Store methods.
type State struct {
	Accounts      []core.Account
	Transactions  []core.Transaction
	Debts         []core.Debt
	Budgets       []core.Budget
	Categories    map[core.TxnKind][]string
	Subcategories map[string][]string
	Settings      map[string]string
	NextSeq       int64
}

// DefaultState returns the empty shape every store starts from.
func DefaultState() State {
	return State{
		Categories:    make(map[core.TxnKind][]string),
		Subcategories: make(map[string][]string),
		Settings:      make(map[string]string),
		NextSeq:       1,
	}
}

// Store guards the ledger state and applies validated commands to it.
// Commands mutate under the lock, then deliver a ChangeEvent to every
// subscribed observer outside the lock. Observer failures are logged and
// never fail the command.
type Store struct {
	mu        sync.Mutex
	state     State
	observers []Observer
	now       func() time.Time
	newID     func() string
}

func New() *Store {
	return NewFromState(DefaultState())
}

// NewFromState builds a store around previously persisted state, for example
// the rows loaded from SQLite at startup.
func NewFromState(st State) *Store {
	normalize(&st)
	return &Store{
		state: st,
		now:   time.Now,
		newID: newEntityID,
	}
}

// Subscribe registers an observer for future mutations. Not safe to call
// concurrently with commands; wire observers before serving traffic.
func (s *Store) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Store) notify(ctx context.Context, ev ChangeEvent) {
	for _, o := range s.observers {
		if err := o.LedgerChanged(ctx, ev); err != nil {
			slog.WarnContext(ctx, "Ledger observer failed",
				"op", ev.Op,
				"error", err)
		}
	}
}

// normalize repairs invariants that persisted or imported state may lack:
// nil containers and a NextSeq that must stay above every stored sequence.
func normalize(st *State) {
	if st.Categories == nil {
		st.Categories = make(map[core.TxnKind][]string)
	}
	if st.Subcategories == nil {
		st.Subcategories = make(map[string][]string)
	}
	if st.Settings == nil {
		st.Settings = make(map[string]string)
	}
	if st.NextSeq < 1 {
		st.NextSeq = 1
	}
	for _, t := range st.Transactions {
		if t.Seq >= st.NextSeq {
			st.NextSeq = t.Seq + 1
		}
	}
}

func (s *Store) findAccount(id string) *core.Account {
	for i := range s.state.Accounts {
		if s.state.Accounts[i].ID == id {
			return &s.state.Accounts[i]
		}
	}
	return nil
}

func (s *Store) findDebt(id string) *core.Debt {
	for i := range s.state.Debts {
		if s.state.Debts[i].ID == id {
			return &s.state.Debts[i]
		}
	}
	return nil
}

// Accounts returns a copy of all accounts in creation order.
func (s *Store) Accounts() []core.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.state.Accounts...)
}

// Account returns the account with the given id.
func (s *Store) Account(id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAccount(id); a != nil {
		return *a, nil
	}
	return core.Account{}, core.ErrAccountNotFound
}

// Transactions returns a copy of all transactions in insertion order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTransactions(s.state.Transactions)
}

// Debts returns a copy of all debts in creation order.
func (s *Store) Debts() []core.Debt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDebts(s.state.Debts)
}

// Debt returns the debt with the given id.
func (s *Store) Debt(id string) (core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.findDebt(id); d != nil {
		return copyDebt(*d), nil
	}
	return core.Debt{}, core.ErrDebtNotFound
}

// Budgets returns a copy of all budgets.
func (s *Store) Budgets() []core.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Budget(nil), s.state.Budgets...)
}

// Categories returns the kind-to-names taxonomy.
func (s *Store) Categories() map[core.TxnKind][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTaxonomy(s.state.Categories)
}

// Subcategories returns the category-to-subcategory taxonomy.
func (s *Store) Subcategories() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.state.Subcategories))
	for k, v := range s.state.Subcategories {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Settings returns a copy of the flat settings map.
func (s *Store) Settings() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.state.Settings))
	for k, v := range s.state.Settings {
		out[k] = v
	}
	return out
}

func copyTransactions(in []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(in))
	for i, t := range in {
		out[i] = copyTransaction(t)
	}
	return out
}

func copyTransaction(t core.Transaction) core.Transaction {
	if t.Installments != nil {
		inst := *t.Installments
		t.Installments = &inst
	}
	return t
}

func copyDebts(in []core.Debt) []core.Debt {
	out := make([]core.Debt, len(in))
	for i, d := range in {
		out[i] = copyDebt(d)
	}
	return out
}

func copyDebt(d core.Debt) core.Debt {
	d.Repayments = append([]core.Repayment(nil), d.Repayments...)
	return d
}

func copyTaxonomy(in map[core.TxnKind][]string) map[core.TxnKind][]string {
	out := make(map[core.TxnKind][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
