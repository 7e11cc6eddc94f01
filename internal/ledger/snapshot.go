package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledger/internal/core"
)

// SnapshotSchemaVersion identifies the export document layout. Bump on any
// incompatible change to the Snapshot shape.
const SnapshotSchemaVersion = 1

// ErrMalformedSnapshot reports a structurally invalid import document.
var ErrMalformedSnapshot = errors.New("malformed snapshot document")

// Snapshot is the self-describing export document holding the full ledger
// state. It round-trips through ImportSnapshot with no loss.
type Snapshot struct {
	SchemaVersion int                       `json:"schema_version"`
	CreatedAt     time.Time                 `json:"created_at"`
	Accounts      []core.Account            `json:"accounts"`
	Transactions  []core.Transaction        `json:"transactions"`
	Categories    map[core.TxnKind][]string `json:"categories"`
	Subcategories map[string][]string       `json:"subcategories"`
	Budgets       []core.Budget             `json:"budgets"`
	Debts         []core.Debt               `json:"debts"`
	Settings      map[string]string         `json:"settings"`
}

// ExportSnapshot copies the full current state into a snapshot document.
func (s *Store) ExportSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportLocked()
}

func (s *Store) exportLocked() Snapshot {
	settings := make(map[string]string, len(s.state.Settings))
	for k, v := range s.state.Settings {
		settings[k] = v
	}
	subs := make(map[string][]string, len(s.state.Subcategories))
	for k, v := range s.state.Subcategories {
		subs[k] = append([]string(nil), v...)
	}
	return Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		CreatedAt:     s.now().UTC(),
		Accounts:      append([]core.Account{}, s.state.Accounts...),
		Transactions:  copyTransactions(s.state.Transactions),
		Categories:    copyTaxonomy(s.state.Categories),
		Subcategories: subs,
		Budgets:       append([]core.Budget{}, s.state.Budgets...),
		Debts:         copyDebts(s.state.Debts),
		Settings:      settings,
	}
}

// ParseSnapshot validates the top-level shape of an uploaded document before
// decoding it: every store must be present and of the expected container
// kind. A structurally invalid document is rejected wholesale so the caller
// never applies a partial import.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	arrays := []string{"accounts", "transactions", "budgets", "debts"}
	for _, key := range arrays {
		raw, ok := top[key]
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: missing %q", ErrMalformedSnapshot, key)
		}
		if !startsWith(raw, '[') {
			return Snapshot{}, fmt.Errorf("%w: %q is not a list", ErrMalformedSnapshot, key)
		}
	}
	objects := []string{"categories", "subcategories", "settings"}
	for _, key := range objects {
		raw, ok := top[key]
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: missing %q", ErrMalformedSnapshot, key)
		}
		if !startsWith(raw, '{') {
			return Snapshot{}, fmt.Errorf("%w: %q is not an object", ErrMalformedSnapshot, key)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return snap, nil
}

func startsWith(raw json.RawMessage, c byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b == c
		}
	}
	return false
}

// ImportSnapshot replaces the entire state with the document's contents in
// one all-or-nothing swap. The previous state is untouched on any error.
func (s *Store) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if snap.SchemaVersion > SnapshotSchemaVersion {
		return fmt.Errorf("%w: unsupported schema version %d", ErrMalformedSnapshot, snap.SchemaVersion)
	}

	st := State{
		Accounts:      append([]core.Account{}, snap.Accounts...),
		Transactions:  copyTransactions(snap.Transactions),
		Debts:         copyDebts(snap.Debts),
		Budgets:       append([]core.Budget{}, snap.Budgets...),
		Categories:    copyTaxonomy(snap.Categories),
		Subcategories: snap.Subcategories,
		Settings:      snap.Settings,
	}
	normalize(&st)

	s.mu.Lock()
	s.state = st
	applied := s.exportLocked()
	s.mu.Unlock()

	s.notify(ctx, ChangeEvent{Op: OpSnapshotImported, Snapshot: &applied})
	return nil
}

// ClearAll resets the ledger to the empty default shape. Irreversible; the
// caller is responsible for confirming user intent first.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	s.state = DefaultState()
	cleared := s.exportLocked()
	s.mu.Unlock()

	s.notify(ctx, ChangeEvent{Op: OpStateCleared, Snapshot: &cleared})
}
