package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ledger/internal/ledger"
)

// maxImportBytes bounds snapshot uploads.
const maxImportBytes = 16 << 20

// handleExport streams the full ledger state as a pretty-printed JSON
// document, with a date-stamped filename for download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	snap := s.store.ExportSnapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("ledger-export-%s.json", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

// handleImport replaces the entire ledger state with an uploaded snapshot.
// The swap is all-or-nothing: a malformed document leaves state untouched.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		badRequest(w, fmt.Errorf("failed reading request body: %w", err))
		return
	}

	snap, err := ledger.ParseSnapshot(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.store.ImportSnapshot(r.Context(), snap); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Snapshot imported",
		"accounts", len(snap.Accounts),
		"transactions", len(snap.Transactions),
		"debts", len(snap.Debts),
		"component", "snapshot_handler")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "imported",
		"accounts":     len(snap.Accounts),
		"transactions": len(snap.Transactions),
		"debts":        len(snap.Debts),
		"budgets":      len(snap.Budgets),
	})
}

// handleClear wipes the ledger back to its initial state.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	s.store.ClearAll(r.Context())
	slog.InfoContext(r.Context(), "Ledger state cleared", "component", "snapshot_handler")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady verifies the backing database before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.readiness != nil {
		if err := s.readiness.Ping(ctx); err != nil {
			checks["database"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}
	checks["chart_cache"] = fmt.Sprintf("ok (%d entries)", s.chartCache.Size())

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}
