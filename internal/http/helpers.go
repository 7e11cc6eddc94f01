package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// parseMonth reads a "month" query parameter in "YYYY-MM" form, defaulting to
// the current calendar month.
func parseMonth(r *http.Request) (core.YearMonth, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		now := time.Now()
		return core.YearMonth{Year: now.Year(), Month: int(now.Month())}, nil
	}
	return core.ParseYearMonth(v)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// clientIP extracts the calling address, honouring proxy headers when set.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed encoding response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrAccountNotFound),
		errors.Is(err, core.ErrDebtNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrMalformedSnapshot):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidClockTime),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyCounterparty),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrMissingAccount),
		errors.Is(err, core.ErrSameAccount),
		errors.Is(err, core.ErrNotCashAccount),
		errors.Is(err, core.ErrDuplicateCategory),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidAccountType),
		errors.Is(err, core.ErrInvalidHandlingMode),
		errors.Is(err, core.ErrMissingDeposit),
		errors.Is(err, core.ErrDepositExceedsAmount):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// decodeBody unmarshals a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	w.WriteHeader(http.StatusMethodNotAllowed)
}
