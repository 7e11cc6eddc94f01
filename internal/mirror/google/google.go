// Package google mirrors ledger activity into a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/core"
	"ledger/internal/mirror"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var (
	_ mirror.TransactionWriter = (*Client)(nil)
	_ mirror.DebtWriter        = (*Client)(nil)
)

// NewClient creates a mirror client for one spreadsheet. Credentials come
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewClient(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName = strings.TrimSpace(sheetName); sheetName == "" {
		sheetName = "Ledger"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, err
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendTransaction appends one row to the transactions sheet:
// date, time, kind, amount, account, category/subcategory, vendor, notes.
func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) error {
	category := t.Category
	if t.Subcategory != "" {
		category += " / " + t.Subcategory
	}
	row := []any{
		t.Date.Format("2006-01-02"),
		t.ClockTime,
		string(t.Kind),
		t.Amount.Units(),
		t.AccountID,
		category,
		t.Vendor,
		t.Notes,
		t.ID,
	}
	if err := c.appendRow(ctx, c.sheetName, row); err != nil {
		return fmt.Errorf("append transaction %s: %w", t.ID, err)
	}

	slog.DebugContext(ctx, "Mirrored transaction",
		"transaction_id", t.ID,
		"sheet", c.sheetName)
	return nil
}

// AppendDebt appends one row to the debts sheet with the debt's current
// remaining amount and status.
func (c *Client) AppendDebt(ctx context.Context, d core.Debt) error {
	row := []any{
		d.OpenedOn.Format("2006-01-02"),
		d.Counterparty,
		d.Original.Units(),
		d.Remaining.Units(),
		string(d.Status),
		d.ID,
	}
	if err := c.appendRow(ctx, c.sheetName+" Debts", row); err != nil {
		return fmt.Errorf("append debt %s: %w", d.ID, err)
	}
	return nil
}

func (c *Client) appendRow(ctx context.Context, sheet string, row []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, sheet+"!A:Z", vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}
