package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income   TxnKind = "income"
	Expense  TxnKind = "expense"
	Transfer TxnKind = "transfer"
)

const (
	CashAccount AccountType = "cash"
	BankAccount AccountType = "bank"
	CardAccount AccountType = "card"
)

const (
	DebtOutstanding DebtStatus = "outstanding"
	DebtPaid        DebtStatus = "paid"
)

const (
	DirectToCash     RepaymentMode = "direct-to-cash"
	DepositToAccount RepaymentMode = "deposit-to-account"
	SplitPartial     RepaymentMode = "split-partial"
)

type (
	TxnKind       string
	AccountType   string
	DebtStatus    string
	RepaymentMode string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Account struct {
		ID      string      `json:"id"`
		Name    string      `json:"name"`
		Type    AccountType `json:"type"`
		Balance Money       `json:"balance"`
	}

	// Installments tracks position within a payment plan attached to a
	// single transaction.
	Installments struct {
		Current   int `json:"current"`
		Total     int `json:"total"`
		Remaining int `json:"remaining"`
	}

	Transaction struct {
		ID            string        `json:"id"`
		Kind          TxnKind       `json:"kind"`
		Date          Date          `json:"date"`
		ClockTime     string        `json:"clock_time,omitempty"` // "HH:MM", optional
		Amount        Money         `json:"amount"`
		AccountID     string        `json:"account_id"`
		Category      string        `json:"category,omitempty"`
		Subcategory   string        `json:"subcategory,omitempty"`
		Vendor        string        `json:"vendor,omitempty"`
		Brand         string        `json:"brand,omitempty"`
		Items         string        `json:"items,omitempty"`
		Notes         string        `json:"notes,omitempty"`
		TaxDeductible bool          `json:"tax_deductible,omitempty"`
		Recurring     bool          `json:"recurring,omitempty"`
		Installments  *Installments `json:"installments,omitempty"`
		// BalanceAfter snapshots the owning account's balance right after
		// this transaction was applied. Audit trail, never re-derived.
		BalanceAfter Money `json:"balance_after"`
		// TransferID links the two legs of a transfer and its fee expense.
		TransferID string `json:"transfer_id,omitempty"`
		// Seq is assigned at insertion and breaks ordering ties.
		Seq int64 `json:"seq"`
	}

	Repayment struct {
		ID     string        `json:"id"`
		Amount Money         `json:"amount"`
		Date   Date          `json:"date"`
		Mode   RepaymentMode `json:"mode"`
		// AccountID is the settlement target: the cash account for
		// direct-to-cash, the deposit account otherwise.
		AccountID      string `json:"account_id"`
		CashAccountID  string `json:"cash_account_id,omitempty"` // split-partial remainder target
		DepositPortion Money  `json:"deposit_portion,omitempty"` // split-partial only
		Notes          string `json:"notes,omitempty"`
	}

	Debt struct {
		ID           string      `json:"id"`
		Counterparty string      `json:"counterparty"`
		AccountID    string      `json:"account_id"`
		Original     Money       `json:"original"`
		Remaining    Money       `json:"remaining"`
		InterestRate float64     `json:"interest_rate,omitempty"`
		Purpose      string      `json:"purpose,omitempty"`
		Status       DebtStatus  `json:"status"`
		OpenedOn     Date        `json:"opened_on"`
		Repayments   []Repayment `json:"repayments"`
	}

	Budget struct {
		Category string `json:"category"`
		Amount   Money  `json:"amount"`
		Rollover bool   `json:"rollover"`
	}
)

var (
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidClockTime     = errors.New("invalid clock time")
	ErrEmptyName            = errors.New("empty name")
	ErrEmptyCounterparty    = errors.New("empty counterparty")
	ErrEmptyCategory        = errors.New("empty category")
	ErrMissingAccount       = errors.New("missing account")
	ErrSameAccount          = errors.New("transfer source and destination must differ")
	ErrAccountNotFound      = errors.New("account not found")
	ErrDebtNotFound         = errors.New("debt not found")
	ErrNotCashAccount       = errors.New("settlement account is not a cash account")
	ErrDuplicateCategory    = errors.New("category already exists")
	ErrInvalidKind          = errors.New("invalid transaction kind")
	ErrInvalidAccountType   = errors.New("invalid account type")
	ErrInvalidHandlingMode  = errors.New("invalid settlement handling mode")
	ErrMissingDeposit       = errors.New("missing deposit portion")
	ErrDepositExceedsAmount = errors.New("deposit portion exceeds repayment amount")
)

func (k TxnKind) Validate() error {
	switch k {
	case Income, Expense, Transfer:
		return nil
	}
	return ErrInvalidKind
}

func (t AccountType) Validate() error {
	switch t {
	case CashAccount, BankAccount, CardAccount:
		return nil
	}
	return ErrInvalidAccountType
}

func (m RepaymentMode) Validate() error {
	switch m {
	case DirectToCash, DepositToAccount, SplitPartial:
		return nil
	}
	return ErrInvalidHandlingMode
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// UnmarshalJSON accepts a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDate parses an ISO "YYYY-MM-DD" date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// ValidateClockTime checks an optional "HH:MM" string; empty is valid.
func ValidateClockTime(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse("15:04", s); err != nil {
		return ErrInvalidClockTime
	}
	return nil
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month int // 1-12
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, ErrInvalidDate
	}
	return YearMonth{Year: t.Year(), Month: int(t.Month())}, nil
}

// Contains reports whether the date falls inside the calendar month.
func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && d.Month() == ym.Month
}

// Prev returns the preceding calendar month.
func (ym YearMonth) Prev() YearMonth {
	if ym.Month == 1 {
		return YearMonth{Year: ym.Year - 1, Month: 12}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

func (ym YearMonth) String() string {
	return time.Date(ym.Year, time.Month(ym.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return a.Type.Validate()
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return b.Amount.Validate()
}

// Outstanding reports whether the debt still carries a remaining amount.
func (d Debt) Outstanding() bool {
	return d.Status == DebtOutstanding
}

// Repaid returns the sum of all repayment amounts recorded so far.
func (d Debt) Repaid() Money {
	var total Money
	for _, r := range d.Repayments {
		total = total.Add(r.Amount)
	}
	return total
}
