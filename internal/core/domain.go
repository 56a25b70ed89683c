package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income    TransactionType = "Income"
	Expense   TransactionType = "Expense"
	Borrowing TransactionType = "Borrowing"
)

// Layouts accepted for Record.Date, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	DayLayout,
}

// DayLayout is the calendar-day format used by filters and reports.
const DayLayout = "2006-01-02"

type (
	TransactionType string

	Record struct {
		ID     string          `json:"id"`
		Type   TransactionType `json:"type"`
		Nature string          `json:"nature"`
		Amount Amount          `json:"amount"`
		// Date is kept exactly as stored (ISO-8601).
		Date         string `json:"date"`
		CustomNature bool   `json:"isCustomCategory,omitempty"`
	}

	// RecordPatch carries the fields an edit may change. Nil fields are kept.
	RecordPatch struct {
		Type         *TransactionType
		Nature       *string
		Amount       *Amount
		Date         *string
		CustomNature *bool
	}
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrEmptyID              = errors.New("empty id")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrEmptyNature          = errors.New("empty nature")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidDate          = errors.New("invalid date")
	ErrCustomNatureRequired = errors.New("custom category text is required when Other is selected")
)

// TransactionTypes lists every valid type in display order.
func TransactionTypes() []TransactionType {
	return []TransactionType{Income, Expense, Borrowing}
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Borrowing:
		return true
	}
	return false
}

// ParseTransactionType matches case-insensitively.
func ParseTransactionType(s string) (TransactionType, bool) {
	for _, t := range TransactionTypes() {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, true
		}
	}
	return "", false
}

// Time parses the stored date. Zone-less values are read in loc (time.Local when nil).
func (r Record) Time(loc *time.Location) (time.Time, error) {
	return ParseDate(r.Date, loc)
}

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// FormatDate renders t the way new records store it.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return &ValidationError{Field: "id", Err: ErrEmptyID}
	}
	if !r.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if strings.TrimSpace(r.Nature) == "" {
		return &ValidationError{Field: "nature", Err: ErrEmptyNature}
	}
	if !r.Amount.Positive() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if _, err := r.Time(time.UTC); err != nil {
		return &ValidationError{Field: "date", Err: ErrInvalidDate}
	}
	return nil
}

// Countable reports whether r may contribute to totals: it must satisfy
// every record invariant.
func (r Record) Countable() bool {
	return r.Validate() == nil
}

// Groupable reports whether r may contribute to a per-nature grouping. A
// blank nature or unparseable date is allowed there.
func (r Record) Groupable() bool {
	return r.Type.Valid() && r.Amount.Positive()
}

// IsCustomNature is true for explicitly flagged records and for legacy
// records whose nature is outside the vocabulary of their type.
func (r Record) IsCustomNature() bool {
	return r.CustomNature || !IsStandardNature(r.Type, r.Nature)
}

// Apply returns a copy of r with the patch fields set.
func (r Record) Apply(p RecordPatch) Record {
	out := r
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Nature != nil {
		out.Nature = strings.TrimSpace(*p.Nature)
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.CustomNature != nil {
		out.CustomNature = *p.CustomNature
	}
	return out
}

func (p RecordPatch) Empty() bool {
	return p.Type == nil && p.Nature == nil && p.Amount == nil && p.Date == nil && p.CustomNature == nil
}
