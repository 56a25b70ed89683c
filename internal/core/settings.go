package core

import (
	"errors"
	"strings"
)

const (
	INR Currency = "INR"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"

	ExpenseBudget   BudgetKind = "expense"
	BorrowingBudget BudgetKind = "borrowing"
)

type (
	Currency string

	// BudgetKind selects one of the two category-to-limit maps.
	BudgetKind string

	// BudgetMap maps a category to a non-negative limit.
	BudgetMap map[string]Amount

	Preferences struct {
		Currency             Currency `json:"currency"`
		NotificationsEnabled bool     `json:"notificationsEnabled"`
	}
)

var (
	ErrInvalidBudget   = errors.New("budget must be a non-negative number")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidCurrency = errors.New("unsupported currency")
	ErrInvalidKind     = errors.New("unknown budget kind")
)

var currencySymbols = map[Currency]string{
	INR: "₹",
	USD: "$",
	EUR: "€",
	GBP: "£",
	JPY: "¥",
}

func Currencies() []Currency { return []Currency{INR, USD, EUR, GBP, JPY} }

func (c Currency) Valid() bool {
	_, ok := currencySymbols[c]
	return ok
}

// Symbol falls back to the rupee sign for unknown codes.
func (c Currency) Symbol() string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return currencySymbols[INR]
}

func FormatAmount(a Amount, c Currency) string {
	return c.Symbol() + a.StringFixed(2)
}

func DefaultPreferences() Preferences {
	return Preferences{Currency: INR, NotificationsEnabled: true}
}

func (p Preferences) Validate() error {
	if !p.Currency.Valid() {
		return &ValidationError{Field: "currency", Err: ErrInvalidCurrency}
	}
	return nil
}

func (k BudgetKind) Valid() bool {
	return k == ExpenseBudget || k == BorrowingBudget
}

// Type is the transaction type a budget kind applies to.
func (k BudgetKind) Type() TransactionType {
	if k == BorrowingBudget {
		return Borrowing
	}
	return Expense
}

func ParseBudgetKind(s string) (BudgetKind, error) {
	k := BudgetKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", &ValidationError{Field: "kind", Err: ErrInvalidKind}
	}
	return k, nil
}

func ValidateBudget(category string, limit Amount) error {
	if strings.TrimSpace(category) == "" {
		return &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	if limit.IsNegative() {
		return &ValidationError{Field: "amount", Err: ErrInvalidBudget}
	}
	return nil
}

func (m BudgetMap) Validate() error {
	for category, limit := range m {
		if err := ValidateBudget(category, limit); err != nil {
			return err
		}
	}
	return nil
}

func (m BudgetMap) Clone() BudgetMap {
	out := make(BudgetMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
