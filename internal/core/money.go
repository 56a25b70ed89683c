// Package core provides the ledger domain: records, amounts, budgets,
// preferences and the category vocabulary.
//
// Amounts are decimals so that totals derived from stored records are exact.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a decimal quantity serialised as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

var errAmountFormat = errors.New("amount is not a number")

func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

// AmountFromInt is a convenience for whole amounts.
func AmountFromInt(v int64) Amount { return Amount{Decimal: decimal.NewFromInt(v)} }

func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAmount accepts both dot (12.34) and comma (12,34) decimal separators.
// The sign is kept; callers validate positivity.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, errAmountFormat
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", errAmountFormat, s)
	}
	return Amount{Decimal: d}, nil
}

func (a Amount) Positive() bool { return a.Decimal.IsPositive() }

func (a Amount) Add(b Amount) Amount { return Amount{Decimal: a.Decimal.Add(b.Decimal)} }

func (a Amount) Sub(b Amount) Amount { return Amount{Decimal: a.Decimal.Sub(b.Decimal)} }

func (a Amount) Equal(b Amount) bool { return a.Decimal.Equal(b.Decimal) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON reads a JSON number or a numeric JSON string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		return errAmountFormat
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", errAmountFormat, data)
	}
	a.Decimal = d
	return nil
}

// Sum adds amounts without rounding.
func Sum(amounts ...Amount) Amount {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Decimal)
	}
	return Amount{Decimal: total}
}
