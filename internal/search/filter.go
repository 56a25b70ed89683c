// Package search filters ledger records by free text and calendar day.
package search

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetbuddy/internal/core"
)

// Entry is a record with its date already parsed.
type Entry struct {
	core.Record
	At time.Time `json:"-"`
}

// Day is the calendar day of the entry in its parse location.
func (e Entry) Day() string {
	return e.At.Format(core.DayLayout)
}

// Query selects entries. Empty fields match everything.
type Query struct {
	Text string `json:"q"`
	Day  string `json:"date"` // YYYY-MM-DD
}

func (q Query) Empty() bool {
	return strings.TrimSpace(q.Text) == "" && strings.TrimSpace(q.Day) == ""
}

// BuildCache parses every record date in loc, drops unparseable ones and
// returns the rest newest first.
func BuildCache(records []core.Record, loc *time.Location) []Entry {
	if loc == nil {
		loc = time.Local
	}
	out := make([]Entry, 0, len(records))
	for _, r := range records {
		t, err := r.Time(loc)
		if err != nil {
			continue
		}
		out = append(out, Entry{Record: r, At: t.In(loc)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out
}

// ApplyFilter keeps entries matching both the text and the day. Text matches
// a case-insensitive substring of nature or type, or equals the amount when
// it is numeric. An unparseable day matches nothing.
func ApplyFilter(cache []Entry, q Query) []Entry {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	day := strings.TrimSpace(q.Day)

	if day != "" {
		if _, err := time.Parse(core.DayLayout, day); err != nil {
			return []Entry{}
		}
	}

	var amount *decimal.Decimal
	if text != "" {
		if d, err := decimal.NewFromString(text); err == nil {
			amount = &d
		}
	}

	out := make([]Entry, 0, len(cache))
	for _, e := range cache {
		if text != "" && !matchesText(e, text, amount) {
			continue
		}
		if day != "" && e.Day() != day {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesText(e Entry, text string, amount *decimal.Decimal) bool {
	if strings.Contains(strings.ToLower(e.Nature), text) {
		return true
	}
	if strings.Contains(strings.ToLower(string(e.Type)), text) {
		return true
	}
	return amount != nil && e.Amount.Decimal.Equal(*amount)
}

// Records strips the parsed dates.
func Records(entries []Entry) []core.Record {
	out := make([]core.Record, len(entries))
	for i, e := range entries {
		out[i] = e.Record
	}
	return out
}
