// Package aggregate derives totals, groupings and budget progress from
// ledger records. Every function is pure.
//
// A record contributes to totals only when it satisfies every record
// invariant; the rest are counted in Totals.Skipped. Groupings by nature
// are looser and file blank natures under core.Uncategorized. Date-based
// views leave out records whose date does not parse.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetbuddy/internal/core"
)

// TotalsByType sums amounts per transaction type.
func TotalsByType(records []core.Record) core.Totals {
	income, expense, borrowing := decimal.Zero, decimal.Zero, decimal.Zero
	skipped := 0
	for _, r := range records {
		if !r.Countable() {
			skipped++
			continue
		}
		switch r.Type {
		case core.Income:
			income = income.Add(r.Amount.Decimal)
		case core.Expense:
			expense = expense.Add(r.Amount.Decimal)
		case core.Borrowing:
			borrowing = borrowing.Add(r.Amount.Decimal)
		}
	}
	return core.Totals{
		Income:    core.NewAmount(income),
		Expense:   core.NewAmount(expense),
		Borrowing: core.NewAmount(borrowing),
		Skipped:   skipped,
	}
}

// Balance is income plus borrowing minus expense.
func Balance(t core.Totals) core.Amount {
	return t.Income.Add(t.Borrowing).Sub(t.Expense)
}

// GroupByCategory sums the records of one type by nature. Blank natures
// group under core.Uncategorized.
func GroupByCategory(records []core.Record, typ core.TransactionType) map[string]core.Amount {
	sums := make(map[string]decimal.Decimal)
	for _, r := range records {
		if r.Type != typ || !r.Groupable() {
			continue
		}
		key := natureKey(r.Nature)
		sums[key] = sums[key].Add(r.Amount.Decimal)
	}
	out := make(map[string]core.Amount, len(sums))
	for k, v := range sums {
		out[k] = core.NewAmount(v)
	}
	return out
}

// SortedGroups orders a grouping by total descending, then nature.
func SortedGroups(groups map[string]core.Amount, typ core.TransactionType) []core.CategoryTotal {
	out := make([]core.CategoryTotal, 0, len(groups))
	for nature, total := range groups {
		out = append(out, core.CategoryTotal{Nature: nature, Type: typ, Total: total})
	}
	sortTotals(out)
	return out
}

func sortTotals(ts []core.CategoryTotal) {
	sort.Slice(ts, func(i, j int) bool {
		if c := ts[i].Total.Cmp(ts[j].Total.Decimal); c != 0 {
			return c > 0
		}
		return ts[i].Nature < ts[j].Nature
	})
}

func natureKey(nature string) string {
	n := strings.TrimSpace(nature)
	if n == "" {
		return core.Uncategorized
	}
	return n
}

// MonthlyFilter keeps the records dated in the given calendar month of loc.
func MonthlyFilter(records []core.Record, year int, month time.Month, loc *time.Location) []core.Record {
	if loc == nil {
		loc = time.Local
	}
	out := make([]core.Record, 0)
	for _, r := range records {
		t, err := r.Time(loc)
		if err != nil {
			continue
		}
		t = t.In(loc)
		if t.Year() == year && t.Month() == month {
			out = append(out, r)
		}
	}
	return out
}

// BudgetProgress compares total against limit. ok is false when limit is
// not positive, in which case no progress applies.
func BudgetProgress(total, limit core.Amount) (core.Progress, bool) {
	if !limit.Positive() {
		return core.Progress{}, false
	}
	ratio, _ := total.Div(limit.Decimal).Float64()
	if ratio > 1 {
		ratio = 1
	}
	return core.Progress{Ratio: ratio, OverBudget: total.GreaterThan(limit.Decimal)}, true
}

// RecentEntries returns up to n records, newest first. n <= 0 returns all.
// Records with unparseable dates are left out. Dates without a zone are
// read in loc.
func RecentEntries(records []core.Record, n int, loc *time.Location) []core.Record {
	if loc == nil {
		loc = time.Local
	}
	type dated struct {
		rec core.Record
		at  time.Time
	}
	ds := make([]dated, 0, len(records))
	for _, r := range records {
		t, err := r.Time(loc)
		if err != nil {
			continue
		}
		ds = append(ds, dated{rec: r, at: t})
	}
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].at.After(ds[j].at) })

	if n > 0 && len(ds) > n {
		ds = ds[:n]
	}
	out := make([]core.Record, len(ds))
	for i, d := range ds {
		out[i] = d.rec
	}
	return out
}

// MonthlyReport summarises one calendar month. Natures are grouped across
// types, keeping the type each nature was first seen with.
func MonthlyReport(records []core.Record, year int, month time.Month, loc *time.Location) core.MonthReport {
	monthly := MonthlyFilter(records, year, month, loc)
	totals := TotalsByType(monthly)

	sums := make(map[string]decimal.Decimal)
	types := make(map[string]core.TransactionType)
	for _, r := range monthly {
		if !r.Countable() {
			continue
		}
		key := natureKey(r.Nature)
		if _, ok := types[key]; !ok {
			types[key] = r.Type
		}
		sums[key] = sums[key].Add(r.Amount.Decimal)
	}
	byNature := make([]core.CategoryTotal, 0, len(sums))
	for nature, total := range sums {
		byNature = append(byNature, core.CategoryTotal{Nature: nature, Type: types[nature], Total: core.NewAmount(total)})
	}
	sortTotals(byNature)

	return core.MonthReport{
		Year:     year,
		Month:    int(month),
		Totals:   totals,
		Balance:  Balance(totals),
		ByNature: byNature,
		Count:    len(monthly),
	}
}

// BudgetLines matches spending of the kind's type against every category
// that has either a limit or spending. Categories are sorted by name.
func BudgetLines(records []core.Record, kind core.BudgetKind, budgets core.BudgetMap) []core.BudgetLine {
	spent := GroupByCategory(records, kind.Type())

	names := make(map[string]struct{}, len(spent)+len(budgets))
	for k := range spent {
		names[k] = struct{}{}
	}
	for k := range budgets {
		names[k] = struct{}{}
	}

	lines := make([]core.BudgetLine, 0, len(names))
	for name := range names {
		line := core.BudgetLine{Category: name, Spent: spent[name], Limit: budgets[name]}
		if p, ok := BudgetProgress(line.Spent, line.Limit); ok {
			line.Progress = &p
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Category < lines[j].Category })
	return lines
}
