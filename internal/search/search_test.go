package search

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetbuddy/internal/core"
)

func rec(id string, typ core.TransactionType, nature, amount, date string) core.Record {
	return core.Record{ID: id, Type: typ, Nature: nature, Amount: core.MustAmount(amount), Date: date}
}

func sample() []core.Record {
	return []core.Record{
		rec("1", core.Expense, "Food", "50", "2024-03-01T09:00:00.000Z"),
		rec("2", core.Expense, "Fuel", "20", "2024-03-02T09:00:00.000Z"),
		rec("3", core.Income, "Salary", "5000", "2024-03-01T18:00:00.000Z"),
		rec("4", core.Borrowing, "Friend", "50.00", "2024-02-10"),
		rec("5", core.Expense, "Groceries", "12", "garbage"),
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildCacheSortsAndDrops(t *testing.T) {
	cache := BuildCache(sample(), time.UTC)
	want := []string{"2", "3", "1", "4"}
	if got := ids(cache); !equalIDs(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestApplyFilter(t *testing.T) {
	cache := BuildCache(sample(), time.UTC)
	cases := []struct {
		name string
		q    Query
		want []string
	}{
		{"empty query returns all", Query{}, []string{"2", "3", "1", "4"}},
		{"nature substring", Query{Text: "fu"}, []string{"2"}},
		{"case insensitive", Query{Text: "  SALARY "}, []string{"3"}},
		{"type substring", Query{Text: "borrow"}, []string{"4"}},
		{"exact amount", Query{Text: "50"}, []string{"1", "4"}},
		{"amount is not a substring match", Query{Text: "500"}, []string{}},
		{"day only", Query{Day: "2024-03-01"}, []string{"3", "1"}},
		{"text and day", Query{Text: "expense", Day: "2024-03-01"}, []string{"1"}},
		{"bad day matches nothing", Query{Day: "03/01/2024"}, []string{}},
		{"no match", Query{Text: "rent"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(ApplyFilter(cache, tc.q))
			if !equalIDs(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestDayFilterUsesLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	records := []core.Record{
		rec("late", core.Expense, "Food", "1", "2024-02-29T20:00:00.000Z"),
		rec("plain", core.Expense, "Food", "1", "2024-03-01"),
	}
	got := ids(ApplyFilter(BuildCache(records, ist), Query{Day: "2024-03-01"}))
	if !equalIDs(got, []string{"late", "plain"}) {
		t.Fatalf("IST day: %v", got)
	}
	got = ids(ApplyFilter(BuildCache(records, time.UTC), Query{Day: "2024-03-01"}))
	if !equalIDs(got, []string{"plain"}) {
		t.Fatalf("UTC day: %v", got)
	}
}

func TestDebouncerCollapsesBursts(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(120 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected one call, got %d", n)
	}

	d.Trigger()
	if !d.Cancel() {
		t.Fatalf("expected a pending run to cancel")
	}
	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("cancelled run fired: %d", n)
	}

	d.Trigger()
	d.Flush()
	if n := calls.Load(); n != 2 {
		t.Fatalf("flush should run at once: %d", n)
	}
}

func TestEngineDebouncesText(t *testing.T) {
	var (
		mu      sync.Mutex
		updates [][]string
	)
	e := NewEngine(30*time.Millisecond, WithLocation(time.UTC), WithOnUpdate(func(entries []Entry) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, ids(entries))
	}))
	defer e.Close()

	e.SetRecords(sample())
	for _, prefix := range []string{"s", "sa", "sal"} {
		e.SetText(prefix)
	}
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// One update from SetRecords, one from the settled text.
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %v", updates)
	}
	if !equalIDs(updates[1], []string{"3"}) {
		t.Fatalf("final results: %v", updates[1])
	}
	if got := ids(e.Results()); !equalIDs(got, []string{"3"}) {
		t.Fatalf("Results: %v", got)
	}
}

func TestEngineDayAppliesImmediately(t *testing.T) {
	e := NewEngine(time.Hour, WithLocation(time.UTC))
	defer e.Close()
	e.SetRecords(sample())

	e.SetDay("2024-03-02")
	if got := ids(e.Results()); !equalIDs(got, []string{"2"}) {
		t.Fatalf("day filter: %v", got)
	}
	if got := ids(e.Search(Query{Text: "friend"})); !equalIDs(got, []string{"4"}) {
		t.Fatalf("direct search: %v", got)
	}
}
