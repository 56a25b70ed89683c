package sheets

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"budgetbuddy/internal/cloudsync"
)

func TestPlanMerge(t *testing.T) {
	rows := [][]any{
		{"u1", "expenses", "[]", "2024-01-01T00:00:00Z"},
		{"u2", "expenses", "[1]", "2024-01-01T00:00:00Z"},
		{"u1", "user_preferences", "{}", "2024-01-01T00:00:00Z"},
	}
	fields := cloudsync.Document{
		"expenses":            json.RawMessage(`[{"id":"1"}]`),
		"expenseNatureBudget": json.RawMessage(`{"Food":1}`),
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	plan := planMerge(rows, "u1", fields, now)
	if len(plan.updates) != 1 || plan.updates[0].row != 2 {
		t.Fatalf("updates: %+v", plan.updates)
	}
	if plan.updates[0].values[0] != `[{"id":"1"}]` || plan.updates[0].values[1] != "2024-03-01T12:00:00Z" {
		t.Fatalf("update values: %v", plan.updates[0].values)
	}
	if len(plan.appends) != 1 || plan.appends[0][0] != "u1" || plan.appends[0][1] != "expenseNatureBudget" {
		t.Fatalf("appends: %v", plan.appends)
	}
}

func TestDocumentFromRows(t *testing.T) {
	rows := [][]any{
		{"u1", "expenses", `[{"id":"1"}]`},
		{"u1", "platform", `"linux"`},
		{"u1", "broken", `{`},
		{"u2", "expenses", `[]`},
		{"u1"},
		{},
	}
	doc := documentFromRows(rows, "u1")
	if len(doc) != 2 {
		t.Fatalf("doc: %v", doc)
	}
	if string(doc["platform"]) != `"linux"` {
		t.Fatalf("platform: %s", doc["platform"])
	}
	if len(documentFromRows(rows, "nobody")) != 0 {
		t.Fatalf("expected empty document for unknown user")
	}
}

func TestNewRequiresConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, Config{}); err == nil {
		t.Fatalf("expected error without spreadsheet id")
	}
	if _, err := New(ctx, Config{SpreadsheetID: "sheet"}); err == nil {
		t.Fatalf("expected error without credentials")
	}
	if _, err := New(ctx, Config{SpreadsheetID: "sheet", CredentialsFile: "/does/not/exist.json"}); err == nil {
		t.Fatalf("expected error for unreadable credentials file")
	}
}

func TestNewWithServiceDefaults(t *testing.T) {
	c := NewWithService(nil, "id", "")
	if c.sheet != "Backups" || c.rowsRange() != "Backups!A2:D" {
		t.Fatalf("defaults: %q %q", c.sheet, c.rowsRange())
	}
}
