package repository

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"budgetbuddy/internal/core"
)

//go:embed schema/record.json
var recordSchemaJSON string

var recordSchema = mustSchema(recordSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile record schema: %v", err))
	}
	return s
}

// Rejected is a stored element that could not be decoded into a Record.
type Rejected struct {
	Index  int             `json:"index"`
	Raw    json.RawMessage `json:"raw"`
	Reason string          `json:"reason"`
}

// Ledger is the decoded transactions collection.
type Ledger struct {
	Records  []core.Record
	Rejected []Rejected
}

// entry keeps a stored element in place: either decoded or raw.
type entry struct {
	rec *core.Record
	raw json.RawMessage
}

// decodeEntries parses the stored collection. ok is false when the value is
// not a JSON array at all.
func decodeEntries(data string) (entries []entry, rejected []Rejected, ok bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(data), &elems); err != nil || elems == nil {
		return nil, nil, false
	}

	entries = make([]entry, 0, len(elems))
	for i, raw := range elems {
		rec, reason := decodeRecord(raw)
		if rec == nil {
			rejected = append(rejected, Rejected{Index: i, Raw: raw, Reason: reason})
			entries = append(entries, entry{raw: raw})
			continue
		}
		entries = append(entries, entry{rec: rec})
	}
	return entries, rejected, true
}

func decodeRecord(raw json.RawMessage) (*core.Record, string) {
	result, err := recordSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Sprintf("unreadable element: %v", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, strings.Join(msgs, "; ")
	}

	var rec core.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err.Error()
	}
	return &rec, ""
}

func encodeEntries(entries []entry) (string, error) {
	elems := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		if e.rec == nil {
			elems = append(elems, e.raw)
			continue
		}
		b, err := json.Marshal(e.rec)
		if err != nil {
			return "", fmt.Errorf("marshal record %s: %w", e.rec.ID, err)
		}
		elems = append(elems, b)
	}
	b, err := json.Marshal(elems)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func recordsOf(entries []entry) []core.Record {
	out := make([]core.Record, 0, len(entries))
	for _, e := range entries {
		if e.rec != nil {
			out = append(out, *e.rec)
		}
	}
	return out
}

// decodeBudgets parses a budget map, coercing unusable values to zero as the
// stored format always has. ok is false when the value is not a JSON object.
func decodeBudgets(data string) (m core.BudgetMap, coerced []string, ok bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil || raw == nil {
		return nil, nil, false
	}
	m = make(core.BudgetMap, len(raw))
	for category, v := range raw {
		if strings.TrimSpace(category) == "" {
			coerced = append(coerced, category)
			continue
		}
		var a core.Amount
		if err := json.Unmarshal(v, &a); err != nil || a.IsNegative() {
			coerced = append(coerced, category)
			m[category] = core.AmountFromInt(0)
			continue
		}
		m[category] = a
	}
	return m, coerced, true
}

type storedPreferences struct {
	Currency             *string `json:"currency"`
	NotificationsEnabled *bool   `json:"notificationsEnabled"`
}

func decodePreferences(data string) (core.Preferences, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil || raw == nil {
		return core.DefaultPreferences(), false
	}
	var sp storedPreferences
	// Mistyped fields fall back to defaults individually.
	_ = json.Unmarshal(raw["currency"], &sp.Currency)
	_ = json.Unmarshal(raw["notificationsEnabled"], &sp.NotificationsEnabled)

	p := core.DefaultPreferences()
	if sp.Currency != nil && core.Currency(*sp.Currency).Valid() {
		p.Currency = core.Currency(*sp.Currency)
	}
	if sp.NotificationsEnabled != nil {
		p.NotificationsEnabled = *sp.NotificationsEnabled
	}
	return p, true
}
