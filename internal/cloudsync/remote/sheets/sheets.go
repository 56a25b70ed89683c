// Package sheets stores user documents in a Google Sheets tab, one row per
// (user, field): A user id, B field name, C JSON value, D update time.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetbuddy/internal/cloudsync"
	"budgetbuddy/internal/log"
)

type Config struct {
	SpreadsheetID string
	// SheetName defaults to "Backups".
	SheetName string
	// CredentialsJSON wins over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	now           func() time.Time
	logger        *slog.Logger
}

var _ cloudsync.RemoteStore = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string) *Client {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Backups"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		now:           time.Now,
		logger:        log.For(log.ComponentSync).With("remote", "sheets"),
	}
}

// newSheetsService authenticates with service account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (c *Client) rowsRange() string {
	return fmt.Sprintf("%s!A2:D", c.sheet)
}

func (c *Client) readRows(ctx context.Context) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rowsRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.rowsRange(), err)
	}
	return resp.Values, nil
}

func (c *Client) Get(ctx context.Context, userID string) (cloudsync.Document, bool, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return nil, false, err
	}
	doc := documentFromRows(rows, userID)
	if len(doc) == 0 {
		return nil, false, nil
	}
	return doc, true, nil
}

func (c *Client) Merge(ctx context.Context, userID string, fields cloudsync.Document) error {
	rows, err := c.readRows(ctx)
	if err != nil {
		return err
	}

	fields = fields.Clone()
	now := c.now()
	fields[cloudsync.FieldLastSynced] = cloudsync.Timestamp(now)

	plan := planMerge(rows, userID, fields, now)
	if len(plan.updates) > 0 {
		data := make([]*gsheet.ValueRange, 0, len(plan.updates))
		for _, u := range plan.updates {
			data = append(data, &gsheet.ValueRange{
				Range:  fmt.Sprintf("%s!C%d:D%d", c.sheet, u.row, u.row),
				Values: [][]any{u.values},
			})
		}
		req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: data}
		if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("update rows: %w", err)
		}
	}
	if len(plan.appends) > 0 {
		vr := &gsheet.ValueRange{Values: plan.appends}
		_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, fmt.Sprintf("%s!A:D", c.sheet), vr).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append rows: %w", err)
		}
	}

	c.logger.InfoContext(ctx, "Document merged",
		log.FieldUserID, userID, "updated", len(plan.updates), "appended", len(plan.appends))
	return nil
}

type rowUpdate struct {
	row    int // 1-based sheet row
	values []any
}

type mergePlan struct {
	updates []rowUpdate
	appends [][]any
}

// planMerge splits fields into rewrites of existing rows and new rows.
// rows start at sheet row 2.
func planMerge(rows [][]any, userID string, fields cloudsync.Document, now time.Time) mergePlan {
	existing := make(map[string]int)
	for i, row := range rows {
		if cell(row, 0) == userID {
			existing[cell(row, 1)] = i + 2
		}
	}

	stamp := now.UTC().Format(time.RFC3339)
	var plan mergePlan
	for _, field := range sortedFields(fields) {
		value := string(fields[field])
		if row, ok := existing[field]; ok {
			plan.updates = append(plan.updates, rowUpdate{row: row, values: []any{value, stamp}})
			continue
		}
		plan.appends = append(plan.appends, []any{userID, field, value, stamp})
	}
	return plan
}

func documentFromRows(rows [][]any, userID string) cloudsync.Document {
	doc := make(cloudsync.Document)
	for _, row := range rows {
		if cell(row, 0) != userID {
			continue
		}
		field, value := cell(row, 1), cell(row, 2)
		if field == "" || !json.Valid([]byte(value)) {
			continue
		}
		doc[field] = json.RawMessage(value)
	}
	return doc
}

func cell(row []any, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func sortedFields(doc cloudsync.Document) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
