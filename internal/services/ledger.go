package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"budgetbuddy/internal/aggregate"
	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/repository"
	"budgetbuddy/internal/search"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Repository is the persistence the ledger needs. *repository.Repository satisfies it.
type Repository interface {
	LoadLedger(ctx context.Context) (repository.Ledger, error)
	LoadBudgetMap(ctx context.Context, kind core.BudgetKind) (core.BudgetMap, error)
	LoadPreferences(ctx context.Context) (core.Preferences, error)
	AppendTransaction(ctx context.Context, rec core.Record) error
	UpdateExisting(ctx context.Context, id string, patch core.RecordPatch) (bool, error)
	DeleteTransaction(ctx context.Context, id string) error
	SetBudget(ctx context.Context, kind core.BudgetKind, category string, limit core.Amount) error
	RemoveBudget(ctx context.Context, kind core.BudgetKind, category string) error
	SavePreferences(ctx context.Context, p core.Preferences) error
	ClearLocalData(ctx context.Context) error
}

// State is everything the application shows.
type State struct {
	Records         []core.Record    `json:"records"`
	Rejected        int              `json:"rejected"`
	ExpenseBudgets  core.BudgetMap   `json:"expenseBudgets"`
	BorrowingLimits core.BudgetMap   `json:"borrowingLimits"`
	Preferences     core.Preferences `json:"preferences"`
}

func emptyState() State {
	return State{
		Records:         []core.Record{},
		ExpenseBudgets:  core.BudgetMap{},
		BorrowingLimits: core.BudgetMap{},
		Preferences:     core.DefaultPreferences(),
	}
}

func (s State) clone() State {
	out := s
	out.Records = append([]core.Record{}, s.Records...)
	out.ExpenseBudgets = s.ExpenseBudgets.Clone()
	out.BorrowingLimits = s.BorrowingLimits.Clone()
	return out
}

func (s *State) budgets(kind core.BudgetKind) *core.BudgetMap {
	if kind == core.BorrowingBudget {
		return &s.BorrowingLimits
	}
	return &s.ExpenseBudgets
}

func (s State) indexOf(id string) int {
	for i, r := range s.Records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// NewTransaction is the input for AddTransaction. Date defaults to now.
type NewTransaction struct {
	Type         core.TransactionType `json:"type"`
	Nature       string               `json:"nature"`
	CustomNature string               `json:"customNature,omitempty"`
	Amount       core.Amount          `json:"amount"`
	Date         string               `json:"date,omitempty"`
}

// TransactionEdit changes some fields of a transaction. Nil fields are kept.
type TransactionEdit struct {
	Type         *core.TransactionType `json:"type,omitempty"`
	Nature       *string               `json:"nature,omitempty"`
	CustomNature *string               `json:"customNature,omitempty"`
	Amount       *core.Amount          `json:"amount,omitempty"`
}

// Summary is the all-time overview.
type Summary struct {
	Totals     core.Totals                                   `json:"totals"`
	Balance    core.Amount                                   `json:"balance"`
	Categories map[core.TransactionType][]core.CategoryTotal `json:"categories"`
	Currency   core.Currency                                 `json:"currency"`
}

type Config struct {
	Location        *time.Location
	SearchDebounce  time.Duration
	ReportCacheSize int
	ReportCacheTTL  time.Duration
	Now             func() time.Time
}

// Ledger holds the application state in memory and keeps it in step with
// the repository. Mutations are applied to the state first and rolled back
// when the write fails.
type Ledger struct {
	repo   Repository
	cfg    Config
	logger *slog.Logger

	writes sync.Mutex // serialises mutations and refreshes
	mu     sync.RWMutex
	state  State
	gen    uint64 // bumped on every record change

	search  *search.Engine
	reports *cache.LRU[core.MonthReport]
}

func NewLedger(repo Repository, cfg Config) *Ledger {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ReportCacheSize <= 0 {
		cfg.ReportCacheSize = 24
	}
	logger := log.For(log.ComponentLedger)
	engine := search.NewEngine(cfg.SearchDebounce,
		search.WithLocation(cfg.Location),
		search.WithOnUpdate(func(entries []search.Entry) {
			logger.Debug("Search results updated", log.FieldCount, len(entries))
		}))
	return &Ledger{
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
		state:   emptyState(),
		search:  engine,
		reports: cache.NewLRU[core.MonthReport](cfg.ReportCacheSize, cfg.ReportCacheTTL),
	}
}

// Reports exposes the report cache for periodic cleanup.
func (l *Ledger) Reports() cache.Cleaner { return l.reports }

// SearchEngine returns the engine fed by this ledger.
// TypeSearch feeds the live search text, one keystroke at a time. Results
// settle after the debounce delay.
func (l *Ledger) TypeSearch(text string) { l.search.SetText(text) }

// SetSearchDay changes the live day filter; results update at once.
func (l *Ledger) SetSearchDay(day string) { l.search.SetDay(day) }

// LiveSearch returns the live query and its last computed results.
func (l *Ledger) LiveSearch() (search.Query, []search.Entry) {
	return l.search.Query(), l.search.Results()
}

func (l *Ledger) Close() {
	l.search.Close()
}

// Refresh reloads every key from the repository.
func (l *Ledger) Refresh(ctx context.Context) error {
	l.writes.Lock()
	defer l.writes.Unlock()

	next := emptyState()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ledger, err := l.repo.LoadLedger(gctx)
		if err != nil {
			return err
		}
		next.Records = ledger.Records
		next.Rejected = len(ledger.Rejected)
		return nil
	})
	g.Go(func() error {
		m, err := l.repo.LoadBudgetMap(gctx, core.ExpenseBudget)
		next.ExpenseBudgets = m
		return err
	})
	g.Go(func() error {
		m, err := l.repo.LoadBudgetMap(gctx, core.BorrowingBudget)
		next.BorrowingLimits = m
		return err
	})
	g.Go(func() error {
		p, err := l.repo.LoadPreferences(gctx)
		next.Preferences = p
		return err
	})
	if err := g.Wait(); err != nil {
		l.logger.ErrorContext(ctx, "Failed to load ledger", log.FieldOperation, log.OpLoad, log.FieldError, err)
		return err
	}

	l.replace(next, true)
	l.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldCount, len(next.Records), "rejected", next.Rejected)
	return nil
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.clone()
}

func (l *Ledger) replace(s State, recordsChanged bool) {
	l.mu.Lock()
	l.state = s
	if recordsChanged {
		l.gen++
	}
	records := append([]core.Record(nil), s.Records...)
	l.mu.Unlock()

	if recordsChanged {
		l.reports.Purge()
		l.search.SetRecords(records)
	}
}

// mutate applies change to a copy of the state, publishes it, and runs
// persist. If persist fails the previous state is restored.
func (l *Ledger) mutate(ctx context.Context, recordsChanged bool, change func(*State) error, persist func() error) error {
	l.writes.Lock()
	defer l.writes.Unlock()

	prev := l.Snapshot()
	next := prev.clone()
	if err := change(&next); err != nil {
		return err
	}
	l.replace(next, recordsChanged)

	if err := persist(); err != nil {
		l.logger.ErrorContext(ctx, "Write failed, rolling back", log.FieldError, err)
		l.replace(prev, recordsChanged)
		return err
	}
	return nil
}

// AddTransaction records a new transaction with a fresh id.
func (l *Ledger) AddTransaction(ctx context.Context, in NewTransaction) (core.Record, error) {
	nature, custom, err := core.ResolveNature(in.Type, in.Nature, in.CustomNature)
	if err != nil {
		return core.Record{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return core.Record{}, fmt.Errorf("generate id: %w", err)
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = core.FormatDate(l.cfg.Now())
	}

	rec := core.Record{
		ID:           id.String(),
		Type:         in.Type,
		Nature:       nature,
		Amount:       in.Amount,
		Date:         date,
		CustomNature: custom,
	}
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}

	err = l.mutate(ctx, true,
		func(s *State) error {
			s.Records = append(s.Records, rec)
			return nil
		},
		func() error { return l.repo.AppendTransaction(ctx, rec) })
	if err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

// EditTransaction applies edit to the transaction with id.
func (l *Ledger) EditTransaction(ctx context.Context, id string, edit TransactionEdit) (core.Record, error) {
	var updated core.Record
	var patch core.RecordPatch

	err := l.mutate(ctx, true,
		func(s *State) error {
			idx := s.indexOf(id)
			if idx < 0 {
				return ErrTransactionNotFound
			}
			var err error
			patch, err = buildPatch(s.Records[idx], edit)
			if err != nil {
				return err
			}
			updated = s.Records[idx].Apply(patch)
			if err := updated.Validate(); err != nil {
				return err
			}
			s.Records[idx] = updated
			return nil
		},
		func() error {
			found, err := l.repo.UpdateExisting(ctx, id, patch)
			if err == nil && !found {
				return ErrTransactionNotFound
			}
			return err
		})
	if errors.Is(err, ErrTransactionNotFound) {
		// Another writer removed it; reload so memory matches storage.
		if rerr := l.Refresh(ctx); rerr != nil {
			return core.Record{}, errors.Join(err, rerr)
		}
	}
	if err != nil {
		return core.Record{}, err
	}
	return updated, nil
}

func buildPatch(current core.Record, edit TransactionEdit) (core.RecordPatch, error) {
	patch := core.RecordPatch{Type: edit.Type, Amount: edit.Amount}
	typ := current.Type
	if edit.Type != nil {
		typ = *edit.Type
	}
	if edit.Nature != nil || edit.CustomNature != nil {
		selected, custom := current.Nature, ""
		switch {
		case edit.Nature != nil:
			selected = *edit.Nature
		case edit.CustomNature != nil:
			// custom text alone replaces the nature
			selected = core.OtherNature
		}
		if edit.CustomNature != nil {
			custom = *edit.CustomNature
		}
		nature, isCustom, err := core.ResolveNature(typ, selected, custom)
		if err != nil {
			return core.RecordPatch{}, err
		}
		patch.Nature = &nature
		patch.CustomNature = &isCustom
	}
	return patch, nil
}

func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	return l.mutate(ctx, true,
		func(s *State) error {
			idx := s.indexOf(id)
			if idx < 0 {
				return ErrTransactionNotFound
			}
			s.Records = append(s.Records[:idx], s.Records[idx+1:]...)
			return nil
		},
		func() error { return l.repo.DeleteTransaction(ctx, id) })
}

func (l *Ledger) SetBudget(ctx context.Context, kind core.BudgetKind, category string, limit core.Amount) error {
	if !kind.Valid() {
		return &core.ValidationError{Field: "kind", Err: core.ErrInvalidKind}
	}
	category = strings.TrimSpace(category)
	if err := core.ValidateBudget(category, limit); err != nil {
		return err
	}
	return l.mutate(ctx, false,
		func(s *State) error {
			(*s.budgets(kind))[category] = limit
			return nil
		},
		func() error { return l.repo.SetBudget(ctx, kind, category, limit) })
}

func (l *Ledger) RemoveBudget(ctx context.Context, kind core.BudgetKind, category string) error {
	if !kind.Valid() {
		return &core.ValidationError{Field: "kind", Err: core.ErrInvalidKind}
	}
	category = strings.TrimSpace(category)
	return l.mutate(ctx, false,
		func(s *State) error {
			delete(*s.budgets(kind), category)
			return nil
		},
		func() error { return l.repo.RemoveBudget(ctx, kind, category) })
}

func (l *Ledger) UpdatePreferences(ctx context.Context, p core.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return l.mutate(ctx, false,
		func(s *State) error {
			s.Preferences = p
			return nil
		},
		func() error { return l.repo.SavePreferences(ctx, p) })
}

// ClearLocalData wipes every stored key and resets the state.
func (l *Ledger) ClearLocalData(ctx context.Context) error {
	l.writes.Lock()
	defer l.writes.Unlock()

	if err := l.repo.ClearLocalData(ctx); err != nil {
		return err
	}
	l.replace(emptyState(), true)
	l.logger.InfoContext(ctx, "Local data cleared", log.FieldOperation, log.OpDelete)
	return nil
}

func (l *Ledger) Summary() Summary {
	s := l.Snapshot()
	totals := aggregate.TotalsByType(s.Records)
	cats := make(map[core.TransactionType][]core.CategoryTotal, 3)
	for _, t := range core.TransactionTypes() {
		cats[t] = aggregate.SortedGroups(aggregate.GroupByCategory(s.Records, t), t)
	}
	return Summary{
		Totals:     totals,
		Balance:    aggregate.Balance(totals),
		Categories: cats,
		Currency:   s.Preferences.Currency,
	}
}

// MonthlyReport is memoised per month until the next record change.
func (l *Ledger) MonthlyReport(year int, month time.Month) (core.MonthReport, error) {
	if month < time.January || month > time.December {
		return core.MonthReport{}, &core.ValidationError{Field: "month", Err: ErrInvalidMonth}
	}
	if year < 1 || year > 9999 {
		return core.MonthReport{}, &core.ValidationError{Field: "year", Err: ErrInvalidYear}
	}
	l.mu.RLock()
	gen := l.gen
	records := l.state.Records
	l.mu.RUnlock()

	// keys carry the record generation; reports of older records never match
	key := fmt.Sprintf("%d:%04d-%02d", gen, year, int(month))
	return l.reports.GetOrCompute(key, func() (core.MonthReport, error) {
		return aggregate.MonthlyReport(records, year, month, l.cfg.Location), nil
	})
}

var (
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
	ErrInvalidYear  = errors.New("year out of range")
)

func (l *Ledger) BudgetLines(kind core.BudgetKind) []core.BudgetLine {
	s := l.Snapshot()
	return aggregate.BudgetLines(s.Records, kind, *s.budgets(kind))
}

// Recent returns the n newest transactions; n <= 0 returns all of them.
func (l *Ledger) Recent(n int) []core.Record {
	return aggregate.RecentEntries(l.Snapshot().Records, n, l.cfg.Location)
}

func (l *Ledger) Search(q search.Query) []search.Entry {
	return l.search.Search(q)
}
