// Package repository owns the storage keys of the ledger and their
// serialisation. Reads recover from corrupted values by resetting them;
// writes validate before anything reaches the store.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/kv"
	"budgetbuddy/internal/log"
)

const (
	KeyTransactions    = "expenses"
	KeyExpenseBudget   = "expenseNatureBudget"
	KeyBorrowingLimits = "borrowingNatureLimit"
	KeyPreferences     = "user_preferences"
)

var (
	// ErrStorageIO wraps failures of the underlying store.
	ErrStorageIO = errors.New("storage i/o failed")
	ErrDuplicate = errors.New("id already exists")
)

// Keys lists every key the repository owns.
func Keys() []string {
	return []string{KeyTransactions, KeyExpenseBudget, KeyBorrowingLimits, KeyPreferences}
}

// BudgetKey maps a budget kind to its storage key.
func BudgetKey(kind core.BudgetKind) string {
	if kind == core.BorrowingBudget {
		return KeyBorrowingLimits
	}
	return KeyExpenseBudget
}

// ChangeNotifier is told about every key the repository has written.
// KeyChanged runs while the key is still locked and must not block.
type ChangeNotifier interface {
	KeyChanged(ctx context.Context, key string)
}

type Repository struct {
	store    kv.Store
	logger   *slog.Logger
	notifier ChangeNotifier

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
	loads   singleflight.Group
}

type Option func(*Repository)

func WithNotifier(n ChangeNotifier) Option {
	return func(r *Repository) { r.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

func New(store kv.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		logger: log.For(log.ComponentRepository),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetNotifier replaces the change notifier. Not safe to call concurrently with writes.
func (r *Repository) SetNotifier(n ChangeNotifier) { r.notifier = n }

// lock serialises read-modify-write cycles on one key.
func (r *Repository) lock(key string) func() {
	r.locksMu.Lock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	r.locksMu.Unlock()
	m.Lock()
	return m.Unlock
}

func (r *Repository) notify(ctx context.Context, key string) {
	if r.notifier != nil {
		r.notifier.KeyChanged(ctx, key)
	}
}

func (r *Repository) get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("%w: read %s: %w", ErrStorageIO, key, err)
	}
	return v, ok, nil
}

func (r *Repository) set(ctx context.Context, key, value string) error {
	if err := r.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorageIO, key, err)
	}
	return nil
}

// reset overwrites a corrupted key with an empty value of its shape. held
// reports whether the caller owns the key lock; without it the lock is taken
// and the reset is skipped if another writer has replaced seen meanwhile.
func (r *Repository) reset(ctx context.Context, key, seen, empty string, held bool) {
	if !held {
		defer r.lock(key)()
		if cur, ok, err := r.store.Get(ctx, key); err != nil || !ok || cur != seen {
			return
		}
	}
	r.logger.WarnContext(ctx, "Stored value is corrupted, resetting",
		log.FieldKey, key, log.FieldOperation, log.OpReset)
	if err := r.store.Set(ctx, key, empty); err != nil {
		r.logger.ErrorContext(ctx, "Failed to reset corrupted key", log.FieldKey, key, log.FieldError, err)
	}
}

// LoadLedger returns the decoded records and the elements that failed to decode.
// Concurrent callers share a single store read.
func (r *Repository) LoadLedger(ctx context.Context) (Ledger, error) {
	v, err, _ := r.loads.Do(KeyTransactions, func() (any, error) {
		entries, rejected, err := r.readEntries(ctx, false)
		if err != nil {
			return nil, err
		}
		return Ledger{Records: recordsOf(entries), Rejected: rejected}, nil
	})
	if err != nil {
		return Ledger{}, err
	}
	shared := v.(Ledger)
	return Ledger{
		Records:  append([]core.Record(nil), shared.Records...),
		Rejected: append([]Rejected(nil), shared.Rejected...),
	}, nil
}

// LoadTransactions returns every decodable record in stored order.
func (r *Repository) LoadTransactions(ctx context.Context) ([]core.Record, error) {
	ledger, err := r.LoadLedger(ctx)
	if err != nil {
		return nil, err
	}
	if ledger.Records == nil {
		ledger.Records = []core.Record{}
	}
	return ledger.Records, nil
}

func (r *Repository) readEntries(ctx context.Context, held bool) ([]entry, []Rejected, error) {
	v, ok, err := r.get(ctx, KeyTransactions)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, nil
	}
	entries, rejected, valid := decodeEntries(v)
	if !valid {
		r.reset(ctx, KeyTransactions, v, "[]", held)
		return nil, nil, nil
	}
	if len(rejected) > 0 {
		r.logger.WarnContext(ctx, "Skipping undecodable records",
			log.FieldKey, KeyTransactions, log.FieldCount, len(rejected))
	}
	return entries, rejected, nil
}

func (r *Repository) writeEntries(ctx context.Context, entries []entry) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}
	if err := r.set(ctx, KeyTransactions, data); err != nil {
		return err
	}
	r.notify(ctx, KeyTransactions)
	return nil
}

// SaveTransactions replaces the whole collection.
func (r *Repository) SaveTransactions(ctx context.Context, records []core.Record) error {
	seen := make(map[string]struct{}, len(records))
	entries := make([]entry, 0, len(records))
	for i := range records {
		rec := records[i]
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[rec.ID]; dup {
			return fmt.Errorf("record %d: %w", i, &core.ValidationError{Field: "id", Err: ErrDuplicate})
		}
		seen[rec.ID] = struct{}{}
		entries = append(entries, entry{rec: &rec})
	}

	defer r.lock(KeyTransactions)()
	return r.writeEntries(ctx, entries)
}

func (r *Repository) AppendTransaction(ctx context.Context, rec core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	defer r.lock(KeyTransactions)()
	entries, _, err := r.readEntries(ctx, true)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.rec != nil && e.rec.ID == rec.ID {
			return &core.ValidationError{Field: "id", Err: ErrDuplicate}
		}
	}
	entries = append(entries, entry{rec: &rec})
	if err := r.writeEntries(ctx, entries); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "Transaction appended",
		log.NewFields().WithRecord(rec.ID, string(rec.Type), rec.Nature, rec.Amount.String()).ToSlice()...)
	return nil
}

// UpdateTransaction merges patch into the record with id. An unknown id is a
// logged no-op.
func (r *Repository) UpdateTransaction(ctx context.Context, id string, patch core.RecordPatch) error {
	_, err := r.UpdateExisting(ctx, id, patch)
	return err
}

// UpdateExisting is UpdateTransaction that also reports whether the record
// was found.
func (r *Repository) UpdateExisting(ctx context.Context, id string, patch core.RecordPatch) (bool, error) {
	defer r.lock(KeyTransactions)()
	entries, _, err := r.readEntries(ctx, true)
	if err != nil {
		return false, err
	}

	idx := -1
	for i, e := range entries {
		if e.rec != nil && e.rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.logger.WarnContext(ctx, "Update skipped, record not found", log.FieldRecordID, id)
		return false, nil
	}

	updated := entries[idx].rec.Apply(patch)
	updated.ID = id
	if err := updated.Validate(); err != nil {
		return true, err
	}
	entries[idx] = entry{rec: &updated}
	return true, r.writeEntries(ctx, entries)
}

// DeleteTransaction removes the record with id. An unknown id is a no-op.
func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	defer r.lock(KeyTransactions)()
	entries, _, err := r.readEntries(ctx, true)
	if err != nil {
		return err
	}

	kept := entries[:0:0]
	for _, e := range entries {
		if e.rec != nil && e.rec.ID == id {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == len(entries) {
		r.logger.DebugContext(ctx, "Delete skipped, record not found", log.FieldRecordID, id)
		return nil
	}
	return r.writeEntries(ctx, kept)
}

func (r *Repository) LoadBudgetMap(ctx context.Context, kind core.BudgetKind) (core.BudgetMap, error) {
	key := BudgetKey(kind)
	v, err, _ := r.loads.Do(key, func() (any, error) {
		return r.readBudgets(ctx, key, false)
	})
	if err != nil {
		return nil, err
	}
	return v.(core.BudgetMap).Clone(), nil
}

func (r *Repository) readBudgets(ctx context.Context, key string, held bool) (core.BudgetMap, error) {
	v, ok, err := r.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return core.BudgetMap{}, nil
	}
	m, fixed, valid := decodeBudgets(v)
	if !valid {
		r.reset(ctx, key, v, "{}", held)
		return core.BudgetMap{}, nil
	}
	if len(fixed) > 0 {
		r.logger.WarnContext(ctx, "Coerced unusable budget values",
			log.FieldKey, key, "categories", fixed)
	}
	return m, nil
}

func (r *Repository) writeBudgets(ctx context.Context, key string, m core.BudgetMap) error {
	if m == nil {
		m = core.BudgetMap{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode budgets: %w", err)
	}
	if err := r.set(ctx, key, string(data)); err != nil {
		return err
	}
	r.notify(ctx, key)
	return nil
}

// SaveBudgetMap replaces the whole map for kind.
func (r *Repository) SaveBudgetMap(ctx context.Context, kind core.BudgetKind, m core.BudgetMap) error {
	if err := m.Validate(); err != nil {
		return err
	}
	key := BudgetKey(kind)
	defer r.lock(key)()
	return r.writeBudgets(ctx, key, m)
}

// SetBudget sets one category limit, keeping the rest of the map.
func (r *Repository) SetBudget(ctx context.Context, kind core.BudgetKind, category string, limit core.Amount) error {
	if err := core.ValidateBudget(category, limit); err != nil {
		return err
	}
	key := BudgetKey(kind)
	defer r.lock(key)()
	m, err := r.readBudgets(ctx, key, true)
	if err != nil {
		return err
	}
	m[category] = limit
	return r.writeBudgets(ctx, key, m)
}

func (r *Repository) RemoveBudget(ctx context.Context, kind core.BudgetKind, category string) error {
	key := BudgetKey(kind)
	defer r.lock(key)()
	m, err := r.readBudgets(ctx, key, true)
	if err != nil {
		return err
	}
	if _, ok := m[category]; !ok {
		return nil
	}
	delete(m, category)
	return r.writeBudgets(ctx, key, m)
}

func (r *Repository) LoadPreferences(ctx context.Context) (core.Preferences, error) {
	v, ok, err := r.get(ctx, KeyPreferences)
	if err != nil {
		return core.DefaultPreferences(), err
	}
	if !ok {
		return core.DefaultPreferences(), nil
	}
	p, valid := decodePreferences(v)
	if !valid {
		r.reset(ctx, KeyPreferences, v, "{}", false)
	}
	return p, nil
}

func (r *Repository) SavePreferences(ctx context.Context, p core.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	defer r.lock(KeyPreferences)()
	if err := r.set(ctx, KeyPreferences, string(data)); err != nil {
		return err
	}
	r.notify(ctx, KeyPreferences)
	return nil
}

// ClearLocalData removes every repository key from the local store.
func (r *Repository) ClearLocalData(ctx context.Context) error {
	if err := r.store.MultiRemove(ctx, Keys()); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrStorageIO, err)
	}
	r.logger.InfoContext(ctx, "Local data cleared", log.FieldCount, len(Keys()))
	return nil
}
