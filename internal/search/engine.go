package search

import (
	"sync"
	"time"

	"budgetbuddy/internal/core"
)

// DefaultDebounce is the quiet period after the last keystroke.
const DefaultDebounce = 500 * time.Millisecond

// Engine keeps the parsed cache and the current query. Text changes are
// debounced; day changes and cache rebuilds apply at once.
type Engine struct {
	mu       sync.Mutex
	loc      *time.Location
	cache    []Entry
	query    Query
	results  []Entry
	onUpdate func([]Entry)
	debounce *Debouncer
}

type EngineOption func(*Engine)

func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) { e.loc = loc }
}

// WithOnUpdate registers a callback for every recomputed result set.
func WithOnUpdate(fn func([]Entry)) EngineOption {
	return func(e *Engine) { e.onUpdate = fn }
}

func NewEngine(delay time.Duration, opts ...EngineOption) *Engine {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	e := &Engine{loc: time.Local}
	for _, opt := range opts {
		opt(e)
	}
	e.debounce = NewDebouncer(delay, e.recompute)
	return e
}

// SetRecords rebuilds the cache and refreshes results.
func (e *Engine) SetRecords(records []core.Record) {
	e.mu.Lock()
	e.cache = BuildCache(records, e.loc)
	e.mu.Unlock()
	e.recompute()
}

// SetText records a keystroke; results follow after the debounce delay.
func (e *Engine) SetText(text string) {
	e.mu.Lock()
	e.query.Text = text
	e.mu.Unlock()
	e.debounce.Trigger()
}

// SetDay changes the day filter and refreshes results at once.
func (e *Engine) SetDay(day string) {
	e.mu.Lock()
	e.query.Day = day
	e.mu.Unlock()
	e.debounce.Cancel()
	e.recompute()
}

// Query returns the live query. Results may still reflect an earlier text
// until the debounce delay has passed.
func (e *Engine) Query() Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

// Results returns the last computed result set.
func (e *Engine) Results() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Entry(nil), e.results...)
}

// Search filters the current cache without touching the engine's query.
func (e *Engine) Search(q Query) []Entry {
	e.mu.Lock()
	cache := e.cache
	e.mu.Unlock()
	return ApplyFilter(cache, q)
}

// Close drops any pending debounced run.
func (e *Engine) Close() {
	e.debounce.Cancel()
}

func (e *Engine) recompute() {
	e.mu.Lock()
	results := ApplyFilter(e.cache, e.query)
	e.results = results
	cb := e.onUpdate
	e.mu.Unlock()

	if cb != nil {
		cb(append([]Entry(nil), results...))
	}
}
