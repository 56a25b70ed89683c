// Package cache holds in-process caches for derived ledger views.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"budgetbuddy/internal/log"
)

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically cleans registered caches.
type Janitor struct {
	mu      sync.Mutex
	caches  []Cleaner
	stop    chan struct{}
	done    chan struct{}
	running bool
	logger  *slog.Logger
}

func NewJanitor() *Janitor {
	return &Janitor{logger: log.For(log.ComponentCache)}
}

func (j *Janitor) Register(c Cleaner) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.caches = append(j.caches, c)
}

// Start runs cleanup every interval until Stop. Calling Start twice is a no-op.
func (j *Janitor) Start(interval time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running || interval <= 0 {
		return
	}
	j.running = true
	j.stop = make(chan struct{})
	j.done = make(chan struct{})
	go j.loop(interval, j.stop, j.done)
}

func (j *Janitor) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.CleanNow(); n > 0 {
				j.logger.Debug("Expired cache entries removed", log.FieldCount, n)
			}
		case <-stop:
			return
		}
	}
}

// CleanNow cleans every registered cache once.
func (j *Janitor) CleanNow() int {
	j.mu.Lock()
	caches := append([]Cleaner(nil), j.caches...)
	j.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop halts the cleanup loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	stop, done := j.stop, j.done
	j.mu.Unlock()

	close(stop)
	<-done
}
