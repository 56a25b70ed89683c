// Package worker mirrors changed ledger keys to the remote document store
// on behalf of the API process.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/cloudsync"
	"budgetbuddy/internal/kv"
	"budgetbuddy/internal/log"
)

// SyncWorker handles key-changed messages against the shared local store.
type SyncWorker struct {
	store  kv.Store
	remote cloudsync.RemoteStore
	cfg    cloudsync.Config
	logger *slog.Logger

	mu    sync.Mutex
	users map[string]struct{} // seen since the last catch-up
}

func NewSyncWorker(store kv.Store, remote cloudsync.RemoteStore, cfg cloudsync.Config) *SyncWorker {
	return &SyncWorker{
		store:  store,
		remote: remote,
		cfg:    cfg,
		logger: log.For(log.ComponentWorker),
		users:  make(map[string]struct{}),
	}
}

func (w *SyncWorker) bridge(userID string) *cloudsync.Bridge {
	return cloudsync.New(w.store, w.remote, auth.Fixed(userID), w.cfg)
}

// HandleKeyChanged mirrors the message's key for its user. Errors are
// returned so the message is requeued.
func (w *SyncWorker) HandleKeyChanged(ctx context.Context, msg *amqp.KeyChangedMessage) error {
	w.mu.Lock()
	w.users[msg.UserID] = struct{}{}
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Processing key changed message",
		log.FieldUserID, msg.UserID, log.FieldKey, msg.Key)

	if err := w.bridge(msg.UserID).PushKey(ctx, msg.Key); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror key",
			log.FieldUserID, msg.UserID, log.FieldKey, msg.Key, log.FieldError, err)
		return err
	}
	return nil
}

// CatchUp backs up every key for each user seen since the previous call,
// covering messages lost before they reached the worker. Users whose backup
// fails are kept for the next round.
func (w *SyncWorker) CatchUp(ctx context.Context) error {
	w.mu.Lock()
	users := make([]string, 0, len(w.users))
	for u := range w.users {
		users = append(users, u)
	}
	w.users = make(map[string]struct{})
	w.mu.Unlock()
	sort.Strings(users)

	var errs []error
	synced := 0
	for _, uid := range users {
		_, err := w.bridge(uid).Push(ctx)
		switch {
		case err == nil:
			synced++
		case errors.Is(err, cloudsync.ErrNothingToSync):
		default:
			errs = append(errs, err)
			w.mu.Lock()
			w.users[uid] = struct{}{}
			w.mu.Unlock()
			w.logger.ErrorContext(ctx, "Catch-up backup failed", log.FieldUserID, uid, log.FieldError, err)
		}
	}

	if len(users) > 0 {
		w.logger.InfoContext(ctx, "Catch-up completed",
			"users", len(users), "synced", synced, "errors", len(errs))
	}
	return errors.Join(errs...)
}
