package worker

import (
	"context"
	"errors"
	"testing"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/cloudsync"
	remotemem "budgetbuddy/internal/cloudsync/remote/memory"
	kvmem "budgetbuddy/internal/kv/memory"
	"budgetbuddy/internal/repository"
)

type flakyRemote struct {
	cloudsync.RemoteStore
	fail bool
}

func (f *flakyRemote) Merge(ctx context.Context, uid string, fields cloudsync.Document) error {
	if f.fail {
		return errors.New("unavailable")
	}
	return f.RemoteStore.Merge(ctx, uid, fields)
}

func TestHandleKeyChanged(t *testing.T) {
	ctx := context.Background()
	store := kvmem.New()
	remote := remotemem.New()
	if err := store.Set(ctx, repository.KeyPreferences, `{"currency":"EUR","notificationsEnabled":true}`); err != nil {
		t.Fatal(err)
	}

	w := NewSyncWorker(store, remote, cloudsync.Config{AppVersion: "1.0.1", Platform: "linux"})
	if err := w.HandleKeyChanged(ctx, amqp.NewKeyChangedMessage("u1", repository.KeyPreferences)); err != nil {
		t.Fatal(err)
	}

	doc, found, err := remote.Get(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("document: found=%v err=%v", found, err)
	}
	if string(doc[repository.KeyPreferences]) != `{"currency":"EUR","notificationsEnabled":true}` {
		t.Fatalf("mirrored value: %s", doc[repository.KeyPreferences])
	}
	if _, ok := doc[repository.KeyTransactions]; ok {
		t.Fatal("only the changed key should be mirrored")
	}

	// keys outside the sync set and absent keys are skipped without error
	for _, key := range []string{"theme", repository.KeyTransactions} {
		if err := w.HandleKeyChanged(ctx, amqp.NewKeyChangedMessage("u1", key)); err != nil {
			t.Fatalf("%s: %v", key, err)
		}
	}
}

func TestHandleKeyChangedRemoteFailure(t *testing.T) {
	ctx := context.Background()
	store := kvmem.New()
	if err := store.Set(ctx, repository.KeyTransactions, `[]`); err != nil {
		t.Fatal(err)
	}
	w := NewSyncWorker(store, &flakyRemote{RemoteStore: remotemem.New(), fail: true}, cloudsync.Config{})

	err := w.HandleKeyChanged(ctx, amqp.NewKeyChangedMessage("u1", repository.KeyTransactions))
	if !errors.Is(err, cloudsync.ErrRemoteSync) {
		t.Fatalf("expected remote sync error, got %v", err)
	}
}

func TestCatchUp(t *testing.T) {
	ctx := context.Background()
	store := kvmem.New()
	remote := &flakyRemote{RemoteStore: remotemem.New(), fail: true}
	w := NewSyncWorker(store, remote, cloudsync.Config{})

	if err := w.CatchUp(ctx); err != nil {
		t.Fatalf("no users: %v", err)
	}

	if err := store.Set(ctx, repository.KeyExpenseBudget, `{"Food":100}`); err != nil {
		t.Fatal(err)
	}
	_ = w.HandleKeyChanged(ctx, amqp.NewKeyChangedMessage("u1", repository.KeyExpenseBudget))

	if err := w.CatchUp(ctx); !errors.Is(err, cloudsync.ErrRemoteSync) {
		t.Fatalf("expected failure, got %v", err)
	}

	remote.fail = false
	if err := w.CatchUp(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	doc, found, _ := remote.Get(ctx, "u1")
	if !found || string(doc[repository.KeyExpenseBudget]) != `{"Food":100}` {
		t.Fatalf("document after catch-up: %v", doc)
	}

	// the user was cleared after a successful round
	remote.fail = true
	if err := w.CatchUp(ctx); err != nil {
		t.Fatalf("empty round: %v", err)
	}
}
