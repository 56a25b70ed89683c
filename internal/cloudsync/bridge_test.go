package cloudsync_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"budgetbuddy/internal/cloudsync"
	remotemem "budgetbuddy/internal/cloudsync/remote/memory"
	"budgetbuddy/internal/kv"
	kvmem "budgetbuddy/internal/kv/memory"
	"budgetbuddy/internal/repository"
)

type identity struct{ uid string }

func (i identity) UserID() (string, bool) { return i.uid, i.uid != "" }

type brokenRemote struct{ err error }

func (b brokenRemote) Get(context.Context, string) (cloudsync.Document, bool, error) {
	return nil, false, b.err
}

func (b brokenRemote) Merge(context.Context, string, cloudsync.Document) error { return b.err }

// failingMultiSet makes MultiSet fail.
type failingMultiSet struct{ kv.Store }

func (failingMultiSet) MultiSet(context.Context, []kv.Pair) error { return errors.New("read-only") }

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func cfg() cloudsync.Config {
	return cloudsync.Config{AppVersion: "1.0.1", Platform: "linux"}
}

func seed(t *testing.T, store kv.Store) map[string]string {
	t.Helper()
	values := map[string]string{
		repository.KeyTransactions:  `[{"id":"1","type":"Expense","nature":"Food","amount":12.5,"date":"2024-03-01T10:00:00.000Z"}]`,
		repository.KeyExpenseBudget: `{"Food":200}`,
		repository.KeyPreferences:   `{"currency":"USD","notificationsEnabled":false}`,
	}
	for k, v := range values {
		if err := store.Set(context.Background(), k, v); err != nil {
			t.Fatal(err)
		}
	}
	return values
}

func TestPushRequiresIdentity(t *testing.T) {
	b := cloudsync.New(kvmem.New(), remotemem.New(), identity{}, cfg())
	if _, err := b.Push(context.Background()); !errors.Is(err, cloudsync.ErrNotAuthenticated) {
		t.Fatalf("push: %v", err)
	}
	if _, err := b.Pull(context.Background()); !errors.Is(err, cloudsync.ErrNotAuthenticated) {
		t.Fatalf("pull: %v", err)
	}
	if err := b.PushKey(context.Background(), repository.KeyTransactions); err != nil {
		t.Fatalf("single-key mirror should skip silently: %v", err)
	}
}

func TestPushWritesFieldsAndMetadata(t *testing.T) {
	ctx := context.Background()
	store := kvmem.New()
	seed(t, store)
	_ = store.Set(ctx, "auth_token", "secret")
	remote := remotemem.New().WithClock(func() time.Time { return fixedNow })

	res, err := cloudsync.New(store, remote, identity{"u1"}, cfg()).Push(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Keys) != 3 || res.UserID != "u1" {
		t.Fatalf("result: %+v", res)
	}

	doc, found, _ := remote.Get(ctx, "u1")
	if !found {
		t.Fatal("document not written")
	}
	if _, ok := doc["auth_token"]; ok {
		t.Fatalf("non-sync key leaked: %v", doc)
	}
	if _, ok := doc[repository.KeyBorrowingLimits]; ok {
		t.Fatalf("absent key should not be written")
	}
	if string(doc[cloudsync.FieldAppVersion]) != `"1.0.1"` || string(doc[cloudsync.FieldPlatform]) != `"linux"` {
		t.Fatalf("metadata: %s %s", doc[cloudsync.FieldAppVersion], doc[cloudsync.FieldPlatform])
	}
	if string(doc[cloudsync.FieldLastSynced]) != string(cloudsync.Timestamp(fixedNow)) {
		t.Fatalf("timestamp: %s", doc[cloudsync.FieldLastSynced])
	}

	var budget map[string]any
	if err := json.Unmarshal(doc[repository.KeyExpenseBudget], &budget); err != nil {
		t.Fatalf("JSON values should be stored parsed: %v", err)
	}
}

func TestPushNonJSONValueAsString(t *testing.T) {
	ctx := context.Background()
	store := kvmem.New()
	_ = store.Set(ctx, repository.KeyPreferences, "not json")
	remote := remotemem.New()

	if _, err := cloudsync.New(store, remote, identity{"u1"}, cfg()).Push(ctx); err != nil {
		t.Fatal(err)
	}
	doc, _, _ := remote.Get(ctx, "u1")
	if string(doc[repository.KeyPreferences]) != `"not json"` {
		t.Fatalf("got %s", doc[repository.KeyPreferences])
	}
}

func TestPushNothingToSync(t *testing.T) {
	ctx := context.Background()
	remote := remotemem.New()
	_, err := cloudsync.New(kvmem.New(), remote, identity{"u1"}, cfg()).Push(ctx)
	if !errors.Is(err, cloudsync.ErrNothingToSync) {
		t.Fatalf("expected nothing to sync, got %v", err)
	}
	if _, found, _ := remote.Get(ctx, "u1"); found {
		t.Fatalf("metadata-only document must not be written")
	}
}

func TestPushThenPullOnFreshDevice(t *testing.T) {
	ctx := context.Background()
	device := kvmem.New()
	values := seed(t, device)
	remote := remotemem.New()

	if _, err := cloudsync.New(device, remote, identity{"u1"}, cfg()).Push(ctx); err != nil {
		t.Fatal(err)
	}

	fresh := kvmem.New()
	res, err := cloudsync.New(fresh, remote, identity{"u1"}, cfg()).Pull(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Keys) != len(values) {
		t.Fatalf("restored keys: %v", res.Keys)
	}
	for k, want := range values {
		got, ok, _ := fresh.Get(ctx, k)
		if !ok || got != want {
			t.Fatalf("%s: got %q want %q", k, got, want)
		}
	}
	if _, ok, _ := fresh.Get(ctx, cloudsync.FieldAppVersion); ok {
		t.Fatalf("metadata must not be restored as a local key")
	}
}

func TestPullRestoresStringsVerbatim(t *testing.T) {
	ctx := context.Background()
	remote := remotemem.New()
	_ = remote.Merge(ctx, "u1", cloudsync.Document{repository.KeyPreferences: json.RawMessage(`"raw text"`)})

	store := kvmem.New()
	if _, err := cloudsync.New(store, remote, identity{"u1"}, cfg()).Pull(ctx); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := store.Get(ctx, repository.KeyPreferences); v != "raw text" {
		t.Fatalf("got %q", v)
	}
}

func TestPullMissingAndEmptyDocuments(t *testing.T) {
	ctx := context.Background()
	remote := remotemem.New()
	b := cloudsync.New(kvmem.New(), remote, identity{"u1"}, cfg())

	if _, err := b.Pull(ctx); !errors.Is(err, cloudsync.ErrNoBackup) {
		t.Fatalf("missing document: %v", err)
	}

	_ = remote.Merge(ctx, "u1", cloudsync.Document{"analysisData": json.RawMessage(`{}`)})
	if _, err := b.Pull(ctx); !errors.Is(err, cloudsync.ErrNothingToRestore) {
		t.Fatalf("document without sync keys: %v", err)
	}
}

func TestFailuresLeaveLocalDataAlone(t *testing.T) {
	ctx := context.Background()
	store := kvmem.New()
	values := seed(t, store)
	remoteErr := errors.New("network down")

	b := cloudsync.New(store, brokenRemote{remoteErr}, identity{"u1"}, cfg())
	if _, err := b.Pull(ctx); !errors.Is(err, cloudsync.ErrRemoteSync) || !errors.Is(err, remoteErr) {
		t.Fatalf("pull: %v", err)
	}
	if _, err := b.Push(ctx); !errors.Is(err, cloudsync.ErrRemoteSync) {
		t.Fatalf("push: %v", err)
	}
	for k, want := range values {
		if got, _, _ := store.Get(ctx, k); got != want {
			t.Fatalf("%s changed after failed sync: %q", k, got)
		}
	}

	remote := remotemem.New()
	_ = remote.Merge(ctx, "u1", cloudsync.Document{repository.KeyTransactions: json.RawMessage(`[]`)})
	b = cloudsync.New(failingMultiSet{store}, remote, identity{"u1"}, cfg())
	if _, err := b.Pull(ctx); !errors.Is(err, repository.ErrStorageIO) {
		t.Fatalf("local write failure: %v", err)
	}
}

func TestPushKey(t *testing.T) {
	ctx := context.Background()
	store := kvmem.New()
	seed(t, store)
	remote := remotemem.New()
	b := cloudsync.New(store, remote, identity{"u1"}, cfg())

	if err := b.PushKey(ctx, "auth_token"); err != nil {
		t.Fatal(err)
	}
	if err := b.PushKey(ctx, repository.KeyBorrowingLimits); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := remote.Get(ctx, "u1"); found {
		t.Fatalf("skipped keys must not create a document")
	}

	if err := b.PushKey(ctx, repository.KeyPreferences); err != nil {
		t.Fatal(err)
	}
	doc, _, _ := remote.Get(ctx, "u1")
	if len(doc) != 2 {
		t.Fatalf("expected key plus timestamp, got %v", doc)
	}
	if _, ok := doc[cloudsync.FieldLastSynced]; !ok {
		t.Fatalf("timestamp missing")
	}
}

func TestKeyChangedMirrorsInBackground(t *testing.T) {
	ctx := context.Background()
	store := kvmem.New()
	seed(t, store)
	remote := remotemem.New()
	b := cloudsync.New(store, remote, identity{"u1"}, cfg())

	b.KeyChanged(ctx, repository.KeyTransactions)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if doc, found, _ := remote.Get(ctx, "u1"); found {
			if _, ok := doc[repository.KeyTransactions]; ok {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("key was not mirrored")
}
