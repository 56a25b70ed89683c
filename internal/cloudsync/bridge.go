package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgetbuddy/internal/kv"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/repository"
)

var (
	ErrNotAuthenticated = errors.New("no signed-in user")
	ErrNoBackup         = errors.New("no backup found")
	ErrNothingToSync    = errors.New("no local data to back up")
	ErrNothingToRestore = errors.New("backup holds no restorable data")
	// ErrRemoteSync wraps failures of the remote store.
	ErrRemoteSync = errors.New("remote sync failed")
)

type Config struct {
	AppVersion string
	Platform   string
	// Keys defaults to every repository key.
	Keys []string
	// MirrorTimeout bounds one background single-key mirror.
	MirrorTimeout time.Duration
}

type Bridge struct {
	store    kv.Store
	remote   RemoteStore
	identity IdentityProvider
	cfg      Config
	logger   *slog.Logger
}

// PushResult lists the keys written to the remote document.
type PushResult struct {
	UserID string   `json:"userId"`
	Keys   []string `json:"keys"`
}

// PullResult lists the keys restored locally.
type PullResult struct {
	UserID string   `json:"userId"`
	Keys   []string `json:"keys"`
}

var _ repository.ChangeNotifier = (*Bridge)(nil)

func New(store kv.Store, remote RemoteStore, identity IdentityProvider, cfg Config) *Bridge {
	if len(cfg.Keys) == 0 {
		cfg.Keys = repository.Keys()
	}
	if cfg.MirrorTimeout <= 0 {
		cfg.MirrorTimeout = 15 * time.Second
	}
	return &Bridge{
		store:    store,
		remote:   remote,
		identity: identity,
		cfg:      cfg,
		logger:   log.For(log.ComponentSync),
	}
}

// Keys returns the keys the bridge mirrors.
func (b *Bridge) Keys() []string {
	return append([]string(nil), b.cfg.Keys...)
}

func (b *Bridge) syncable(key string) bool {
	for _, k := range b.cfg.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// encodeValue keeps JSON values as JSON and wraps anything else as a string.
func encodeValue(v string) json.RawMessage {
	if json.Valid([]byte(v)) {
		return json.RawMessage(v)
	}
	b, _ := json.Marshal(v)
	return b
}

// decodeValue writes strings back verbatim and other JSON values as their text.
func decodeValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	return string(raw), true
}

// Push backs up every syncable key with a local value to the signed-in
// user's document.
func (b *Bridge) Push(ctx context.Context) (PushResult, error) {
	uid, ok := b.identity.UserID()
	if !ok {
		return PushResult{}, ErrNotAuthenticated
	}

	pairs, err := b.store.MultiGet(ctx, b.cfg.Keys)
	if err != nil {
		return PushResult{}, fmt.Errorf("%w: read local keys: %w", repository.ErrStorageIO, err)
	}

	fields := make(Document, len(pairs)+2)
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if !p.Found {
			continue
		}
		fields[p.Key] = encodeValue(p.Value)
		keys = append(keys, p.Key)
	}
	if len(keys) == 0 {
		b.logger.InfoContext(ctx, "Nothing to back up", log.FieldUserID, uid)
		return PushResult{UserID: uid}, ErrNothingToSync
	}

	fields[FieldAppVersion], _ = json.Marshal(b.cfg.AppVersion)
	fields[FieldPlatform], _ = json.Marshal(b.cfg.Platform)

	if err := b.remote.Merge(ctx, uid, fields); err != nil {
		return PushResult{}, fmt.Errorf("%w: merge document: %w", ErrRemoteSync, err)
	}

	b.logger.InfoContext(ctx, "Local data backed up",
		log.FieldUserID, uid, log.FieldCount, len(keys), log.FieldOperation, log.OpPush)
	return PushResult{UserID: uid, Keys: keys}, nil
}

// PushKey mirrors one key. It is a no-op without a signed-in user, for keys
// outside the sync set, and for keys with no local value.
func (b *Bridge) PushKey(ctx context.Context, key string) error {
	uid, ok := b.identity.UserID()
	if !ok || !b.syncable(key) {
		return nil
	}

	v, found, err := b.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", repository.ErrStorageIO, key, err)
	}
	if !found {
		return nil
	}

	if err := b.remote.Merge(ctx, uid, Document{key: encodeValue(v)}); err != nil {
		return fmt.Errorf("%w: merge %s: %w", ErrRemoteSync, key, err)
	}
	b.logger.DebugContext(ctx, "Key mirrored", log.FieldUserID, uid, log.FieldKey, key)
	return nil
}

// KeyChanged mirrors key in the background.
func (b *Bridge) KeyChanged(ctx context.Context, key string) {
	if _, ok := b.identity.UserID(); !ok || !b.syncable(key) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.MirrorTimeout)
		defer cancel()
		if err := b.PushKey(ctx, key); err != nil {
			b.logger.WarnContext(ctx, "Background mirror failed",
				log.FieldKey, key, log.FieldOperation, log.OpMirror, log.FieldError, err)
		}
	}()
}

// Pull restores every syncable key present in the signed-in user's
// document. Local data is only written once the document has been fetched,
// and all keys are written together.
func (b *Bridge) Pull(ctx context.Context) (PullResult, error) {
	uid, ok := b.identity.UserID()
	if !ok {
		return PullResult{}, ErrNotAuthenticated
	}

	doc, found, err := b.remote.Get(ctx, uid)
	if err != nil {
		return PullResult{}, fmt.Errorf("%w: fetch document: %w", ErrRemoteSync, err)
	}
	if !found {
		return PullResult{UserID: uid}, ErrNoBackup
	}

	pairs := make([]kv.Pair, 0, len(b.cfg.Keys))
	for _, key := range b.cfg.Keys {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		v, ok := decodeValue(raw)
		if !ok {
			continue
		}
		pairs = append(pairs, kv.Pair{Key: key, Value: v, Found: true})
	}
	if len(pairs) == 0 {
		return PullResult{UserID: uid}, ErrNothingToRestore
	}

	if err := b.store.MultiSet(ctx, pairs); err != nil {
		return PullResult{}, fmt.Errorf("%w: write restored keys: %w", repository.ErrStorageIO, err)
	}

	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
	}
	b.logger.InfoContext(ctx, "Backup restored",
		log.FieldUserID, uid, log.FieldCount, len(keys), log.FieldOperation, log.OpPull)
	return PullResult{UserID: uid, Keys: keys}, nil
}
