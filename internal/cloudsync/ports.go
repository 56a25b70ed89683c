// Package cloudsync mirrors the local ledger keys to a per-user document in
// a remote store and restores them from it.
package cloudsync

import (
	"context"
	"encoding/json"
	"time"
)

// Metadata fields stamped on every merge.
const (
	FieldLastSynced = "lastSyncedToServer"
	FieldAppVersion = "appVersion"
	FieldPlatform   = "platform"
)

// Document is a user's remote document: field name to JSON value.
type Document map[string]json.RawMessage

// RemoteStore holds one document per user.
//
// Merge writes only the given fields, leaving others untouched, and stamps
// FieldLastSynced with the store's own clock. Get reports a missing
// document with found=false.
type RemoteStore interface {
	Get(ctx context.Context, userID string) (doc Document, found bool, err error)
	Merge(ctx context.Context, userID string, fields Document) error
}

// IdentityProvider yields the signed-in user, if any.
type IdentityProvider interface {
	UserID() (string, bool)
}

// Timestamp encodes t the way merges stamp FieldLastSynced.
func Timestamp(t time.Time) json.RawMessage {
	b, _ := json.Marshal(t.UTC().Format(time.RFC3339Nano))
	return b
}

// Clone copies d, including the value bytes.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
