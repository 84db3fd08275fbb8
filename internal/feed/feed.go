// Package feed abstracts the remote document store and its change feed.
// Documents are schemaless field maps addressed by collection path and
// document ID; subscribers receive the current contents of a collection
// followed by live change events.
package feed

import "context"

// Snapshot is one document state delivered by the feed: either the current
// contents of a document or a tombstone when Deleted is set.
type Snapshot struct {
	Collection string
	DocID      string
	Fields     map[string]any
	Deleted    bool
}

// SnapshotFunc receives document snapshots for a subscription. Calls for a
// given document are ordered; the callback must not block for long.
type SnapshotFunc func(Snapshot)

// ErrorFunc receives subscription-level failures (e.g. the feed connection
// dropping). The subscription is dead once this fires.
type ErrorFunc func(error)

// Unsubscribe tears down a subscription. Safe to call more than once.
type Unsubscribe func()

// Client is a connection to the document store.
//
// Subscribe delivers every current document in the collection, then live
// events as documents change. Put creates or merges fields into a document.
// Writes and reads map failures to the domain error taxonomy:
// ErrNotFound, ErrRemoteUnavailable, ErrPermissionDenied.
type Client interface {
	Subscribe(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error)
	Get(ctx context.Context, collection, docID string) (map[string]any, error)
	List(ctx context.Context, collection string) ([]Snapshot, error)
	Put(ctx context.Context, collection, docID string, fields map[string]any) error
	Delete(ctx context.Context, collection, docID string) error
}
