// Package memfeed provides an in-memory feed.Client for development and
// tests. It preserves the delivery contract of the real store: subscribers
// get the current collection contents first, then live events, ordered per
// document.
package memfeed

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"codecollab/internal/domain"
	"codecollab/internal/feed"
)

// Store is an in-memory document store with change subscriptions.
// Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	docs   map[string]map[string]map[string]any // collection -> docID -> fields
	subs   map[string]map[int]*subscription     // collection -> subID -> sub
	nextID int
	closed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		docs: make(map[string]map[string]map[string]any),
		subs: make(map[string]map[int]*subscription),
	}
}

// subscription buffers snapshots in an unbounded queue drained by a
// dedicated goroutine, so publishers never block on slow consumers and
// per-document ordering is preserved.
type subscription struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []feed.Snapshot
	closed bool

	onSnapshot feed.SnapshotFunc
	onError    feed.ErrorFunc
}

func newSubscription(onSnapshot feed.SnapshotFunc, onError feed.ErrorFunc) *subscription {
	s := &subscription{onSnapshot: onSnapshot, onError: onError}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscription) enqueue(snap feed.Snapshot) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, snap)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscription) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		snap := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.onSnapshot(snap)
	}
}

// Subscribe delivers the current contents of the collection (ordered by
// document ID), then live change events.
func (s *Store) Subscribe(ctx context.Context, collection string, onSnapshot feed.SnapshotFunc, onError feed.ErrorFunc) (feed.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := newSubscription(onSnapshot, onError)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrRemoteUnavailable
	}
	for _, snap := range s.collectionSnapshotsLocked(collection) {
		sub.enqueue(snap)
	}
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]*subscription)
	}
	id := s.nextID
	s.nextID++
	s.subs[collection][id] = sub
	s.mu.Unlock()

	go sub.run()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[collection], id)
			s.mu.Unlock()
			sub.close()
		})
	}
	return unsub, nil
}

// Get returns a copy of the document's fields.
func (s *Store) Get(ctx context.Context, collection, docID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.docs[collection][docID]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", feed.Doc(collection, docID), domain.ErrNotFound)
	}
	return copyFields(fields), nil
}

// List returns copies of every document in the collection, ordered by
// document ID.
func (s *Store) List(ctx context.Context, collection string) ([]feed.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectionSnapshotsLocked(collection), nil
}

// Put creates the document or merges fields into it, then notifies
// subscribers with the merged state.
func (s *Store) Put(ctx context.Context, collection, docID string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrRemoteUnavailable
	}
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]map[string]any)
	}
	doc := s.docs[collection][docID]
	if doc == nil {
		doc = make(map[string]any, len(fields))
		s.docs[collection][docID] = doc
	}
	for k, v := range copyFields(fields) {
		doc[k] = v
	}
	snap := feed.Snapshot{Collection: collection, DocID: docID, Fields: copyFields(doc)}
	s.notifyLocked(collection, snap)
	s.mu.Unlock()
	return nil
}

// Delete removes the document and notifies subscribers with a tombstone.
// Deleting a missing document is a no-op.
func (s *Store) Delete(ctx context.Context, collection, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrRemoteUnavailable
	}
	if _, ok := s.docs[collection][docID]; ok {
		delete(s.docs[collection], docID)
		s.notifyLocked(collection, feed.Snapshot{Collection: collection, DocID: docID, Deleted: true})
	}
	s.mu.Unlock()
	return nil
}

// Close tears down every subscription and rejects further writes.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	var all []*subscription
	for _, subs := range s.subs {
		for _, sub := range subs {
			all = append(all, sub)
		}
	}
	s.subs = make(map[string]map[int]*subscription)
	s.mu.Unlock()
	for _, sub := range all {
		if sub.onError != nil {
			sub.onError(domain.ErrRemoteUnavailable)
		}
		sub.close()
	}
}

func (s *Store) collectionSnapshotsLocked(collection string) []feed.Snapshot {
	docs := s.docs[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snaps := make([]feed.Snapshot, 0, len(ids))
	for _, id := range ids {
		snaps = append(snaps, feed.Snapshot{Collection: collection, DocID: id, Fields: copyFields(docs[id])})
	}
	return snaps
}

func (s *Store) notifyLocked(collection string, snap feed.Snapshot) {
	for _, sub := range s.subs[collection] {
		sub.enqueue(snap)
	}
}

// copyFields deep-copies a field map so callers can never alias stored
// state. Values are strings, numbers, bools, nested maps, and slices.
func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyFields(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
