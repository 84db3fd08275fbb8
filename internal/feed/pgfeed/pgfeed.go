// Package pgfeed implements feed.Client on PostgreSQL. Documents live in a
// single feed_docs table keyed by full path, with fields stored as JSONB.
// Change events ride LISTEN/NOTIFY on one channel; notification payloads
// carry only the document address, and live documents are re-fetched so
// subscribers always see committed state.
package pgfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"codecollab/internal/domain"
	"codecollab/internal/feed"
)

const notifyChannel = "feed_changes"

// notification is the JSON payload sent on the notify channel.
type notification struct {
	Collection string `json:"collection"`
	DocID      string `json:"doc_id"`
	Deleted    bool   `json:"deleted,omitempty"`
}

// Store is a PostgreSQL-backed feed client.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]map[int]*subscription // collection -> subID -> sub
	nextID int

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a store on the given pool and starts the notification
// listener. Call Close to stop it.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:   pool,
		logger: logger,
		subs:   make(map[string]map[int]*subscription),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.listen(ctx)
	return s
}

// EnsureSchema creates the feed_docs table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS feed_docs (
			path       TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			doc_id     TEXT NOT NULL,
			fields     JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS feed_docs_collection_idx ON feed_docs (collection, doc_id);
	`)
	if err != nil {
		return fmt.Errorf("ensure feed schema: %w", mapPgError(err))
	}
	return nil
}

// Close stops the listener and tears down every subscription.
func (s *Store) Close() {
	s.cancel()
	<-s.done

	s.mu.Lock()
	var all []*subscription
	for _, subs := range s.subs {
		for _, sub := range subs {
			all = append(all, sub)
		}
	}
	s.subs = make(map[string]map[int]*subscription)
	s.mu.Unlock()
	for _, sub := range all {
		sub.close()
	}
}

// Subscribe replays the collection's current documents (ordered by doc ID),
// then delivers live change events.
func (s *Store) Subscribe(ctx context.Context, collection string, onSnapshot feed.SnapshotFunc, onError feed.ErrorFunc) (feed.Unsubscribe, error) {
	snaps, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	sub := newSubscription(onSnapshot, onError)
	for _, snap := range snaps {
		sub.enqueue(snap)
	}

	s.mu.Lock()
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

// Get returns the document's fields.
func (s *Store) Get(ctx context.Context, collection, docID string) (map[string]any, error) {
	var fields map[string]any
	err := s.pool.QueryRow(ctx,
		`SELECT fields FROM feed_docs WHERE path = $1`,
		feed.Doc(collection, docID),
	).Scan(&fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", feed.Doc(collection, docID), domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", feed.Doc(collection, docID), mapPgError(err))
	}
	return fields, nil
}

// List returns every document in the collection, ordered by doc ID.
func (s *Store) List(ctx context.Context, collection string) ([]feed.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc_id, fields FROM feed_docs WHERE collection = $1 ORDER BY doc_id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, mapPgError(err))
	}
	defer rows.Close()

	var snaps []feed.Snapshot
	for rows.Next() {
		var docID string
		var fields map[string]any
		if err := rows.Scan(&docID, &fields); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, mapPgError(err))
		}
		snaps = append(snaps, feed.Snapshot{Collection: collection, DocID: docID, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, mapPgError(err))
	}
	return snaps, nil
}

// Put upserts the document, merging fields at the top level, and notifies
// listeners in the same transaction so events track committed writes.
func (s *Store) Put(ctx context.Context, collection, docID string, fields map[string]any) error {
	payload, err := json.Marshal(notification{Collection: collection, DocID: docID})
	if err != nil {
		return fmt.Errorf("put %s: encode notification: %w", feed.Doc(collection, docID), err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO feed_docs (path, collection, doc_id, fields, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (path) DO UPDATE
			SET fields = feed_docs.fields || EXCLUDED.fields, updated_at = now()`,
			feed.Doc(collection, docID), collection, docID, fields,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload))
		return err
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", feed.Doc(collection, docID), mapPgError(err))
	}
	return nil
}

// Delete removes the document. Deleting a missing document is a no-op and
// sends no event.
func (s *Store) Delete(ctx context.Context, collection, docID string) error {
	payload, err := json.Marshal(notification{Collection: collection, DocID: docID, Deleted: true})
	if err != nil {
		return fmt.Errorf("delete %s: encode notification: %w", feed.Doc(collection, docID), err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM feed_docs WHERE path = $1`, feed.Doc(collection, docID))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload))
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", feed.Doc(collection, docID), mapPgError(err))
	}
	return nil
}

// listen holds one connection on LISTEN and dispatches notifications to
// subscribers, reconnecting with backoff when the connection drops.
func (s *Store) listen(ctx context.Context) {
	defer close(s.done)
	for {
		if err := s.listenOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("feed listener disconnected, retrying", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	for {
		msg, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var n notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			s.logger.Warn("feed listener dropped malformed payload", "payload", msg.Payload)
			continue
		}
		s.dispatch(ctx, n)
	}
}

func (s *Store) dispatch(ctx context.Context, n notification) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs[n.Collection]))
	for _, sub := range s.subs[n.Collection] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	snap := feed.Snapshot{Collection: n.Collection, DocID: n.DocID, Deleted: n.Deleted}
	if !n.Deleted {
		fields, err := s.Get(ctx, n.Collection, n.DocID)
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted between notify and fetch; the delete's own event covers it.
			return
		}
		if err != nil {
			s.logger.Warn("feed listener fetch failed", "collection", n.Collection, "doc_id", n.DocID, "error", err)
			for _, sub := range subs {
				if sub.onError != nil {
					sub.onError(err)
				}
			}
			return
		}
		snap.Fields = fields
	}
	for _, sub := range subs {
		sub.enqueue(snap)
	}
}

// mapPgError translates driver failures into the domain error taxonomy.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, pgErr.Message)
	}
	return &domain.RemoteUnavailableError{Message: err.Error()}
}
