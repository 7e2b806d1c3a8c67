package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/common/logger"
	"investmatch/internal/common/metrics"
)

const notifyChannel = "investmatch_changes"

// PostgresStore implements the document store contract on a single jsonb
// documents table. Live subscriptions ride LISTEN/NOTIFY: every write
// notifies the collection name and each subscription re-runs its query and
// delivers the full matching set.
type PostgresStore struct {
	db            *sql.DB
	dsn           string
	membershipCap int
	logger        logger.Logger

	subMu    sync.Mutex
	subs     map[int64]*postgresSub
	nextSub  int64
	listener *pq.Listener
}

// NewPostgresStore wraps an open connection pool. The DSN is kept for the
// dedicated LISTEN connection, which is only opened once Subscribe is called.
func NewPostgresStore(db *sql.DB, dsn string, membershipCap int, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:            db,
		dsn:           dsn,
		membershipCap: membershipCap,
		logger:        log.WithFields(map[string]interface{}{"component": "postgres-store"}),
		subs:          make(map[int64]*postgresSub),
	}
}

// EnsureSchema creates the documents table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return apperrors.NewStoreConnectionFailedError(err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS documents_data_idx
			ON documents USING gin (data jsonb_path_ops)`)
	if err != nil {
		return apperrors.NewStoreConnectionFailedError(err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Record, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		metrics.StoreOperations.WithLabelValues(collection, "get", "not_found").Inc()
		return Record{}, apperrors.NewRecordNotFoundError(collection, id)
	}
	if err != nil {
		metrics.StoreOperations.WithLabelValues(collection, "get", "error").Inc()
		return Record{}, apperrors.NewStoreQueryFailedError(collection, err)
	}

	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{}, apperrors.NewStoreQueryFailedError(collection, err)
	}
	metrics.StoreOperations.WithLabelValues(collection, "get", "ok").Inc()
	return Record{ID: id, Fields: fields}, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, pred Predicate) ([]Record, error) {
	if size := pred.MembershipSize(); size > s.membershipCap {
		return nil, apperrors.NewMembershipLimitExceededError(membershipField(pred), size, s.membershipCap)
	}

	query, args, err := buildDocumentQuery(collection, pred)
	if err != nil {
		return nil, apperrors.NewStoreQueryFailedError(collection, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.StoreOperations.WithLabelValues(collection, "query", "error").Inc()
		return nil, apperrors.NewStoreQueryFailedError(collection, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, apperrors.NewStoreQueryFailedError(collection, err)
		}
		fields := map[string]interface{}{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, apperrors.NewStoreQueryFailedError(collection, err)
		}
		out = append(out, Record{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreQueryFailedError(collection, err)
	}

	metrics.StoreOperations.WithLabelValues(collection, "query", "ok").Inc()
	return out, nil
}

// buildDocumentQuery renders the predicate as jsonb containment for equality
// clauses and a text-array membership test for the WhereIn clause.
func buildDocumentQuery(collection string, pred Predicate) (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)
	args := []interface{}{collection}

	for _, eq := range pred.equals {
		match, err := json.Marshal(map[string]interface{}{eq.field: eq.value})
		if err != nil {
			return "", nil, fmt.Errorf("marshal equality clause %q: %w", eq.field, err)
		}
		args = append(args, string(match))
		fmt.Fprintf(&sb, ` AND data @> $%d::jsonb`, len(args))
	}

	if pred.in != nil {
		args = append(args, pq.Array(pred.in.values))
		fmt.Fprintf(&sb, ` AND data->>'%s' = ANY($%d)`, pred.in.field, len(args))
	}

	sb.WriteString(` ORDER BY created_at, id`)
	return sb.String(), args, nil
}

func (s *PostgresStore) Insert(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", apperrors.NewStoreWriteFailedError(collection, err)
	}

	id := newDocumentID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, raw,
	)
	if err != nil {
		metrics.StoreOperations.WithLabelValues(collection, "insert", "error").Inc()
		return "", apperrors.NewStoreWriteFailedError(collection, err)
	}

	metrics.StoreOperations.WithLabelValues(collection, "insert", "ok").Inc()
	s.notify(ctx, collection)
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return apperrors.NewStoreWriteFailedError(collection, err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2`,
		collection, id, string(raw),
	)
	if err != nil {
		metrics.StoreOperations.WithLabelValues(collection, "update", "error").Inc()
		return apperrors.NewStoreWriteFailedError(collection, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreWriteFailedError(collection, err)
	}
	if affected == 0 {
		metrics.StoreOperations.WithLabelValues(collection, "update", "not_found").Inc()
		return apperrors.NewRecordNotFoundError(collection, id)
	}

	metrics.StoreOperations.WithLabelValues(collection, "update", "ok").Inc()
	s.notify(ctx, collection)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		metrics.StoreOperations.WithLabelValues(collection, "delete", "error").Inc()
		return apperrors.NewStoreWriteFailedError(collection, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreWriteFailedError(collection, err)
	}
	if affected == 0 {
		metrics.StoreOperations.WithLabelValues(collection, "delete", "not_found").Inc()
		return apperrors.NewRecordNotFoundError(collection, id)
	}

	metrics.StoreOperations.WithLabelValues(collection, "delete", "ok").Inc()
	s.notify(ctx, collection)
	return nil
}

func newDocumentID() string {
	return uuid.New().String()
}

// notify failures are logged, never surfaced: the write itself succeeded and
// subscriptions self-heal on the next event.
func (s *PostgresStore) notify(ctx context.Context, collection string) {
	if _, err := s.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection); err != nil {
		s.logger.Warn("change notify failed", map[string]interface{}{
			"collection": collection,
			"error":      err.Error(),
		})
	}
}

func (s *PostgresStore) Subscribe(collection string, pred Predicate, fn SnapshotFunc) (Subscription, error) {
	if size := pred.MembershipSize(); size > s.membershipCap {
		return nil, apperrors.NewMembershipLimitExceededError(membershipField(pred), size, s.membershipCap)
	}

	s.subMu.Lock()
	if s.listener == nil {
		if err := s.startListenerLocked(); err != nil {
			s.subMu.Unlock()
			return nil, err
		}
	}
	sub := &postgresSub{
		store:      s,
		id:         s.nextSub,
		collection: collection,
		pred:       pred,
		fn:         fn,
	}
	s.subs[sub.id] = sub
	s.nextSub++
	s.subMu.Unlock()

	metrics.ActiveSubscriptions.Inc()

	// Initial snapshot, matching the hosted store's subscribe semantics.
	go sub.refresh()
	return sub, nil
}

func (s *PostgresStore) startListenerLocked() error {
	listener := pq.NewListener(s.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn("listener event", map[string]interface{}{
				"event": int(ev),
				"error": err.Error(),
			})
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return apperrors.NewStoreConnectionFailedError(err)
	}
	s.listener = listener

	go func() {
		for n := range listener.Notify {
			if n == nil {
				// Reconnect: state may have been missed, refresh everything.
				s.refreshSubscriptions("")
				continue
			}
			s.refreshSubscriptions(n.Extra)
		}
	}()
	return nil
}

// refreshSubscriptions re-runs every subscription on the named collection
// (all collections when empty).
func (s *PostgresStore) refreshSubscriptions(collection string) {
	s.subMu.Lock()
	targets := make([]*postgresSub, 0, len(s.subs))
	for _, sub := range s.subs {
		if collection == "" || sub.collection == collection {
			targets = append(targets, sub)
		}
	}
	s.subMu.Unlock()

	for _, sub := range targets {
		sub.refresh()
	}
}

type postgresSub struct {
	store      *PostgresStore
	id         int64
	collection string
	pred       Predicate
	fn         SnapshotFunc

	closeMu sync.Mutex
	closed  bool
}

func (p *postgresSub) refresh() {
	records, err := p.store.Query(context.Background(), p.collection, p.pred)
	if err != nil {
		p.store.logger.Warn("subscription refresh failed", map[string]interface{}{
			"collection": p.collection,
			"error":      err.Error(),
		})
		return
	}

	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return
	}
	p.fn(records)
}

func (p *postgresSub) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	p.closeMu.Unlock()

	p.store.subMu.Lock()
	delete(p.store.subs, p.id)
	p.store.subMu.Unlock()
	metrics.ActiveSubscriptions.Dec()
}

// Close tears down the LISTEN connection. Open subscriptions stop receiving
// events but remain safe to Close.
func (s *PostgresStore) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.listener != nil {
		err := s.listener.Close()
		s.listener = nil
		return err
	}
	return nil
}
