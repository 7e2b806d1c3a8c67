package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/common/metrics"
)

// MemoryStore is an in-process engine with full subscription support. It is
// the reference implementation of the store contract and the test double for
// everything above it.
type MemoryStore struct {
	mu            sync.RWMutex
	collections   map[string]*memoryCollection
	subs          map[int64]*memorySub
	nextSub       int64
	membershipCap int
}

type memoryCollection struct {
	order   []string
	records map[string]map[string]interface{}
}

// NewMemoryStore creates an empty in-memory store with the given membership
// query cap (values per WhereIn clause).
func NewMemoryStore(membershipCap int) *MemoryStore {
	return &MemoryStore{
		collections:   make(map[string]*memoryCollection),
		subs:          make(map[int64]*memorySub),
		membershipCap: membershipCap,
	}
}

func (s *MemoryStore) collection(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{records: make(map[string]map[string]interface{})}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return Record{}, apperrors.NewRecordNotFoundError(collection, id)
	}
	fields, ok := c.records[id]
	if !ok {
		return Record{}, apperrors.NewRecordNotFoundError(collection, id)
	}
	return Record{ID: id, Fields: cloneFields(fields)}, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, pred Predicate) ([]Record, error) {
	if size := pred.MembershipSize(); size > s.membershipCap {
		return nil, apperrors.NewMembershipLimitExceededError(membershipField(pred), size, s.membershipCap)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(collection, pred), nil
}

// queryLocked assumes at least a read lock is held.
func (s *MemoryStore) queryLocked(collection string, pred Predicate) []Record {
	c, ok := s.collections[collection]
	if !ok {
		return []Record{}
	}

	out := []Record{}
	for _, id := range c.order {
		rec := Record{ID: id, Fields: c.records[id]}
		if pred.Matches(rec) {
			out = append(out, Record{ID: id, Fields: cloneFields(c.records[id])})
		}
	}
	return out
}

func (s *MemoryStore) Insert(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := uuid.New().String()

	s.mu.Lock()
	c := s.collection(collection)
	c.records[id] = cloneFields(fields)
	c.order = append(c.order, id)
	deliveries := s.pendingDeliveriesLocked(collection)
	s.mu.Unlock()

	metrics.StoreOperations.WithLabelValues(collection, "insert", "ok").Inc()
	deliver(deliveries)
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	c, ok := s.collections[collection]
	if !ok || c.records[id] == nil {
		s.mu.Unlock()
		metrics.StoreOperations.WithLabelValues(collection, "update", "not_found").Inc()
		return apperrors.NewRecordNotFoundError(collection, id)
	}
	for k, v := range fields {
		c.records[id][k] = v
	}
	deliveries := s.pendingDeliveriesLocked(collection)
	s.mu.Unlock()

	metrics.StoreOperations.WithLabelValues(collection, "update", "ok").Inc()
	deliver(deliveries)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	c, ok := s.collections[collection]
	if !ok || c.records[id] == nil {
		s.mu.Unlock()
		metrics.StoreOperations.WithLabelValues(collection, "delete", "not_found").Inc()
		return apperrors.NewRecordNotFoundError(collection, id)
	}
	delete(c.records, id)
	for i, ordered := range c.order {
		if ordered == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	deliveries := s.pendingDeliveriesLocked(collection)
	s.mu.Unlock()

	metrics.StoreOperations.WithLabelValues(collection, "delete", "ok").Inc()
	deliver(deliveries)
	return nil
}

func (s *MemoryStore) Subscribe(collection string, pred Predicate, fn SnapshotFunc) (Subscription, error) {
	if size := pred.MembershipSize(); size > s.membershipCap {
		return nil, apperrors.NewMembershipLimitExceededError(membershipField(pred), size, s.membershipCap)
	}

	s.mu.Lock()
	sub := &memorySub{
		store:      s,
		id:         s.nextSub,
		collection: collection,
		pred:       pred,
		fn:         fn,
	}
	s.subs[sub.id] = sub
	s.nextSub++
	initial := s.queryLocked(collection, pred)
	s.mu.Unlock()

	metrics.ActiveSubscriptions.Inc()
	sub.deliver(initial)
	return sub, nil
}

type pendingDelivery struct {
	sub     *memorySub
	records []Record
}

// pendingDeliveriesLocked snapshots the matching sets for every subscription
// on the collection. The snapshots are taken under the lock so each delivery
// reflects a consistent state; the callbacks run after the lock is released.
func (s *MemoryStore) pendingDeliveriesLocked(collection string) []pendingDelivery {
	var out []pendingDelivery
	for _, sub := range s.subs {
		if sub.collection != collection {
			continue
		}
		out = append(out, pendingDelivery{sub: sub, records: s.queryLocked(collection, sub.pred)})
	}
	return out
}

func deliver(deliveries []pendingDelivery) {
	for _, d := range deliveries {
		d.sub.deliver(d.records)
	}
}

type memorySub struct {
	store      *MemoryStore
	id         int64
	collection string
	pred       Predicate
	fn         SnapshotFunc

	closeMu sync.Mutex
	closed  bool
}

func (m *memorySub) deliver(records []Record) {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed {
		return
	}
	m.fn(records)
}

func (m *memorySub) Close() {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return
	}
	m.closed = true
	m.closeMu.Unlock()

	m.store.mu.Lock()
	delete(m.store.subs, m.id)
	m.store.mu.Unlock()
	metrics.ActiveSubscriptions.Dec()
}

func membershipField(pred Predicate) string {
	if pred.in == nil {
		return ""
	}
	return pred.in.field
}

func cloneFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
