// Package store defines the generic document store contract the repositories
// are built on: CRUD by id, equality/membership queries, and live
// subscriptions that re-deliver the full matching set on every change.
package store

import "context"

// Record is a stored document: an opaque store-assigned id plus its fields.
type Record struct {
	ID     string
	Fields map[string]interface{}
}

// Predicate is the query surface the store supports: any number of field
// equality clauses and at most one membership clause. Membership cardinality
// is capped by the engine; callers batch above the cap.
type Predicate struct {
	equals []equalityClause
	in     *membershipClause
}

type equalityClause struct {
	field string
	value interface{}
}

type membershipClause struct {
	field  string
	values []string
}

// Where starts a predicate with a field equality clause.
func Where(field string, value interface{}) Predicate {
	return Predicate{}.Where(field, value)
}

// WhereIn starts a predicate with a membership clause.
func WhereIn(field string, values []string) Predicate {
	return Predicate{}.WhereIn(field, values)
}

// All matches every record in a collection.
func All() Predicate {
	return Predicate{}
}

// Where adds a field equality clause.
func (p Predicate) Where(field string, value interface{}) Predicate {
	p.equals = append(p.equals, equalityClause{field: field, value: value})
	return p
}

// WhereIn sets the membership clause. Calling it twice replaces the clause;
// the store contract supports at most one per query.
func (p Predicate) WhereIn(field string, values []string) Predicate {
	p.in = &membershipClause{field: field, values: values}
	return p
}

// MembershipSize returns the cardinality of the membership clause, 0 if none.
func (p Predicate) MembershipSize() int {
	if p.in == nil {
		return 0
	}
	return len(p.in.values)
}

// Matches evaluates the predicate against a record. It is the reference
// semantics every engine must agree with.
func (p Predicate) Matches(r Record) bool {
	for _, eq := range p.equals {
		if !looselyEqual(r.Fields[eq.field], eq.value) {
			return false
		}
	}
	if p.in != nil {
		got, ok := r.Fields[p.in.field].(string)
		if !ok {
			return false
		}
		found := false
		for _, v := range p.in.values {
			if v == got {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// looselyEqual compares field values the way a JSON document store does:
// all numbers are one numeric type.
func looselyEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// SnapshotFunc receives the full current matching set for a subscription's
// predicate. It is a refresh, not a diff.
type SnapshotFunc func(records []Record)

// Subscription is a live query handle. The caller owns its lifetime and must
// Close it when the consuming view goes away; Close is idempotent and no
// delivery happens after it returns.
type Subscription interface {
	Close()
}

// Store is the document store contract consumed by the repositories.
type Store interface {
	// Get returns the record or a RECORD_NOT_FOUND error.
	Get(ctx context.Context, collection, id string) (Record, error)
	// Query returns every record matching the predicate, in store order.
	Query(ctx context.Context, collection string, pred Predicate) ([]Record, error)
	// Insert persists a new record and returns its store-assigned id.
	Insert(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
	// Update merges fields into an existing record, RECORD_NOT_FOUND if absent.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	// Delete removes a record, RECORD_NOT_FOUND if absent.
	Delete(ctx context.Context, collection, id string) error
	// Subscribe delivers the current matching set immediately and again after
	// every change to the collection.
	Subscribe(collection string, pred Predicate, fn SnapshotFunc) (Subscription, error)
}
