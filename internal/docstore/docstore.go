// Package docstore is a minimal JSON document store: named collections of
// id-keyed documents with point reads, AND-combined filtered queries and
// change subscriptions. Timestamps are stamped server-side on every write.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("document not found")

type Op string

const (
	OpEqual          Op = "=="
	OpNotEqual       Op = "!="
	OpLess           Op = "<"
	OpLessOrEqual    Op = "<="
	OpGreater        Op = ">"
	OpGreaterOrEqual Op = ">="
	OpIn             Op = "in"
)

// Where is a single predicate on a top-level document field. Values may be
// strings, numbers, bools or time.Time; instants are compared as instants
// regardless of how the stored document serialized them.
type Where struct {
	Field string
	Op    Op
	Value any
}

type Query struct {
	Where   []Where
	OrderBy string
	// OrderAsTime makes OrderBy compare the field as an instant rather
	// than as text.
	OrderAsTime bool
	Desc        bool
	Limit       int
}

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

type Event struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	// Doc is the document after the change, or its last value for deletes.
	Doc json.RawMessage `json:"doc,omitempty"`
}

type CancelFunc func()

type Store interface {
	// Get returns the raw document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	// Create persists doc under id, generating an id when empty. The
	// stored document carries server-stamped id, createdAt and updatedAt
	// fields.
	Create(ctx context.Context, collection, id string, doc any) (string, error)
	// Update shallow-merges patch into the document and restamps
	// updatedAt. ErrNotFound when the id does not resolve.
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]json.RawMessage, error)
	// Subscribe delivers change events for documents matching where until
	// the returned cancel runs or ctx ends.
	Subscribe(ctx context.Context, collection string, where []Where, fn func(Event)) (CancelFunc, error)
}

func encodeDoc(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	return m, nil
}

func matches(doc map[string]any, where []Where) bool {
	for _, w := range where {
		if !matchOne(doc[w.Field], w) {
			return false
		}
	}
	return true
}

func matchOne(got any, w Where) bool {
	if w.Op == OpIn {
		for _, want := range inValues(w.Value) {
			if cmp, ok := compareValues(got, want); ok && cmp == 0 {
				return true
			}
		}
		return false
	}

	cmp, ok := compareValues(got, w.Value)
	if !ok {
		return w.Op == OpNotEqual
	}
	switch w.Op {
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	case OpLess:
		return cmp < 0
	case OpLessOrEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterOrEqual:
		return cmp >= 0
	}
	return false
}

func inValues(v any) []any {
	switch vs := v.(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

// compareValues orders a stored JSON value against a caller-supplied one.
// The second return is false when the two are not comparable.
func compareValues(got, want any) (int, bool) {
	switch w := want.(type) {
	case time.Time:
		s, ok := got.(string)
		if !ok {
			return 0, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, false
		}
		return t.Compare(w), true
	case string:
		s, ok := got.(string)
		if !ok {
			return 0, false
		}
		switch {
		case s < w:
			return -1, true
		case s > w:
			return 1, true
		}
		return 0, true
	case bool:
		b, ok := got.(bool)
		if !ok {
			return 0, false
		}
		if b == w {
			return 0, true
		}
		return 1, true
	default:
		gf, ok1 := toFloat(got)
		wf, ok2 := toFloat(want)
		if !ok1 || !ok2 {
			return 0, false
		}
		switch {
		case gf < wf:
			return -1, true
		case gf > wf:
			return 1, true
		}
		return 0, true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
