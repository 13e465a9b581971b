package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and as a storage-free
// dev mode. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string]map[string]map[string]any
	subs    map[int]*memorySub
	nextSub int
	now     func() time.Time
}

type memorySub struct {
	collection string
	where      []Where
	fn         func(Event)
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		data: make(map[string]map[string]map[string]any),
		subs: make(map[int]*memorySub),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return json.Marshal(doc)
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, doc any) (string, error) {
	m, err := encodeDoc(doc)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	now := s.now().UTC().Format(time.RFC3339Nano)
	m["id"] = id
	m["createdAt"] = now
	m["updatedAt"] = now
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]map[string]any)
	}
	s.data[collection][id] = m
	subs := s.matchingSubs(collection, m)
	raw := mustMarshal(m)
	s.mu.Unlock()

	s.emit(subs, Event{Type: EventCreated, Collection: collection, ID: id, Doc: raw})
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	normalized, err := encodeDoc(patch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	doc, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	for k, v := range normalized {
		doc[k] = v
	}
	doc["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)
	subs := s.matchingSubs(collection, doc)
	raw := mustMarshal(doc)
	s.mu.Unlock()

	s.emit(subs, Event{Type: EventUpdated, Collection: collection, ID: id, Doc: raw})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	doc, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.data[collection], id)
	subs := s.matchingSubs(collection, doc)
	raw := mustMarshal(doc)
	s.mu.Unlock()

	s.emit(subs, Event{Type: EventDeleted, Collection: collection, ID: id, Doc: raw})
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []map[string]any
	for _, doc := range s.data[collection] {
		if matches(doc, q.Where) {
			hits = append(hits, doc)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(hits, func(i, j int) bool {
			less := orderLess(hits[i][q.OrderBy], hits[j][q.OrderBy], q.OrderAsTime)
			if q.Desc {
				return !less
			}
			return less
		})
	}
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}

	out := make([]json.RawMessage, 0, len(hits))
	for _, doc := range hits {
		out = append(out, mustMarshal(doc))
	}
	return out, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, where []Where, fn func(Event)) (CancelFunc, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = &memorySub{collection: collection, where: where, fn: fn}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return cancel, nil
}

// matchingSubs must run under s.mu; callbacks run after it is released.
func (s *MemoryStore) matchingSubs(collection string, doc map[string]any) []*memorySub {
	var out []*memorySub
	for _, sub := range s.subs {
		if sub.collection == collection && matches(doc, sub.where) {
			out = append(out, sub)
		}
	}
	return out
}

func (s *MemoryStore) emit(subs []*memorySub, ev Event) {
	for _, sub := range subs {
		sub.fn(ev)
	}
}

func orderLess(a, b any, asTime bool) bool {
	if asTime {
		at, aok := parseInstant(a)
		bt, bok := parseInstant(b)
		if aok && bok {
			return at.Before(bt)
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af < bf
}

func parseInstant(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, err == nil
}

func mustMarshal(doc map[string]any) json.RawMessage {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return raw
}

var _ Store = (*MemoryStore)(nil)
