// Package store is the reactive document store the dashboard reads from.
// Records are schemaless field maps grouped in named collections; every
// write is pushed to subscribers as a full snapshot of the collection.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"teamcal/internal/datemath"
	appLog "teamcal/internal/log"
	"teamcal/internal/model"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Collections lists every collection the store accepts.
var Collections = []string{
	model.CollectionEvents,
	model.CollectionTasks,
	model.CollectionMeetingRequests,
	model.CollectionClients,
	model.CollectionUsers,
	model.CollectionProjects,
}

// Record is one stored document. Fields never contains the id.
type Record struct {
	ID     string
	Fields model.Fields
}

// Listener receives the full, ordered snapshot of a collection.
type Listener func(records []Record)

type Store interface {
	// Subscribe calls fn with the current snapshot before returning and again
	// after every write to collection. orderBy names a field to sort by; a
	// leading "-" sorts descending. The returned func stops delivery and is
	// safe to call more than once.
	Subscribe(collection, orderBy string, fn Listener) (unsubscribe func(), err error)

	// Create stores fields under a new uuid, or under fields["id"] when set,
	// replacing any record with that id.
	Create(ctx context.Context, collection string, fields model.Fields) (string, error)
	// Update merges fields into an existing record.
	Update(ctx context.Context, collection, id string, fields model.Fields) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection, orderBy string) ([]Record, error)

	Close() error
}

func checkCollection(name string) error {
	for _, c := range Collections {
		if c == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

// splitID separates an explicit "id" field from the body.
func splitID(fields model.Fields) (string, model.Fields) {
	body := make(model.Fields, len(fields))
	var id string
	for k, v := range fields {
		if k == "id" {
			if s, ok := v.(string); ok {
				id = strings.TrimSpace(s)
			}
			continue
		}
		body[k] = v
	}
	return id, body
}

func cloneFields(f model.Fields) model.Fields {
	out := make(model.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// sortRecords orders by the orderBy field, falling back to id so the order
// is total.
func sortRecords(recs []Record, orderBy string) {
	desc := strings.HasPrefix(orderBy, "-")
	field := strings.TrimPrefix(orderBy, "-")

	sort.SliceStable(recs, func(i, j int) bool {
		if field != "" {
			c := compareValues(recs[i].Fields[field], recs[j].Fields[field])
			if c != 0 {
				if desc {
					return c > 0
				}
				return c < 0
			}
		}
		return recs[i].ID < recs[j].ID
	})
}

// compareValues puts missing values first. Values that read as instants
// (numbers included) compare chronologically, anything else by string form.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if ta, ok := datemath.ToLocalDate(a, time.UTC); ok {
		if tb, ok := datemath.ToLocalDate(b, time.UTC); ok {
			return ta.Compare(tb)
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	return strings.Compare(sa, sb)
}

type subscriber struct {
	id      uint64
	orderBy string
	fn      Listener
}

// hub fans collection snapshots out to subscribers. Listeners run on the
// writer's goroutine, outside the store's data lock but under the
// collection's delivery lock, so a listener must not write to the collection
// it watches.
type hub struct {
	mu       sync.Mutex
	nextID   uint64
	subs     map[string][]subscriber
	delivery map[string]*sync.Mutex
}

// deliveryLock serializes list-and-deliver per collection. Every snapshot is
// listed after the write that triggered it, so the last one delivered is
// the latest.
func (h *hub) deliveryLock(collection string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.delivery == nil {
		h.delivery = make(map[string]*sync.Mutex)
	}
	l, ok := h.delivery[collection]
	if !ok {
		l = &sync.Mutex{}
		h.delivery[collection] = l
	}
	return l
}

func (h *hub) add(collection, orderBy string, fn Listener) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[string][]subscriber)
	}
	h.nextID++
	h.subs[collection] = append(h.subs[collection], subscriber{id: h.nextID, orderBy: orderBy, fn: fn})
	return h.nextID
}

func (h *hub) remove(collection string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[collection]
	for i, s := range list {
		if s.id == id {
			h.subs[collection] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (h *hub) snapshot(collection string) []subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]subscriber(nil), h.subs[collection]...)
}

// notify re-lists collection once per distinct ordering and delivers it.
func (h *hub) notify(ctx context.Context, collection string, list func(ctx context.Context, collection, orderBy string) ([]Record, error)) {
	subs := h.snapshot(collection)
	if len(subs) == 0 {
		return
	}
	l := h.deliveryLock(collection)
	l.Lock()
	defer l.Unlock()

	byOrder := make(map[string][]Record)
	for _, s := range subs {
		recs, ok := byOrder[s.orderBy]
		if !ok {
			var err error
			recs, err = list(ctx, collection, s.orderBy)
			if err != nil {
				appLog.Error("store: snapshot failed", err, "collection", collection)
				continue
			}
			byOrder[s.orderBy] = recs
		}
		s.fn(copyRecords(recs))
	}
}

func (h *hub) subscribe(collection, orderBy string, fn Listener, list func(ctx context.Context, collection, orderBy string) ([]Record, error)) (func(), error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("store: nil listener")
	}
	l := h.deliveryLock(collection)
	l.Lock()
	initial, err := list(context.Background(), collection, orderBy)
	if err != nil {
		l.Unlock()
		return nil, err
	}
	id := h.add(collection, orderBy, fn)
	fn(initial)
	l.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(collection, id) })
	}, nil
}

// copyRecords gives each listener its own field maps.
func copyRecords(recs []Record) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = Record{ID: r.ID, Fields: cloneFields(r.Fields)}
	}
	return out
}
