package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"teamcal/internal/model"
)

// Memory is a process-local Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]model.Fields

	hub hub
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]model.Fields)}
}

func (m *Memory) Subscribe(collection, orderBy string, fn Listener) (func(), error) {
	return m.hub.subscribe(collection, orderBy, fn, m.List)
}

func (m *Memory) Create(ctx context.Context, collection string, fields model.Fields) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	id, body := splitID(fields)
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]model.Fields)
	}
	m.docs[collection][id] = body
	m.mu.Unlock()

	m.hub.notify(ctx, collection, m.List)
	return id, nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields model.Fields) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	m.mu.Lock()
	doc, ok := m.docs[collection][id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	merged := cloneFields(doc)
	_, body := splitID(fields)
	for k, v := range body {
		merged[k] = v
	}
	m.docs[collection][id] = merged
	m.mu.Unlock()

	m.hub.notify(ctx, collection, m.List)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.docs[collection][id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("delete %s/%s: %w", collection, id, ErrNotFound)
	}
	delete(m.docs[collection], id)
	m.mu.Unlock()

	m.hub.notify(ctx, collection, m.List)
	return nil
}

func (m *Memory) List(_ context.Context, collection, orderBy string) ([]Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	m.mu.RLock()
	recs := make([]Record, 0, len(m.docs[collection]))
	for id, doc := range m.docs[collection] {
		recs = append(recs, Record{ID: id, Fields: cloneFields(doc)})
	}
	m.mu.RUnlock()

	sortRecords(recs, orderBy)
	return recs, nil
}

func (m *Memory) Close() error { return nil }
