package db

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRecord struct {
	id        uuid.UUID
	body      []byte
	createdAt time.Time
	updatedAt time.Time
}

// MemoryStore keeps documents in process memory. Bodies are stored encoded
// so callers never share maps with the store.
type MemoryStore struct {
	Now func() time.Time

	mu          sync.RWMutex
	collections map[string][]*memoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Now:         time.Now,
		collections: make(map[string][]*memoryRecord),
	}
}

func (s *MemoryStore) List(_ context.Context, collection string, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.collections[collection]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	out := make([]Document, 0, len(records))
	for _, rec := range records {
		doc, err := rec.document()
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, collection string, id uuid.UUID) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, rec := s.find(collection, id)
	if rec == nil {
		return Document{}, ErrNotFound
	}
	return rec.document()
}

func (s *MemoryStore) Create(_ context.Context, collection string, fields map[string]any) (Document, error) {
	body, err := encodeFields(fields)
	if err != nil {
		return Document{}, err
	}
	now := s.Now().UTC()
	rec := &memoryRecord{id: uuid.New(), body: body, createdAt: now, updatedAt: now}

	s.mu.Lock()
	s.collections[collection] = append(s.collections[collection], rec)
	s.mu.Unlock()

	return rec.document()
}

func (s *MemoryStore) Replace(_ context.Context, collection string, id uuid.UUID, fields map[string]any) (Document, error) {
	body, err := encodeFields(fields)
	if err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, rec := s.find(collection, id)
	if rec == nil {
		return Document{}, ErrNotFound
	}
	rec.body = body
	rec.updatedAt = s.Now().UTC()
	return rec.document()
}

func (s *MemoryStore) Delete(_ context.Context, collection string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, rec := s.find(collection, id)
	if rec == nil {
		return ErrNotFound
	}
	records := s.collections[collection]
	s.collections[collection] = append(records[:idx:idx], records[idx+1:]...)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

// find must be called with mu held.
func (s *MemoryStore) find(collection string, id uuid.UUID) (int, *memoryRecord) {
	for i, rec := range s.collections[collection] {
		if rec.id == id {
			return i, rec
		}
	}
	return -1, nil
}

func (r *memoryRecord) document() (Document, error) {
	fields, err := decodeFields(r.body)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: r.id, Fields: fields, CreatedAt: r.createdAt, UpdatedAt: r.updatedAt}, nil
}
