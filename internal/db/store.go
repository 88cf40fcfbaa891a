package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no document matches the collection and id.
var ErrNotFound = errors.New("document not found")

// Store persists schemaless JSON documents grouped by collection.
type Store interface {
	List(ctx context.Context, collection string, limit int) ([]Document, error)
	Get(ctx context.Context, collection string, id uuid.UUID) (Document, error)
	Create(ctx context.Context, collection string, fields map[string]any) (Document, error)
	Replace(ctx context.Context, collection string, id uuid.UUID, fields map[string]any) (Document, error)
	Delete(ctx context.Context, collection string, id uuid.UUID) error
	Ping(ctx context.Context) error
	Close()
}

// Document is a stored JSON object plus the bookkeeping columns.
type Document struct {
	ID        uuid.UUID
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reserved keys are owned by the store and never taken from request bodies.
const (
	KeyID        = "id"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
)

// MarshalJSON flattens Fields and the bookkeeping keys into one object.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+3)
	for k, v := range d.Fields {
		out[k] = v
	}
	out[KeyID] = d.ID
	out[KeyCreatedAt] = d.CreatedAt
	out[KeyUpdatedAt] = d.UpdatedAt
	return json.Marshal(out)
}

func encodeFields(fields map[string]any) ([]byte, error) {
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case KeyID, KeyCreatedAt, KeyUpdatedAt:
			continue
		}
		clean[k] = v
	}
	return json.Marshal(clean)
}

func decodeFields(raw []byte) (map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
