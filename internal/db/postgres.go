package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// PostgresStore keeps documents in a jsonb column through a pgx pool.
type PostgresStore struct {
	Pool *pgxpool.Pool
	Now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool, Now: time.Now}
}

// OpenPostgres builds a pool from url, checks it with a ping and applies
// migrations when migrate is set.
func OpenPostgres(ctx context.Context, url string, migrate bool, logger *zap.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if migrate {
		sqlDB := stdlib.OpenDBFromPool(pool)
		err := Migrate(ctx, sqlDB, "postgres", logger)
		sqlDB.Close()
		if err != nil {
			pool.Close()
			return nil, err
		}
	}
	return NewPostgresStore(pool), nil
}

func (s *PostgresStore) List(ctx context.Context, collection string, limit int) ([]Document, error) {
	rows, err := s.Pool.Query(ctx,
		`select id::text, body::text, created_at, updated_at
		from documents
		where collection = $1
		order by created_at asc, id asc
		limit $2`,
		collection, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanPostgresDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, collection string, id uuid.UUID) (Document, error) {
	row := s.Pool.QueryRow(ctx,
		`select id::text, body::text, created_at, updated_at
		from documents
		where collection = $1 and id = $2::uuid`,
		collection, id.String(),
	)
	doc, err := scanPostgresDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func (s *PostgresStore) Create(ctx context.Context, collection string, fields map[string]any) (Document, error) {
	body, err := encodeFields(fields)
	if err != nil {
		return Document{}, err
	}
	now := s.Now().UTC()

	row := s.Pool.QueryRow(ctx,
		`insert into documents(id, collection, body, created_at, updated_at)
		values ($1::uuid, $2, $3::jsonb, $4, $4)
		returning id::text, body::text, created_at, updated_at`,
		uuid.New().String(), collection, string(body), now,
	)
	return scanPostgresDocument(row)
}

func (s *PostgresStore) Replace(ctx context.Context, collection string, id uuid.UUID, fields map[string]any) (Document, error) {
	body, err := encodeFields(fields)
	if err != nil {
		return Document{}, err
	}

	row := s.Pool.QueryRow(ctx,
		`update documents
			set body = $1::jsonb, updated_at = $2
		where collection = $3 and id = $4::uuid
		returning id::text, body::text, created_at, updated_at`,
		string(body), s.Now().UTC(), collection, id.String(),
	)
	doc, err := scanPostgresDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func (s *PostgresStore) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	res, err := s.Pool.Exec(ctx,
		`delete from documents where collection = $1 and id = $2::uuid`,
		collection, id.String(),
	)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.Pool.Close()
}

func scanPostgresDocument(row pgx.Row) (Document, error) {
	var (
		rawID, body          string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&rawID, &body, &createdAt, &updatedAt); err != nil {
		return Document{}, err
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return Document{}, fmt.Errorf("parse document id: %w", err)
	}
	fields, err := decodeFields([]byte(body))
	if err != nil {
		return Document{}, fmt.Errorf("decode document body: %w", err)
	}
	return Document{ID: id, Fields: fields, CreatedAt: createdAt.UTC(), UpdatedAt: updatedAt.UTC()}, nil
}
