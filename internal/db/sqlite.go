package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// fixed width so text ordering matches time ordering
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps documents in a SQLite database through database/sql.
type SQLiteStore struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewSQLiteStore(sqlDB *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: sqlDB, Now: time.Now}
}

// OpenSQLite opens dsn with a single connection so in-memory databases
// survive between queries, then applies migrations when migrate is set.
func OpenSQLite(ctx context.Context, dsn string, migrate bool, logger *zap.Logger) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable WAL journal mode: %w", err)
	}
	if migrate {
		if err := Migrate(ctx, sqlDB, "sqlite", logger); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	return NewSQLiteStore(sqlDB), nil
}

func (s *SQLiteStore) List(ctx context.Context, collection string, limit int) ([]Document, error) {
	rows, err := s.DB.QueryContext(ctx,
		`select id, body, created_at, updated_at
		from documents
		where collection = ?
		order by created_at asc, rowid asc
		limit ?`,
		collection, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, collection string, id uuid.UUID) (Document, error) {
	row := s.DB.QueryRowContext(ctx,
		`select id, body, created_at, updated_at
		from documents
		where collection = ? and id = ?`,
		collection, id.String(),
	)
	doc, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func (s *SQLiteStore) Create(ctx context.Context, collection string, fields map[string]any) (Document, error) {
	body, err := encodeFields(fields)
	if err != nil {
		return Document{}, err
	}
	id := uuid.New()
	now := s.Now().UTC()

	res, err := s.DB.ExecContext(ctx,
		`insert into documents(id, collection, body, created_at, updated_at)
		values (?, ?, ?, ?, ?)`,
		id.String(), collection, string(body), now.Format(sqliteTimeLayout), now.Format(sqliteTimeLayout),
	)
	if err != nil {
		return Document{}, err
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return Document{}, fmt.Errorf("inserting document failed")
	}

	stored, err := decodeFields(body)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: stored, CreatedAt: now.Truncate(0), UpdatedAt: now.Truncate(0)}, nil
}

func (s *SQLiteStore) Replace(ctx context.Context, collection string, id uuid.UUID, fields map[string]any) (Document, error) {
	body, err := encodeFields(fields)
	if err != nil {
		return Document{}, err
	}
	now := s.Now().UTC()

	row := s.DB.QueryRowContext(ctx,
		`update documents
			set body = ?, updated_at = ?
		where collection = ? and id = ?
		returning id, body, created_at, updated_at`,
		string(body), now.Format(sqliteTimeLayout), collection, id.String(),
	)
	doc, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func (s *SQLiteStore) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx,
		`delete from documents where collection = ? and id = ?`,
		collection, id.String(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	_ = s.DB.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row rowScanner) (Document, error) {
	var (
		rawID, body          string
		createdAt, updatedAt string
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
	created, err := time.Parse(sqliteTimeLayout, createdAt)
	if err != nil {
		return Document{}, fmt.Errorf("parse created_at: %w", err)
	}
	updated, err := time.Parse(sqliteTimeLayout, updatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return Document{ID: id, Fields: fields, CreatedAt: created, UpdatedAt: updated}, nil
}
