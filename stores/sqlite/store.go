package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"meme-studio/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// created_at holds unix nanoseconds so page cursors compare exactly.
	memeTableStmt := `
	CREATE TABLE IF NOT EXISTS memes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		image_url TEXT NOT NULL,
		delete_handle TEXT,
		created_at INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		layers TEXT NOT NULL,
		likes INTEGER NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS memes_created ON memes (created_at, id);
	CREATE INDEX IF NOT EXISTS memes_owner_created ON memes (created_by, created_at, id);`
	if _, err = db.Exec(memeTableStmt); err != nil {
		log.Fatalf("failed to create memes table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, meme *core.MemeRecord) (string, error) {
	id := meme.ID
	if id == "" {
		id = ulid.Make().String()
	}
	createdAt := meme.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	layers, err := json.Marshal(meme.Layers)
	if err != nil {
		return "", fmt.Errorf("failed to marshal layers: %w", err)
	}
	log := logrus.WithFields(logrus.Fields{"meme_id": id, "user_id": meme.CreatedBy})

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO memes (id, name, image_url, delete_handle, created_at, created_by, layers, likes, views) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, meme.Name, meme.ImageURL, meme.DeleteHandle, createdAt.UnixNano(), meme.CreatedBy, string(layers), meme.Likes, meme.Views)
	if err != nil {
		log.WithError(err).Error("Failed to create meme")
		return "", err
	}
	log.Info("Meme created successfully")
	return id, nil
}

const memeColumns = "id, name, image_url, delete_handle, created_at, created_by, layers, likes, views"

type scanner interface {
	Scan(dest ...any) error
}

func scanMeme(row scanner) (*core.MemeRecord, error) {
	var (
		meme         core.MemeRecord
		deleteHandle sql.NullString
		createdAt    int64
		layers       string
	)
	if err := row.Scan(&meme.ID, &meme.Name, &meme.ImageURL, &deleteHandle, &createdAt, &meme.CreatedBy, &layers, &meme.Likes, &meme.Views); err != nil {
		return nil, err
	}
	meme.DeleteHandle = deleteHandle.String
	meme.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(layers), &meme.Layers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layers of %s: %w", meme.ID, err)
	}
	return &meme, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*core.MemeRecord, error) {
	meme, err := scanMeme(s.db.QueryRowContext(ctx, "SELECT "+memeColumns+" FROM memes WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
		}
		logrus.WithFields(logrus.Fields{"meme_id": id, "error": err}).Error("Failed to retrieve meme")
		return nil, err
	}
	return meme, nil
}

// List pages with a keyset on (created_at, id), fetching one extra row to
// know whether another page follows.
func (s *sqliteStore) List(ctx context.Context, query core.MemeQuery) (*core.MemePage, error) {
	query = query.Normalize()

	var (
		where []string
		args  []any
	)
	if query.Owner != "" {
		where = append(where, "created_by = ?")
		args = append(args, query.Owner)
	}
	cmp, dir := "<", "DESC"
	if query.Order == core.SortOldest {
		cmp, dir = ">", "ASC"
	}
	if query.PageToken != "" {
		cursor, err := core.DecodeCursor(query.PageToken)
		if err != nil {
			return nil, err
		}
		at := cursor.CreatedAt.UnixNano()
		where = append(where, fmt.Sprintf("(created_at %s ? OR (created_at = ? AND id %s ?))", cmp, cmp))
		args = append(args, at, at, cursor.ID)
	}

	stmt := "SELECT " + memeColumns + " FROM memes"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT ?", dir, dir)
	args = append(args, query.PageSize+1)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &core.MemePage{Memes: []*core.MemeRecord{}}
	for rows.Next() {
		meme, err := scanMeme(rows)
		if err != nil {
			return nil, err
		}
		page.Memes = append(page.Memes, meme)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(page.Memes) > query.PageSize {
		page.Memes = page.Memes[:query.PageSize]
		page.NextPageToken = core.EncodeCursor(page.Memes[query.PageSize-1])
	}
	return page, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memes WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func (s *sqliteStore) IncrementLikes(ctx context.Context, id string) (int, error) {
	var likes int
	err := s.db.QueryRowContext(ctx, "UPDATE memes SET likes = likes + 1 WHERE id = ? RETURNING likes", id).Scan(&likes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
		}
		return 0, err
	}
	return likes, nil
}

func (s *sqliteStore) IncrementViews(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE memes SET views = views + 1 WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("meme %s: %w", id, core.ErrNotFound)
	}
	return nil
}
