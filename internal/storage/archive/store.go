package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	model "github.com/zhouzirui/z-companion/backend/internal/model/companion"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id        TEXT PRIMARY KEY,
	sessionId TEXT NOT NULL,
	author    TEXT NOT NULL,
	text      TEXT NOT NULL,
	kind      TEXT NOT NULL,
	mediaRef  TEXT,
	mood      TEXT,
	createdAt INTEGER NOT NULL,
	seq       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(sessionId, seq);

CREATE TABLE IF NOT EXISTS images (
	ref       TEXT PRIMARY KEY,
	sessionId TEXT NOT NULL,
	mimeType  TEXT NOT NULL,
	prompt    TEXT NOT NULL,
	data      BLOB NOT NULL,
	createdAt INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_images_session ON images(sessionId, createdAt);
`

// Store 把会话记录与相册图片写入 SQLite，实现 companion.Recorder。
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the archive at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTurn appends a turn to a session's archived transcript. Re-recording
// the same turn id is a no-op.
func (s *Store) RecordTurn(ctx context.Context, sessionID string, turn model.Turn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO turns (id, sessionId, author, text, kind, mediaRef, mood, createdAt, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE sessionId = ?))
	`, turn.ID, sessionID, string(turn.Author), turn.Text, string(turn.Kind),
		nullString(turn.MediaRef), nullString(string(turn.Mood)), unixFromTime(turn.CreatedAt), sessionID)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// RecordImage stores a gallery image.
func (s *Store) RecordImage(ctx context.Context, sessionID string, img model.Image) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO images (ref, sessionId, mimeType, prompt, data, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`, img.Ref, sessionID, img.MIMEType, img.Prompt, img.Data, unixFromTime(img.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// Turns returns a session's archived transcript in order.
func (s *Store) Turns(ctx context.Context, sessionID string) ([]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, text, kind, mediaRef, mood, createdAt
		FROM turns
		WHERE sessionId = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		var (
			t         model.Turn
			author    string
			kind      string
			mediaRef  sql.NullString
			mood      sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &author, &t.Text, &kind, &mediaRef, &mood, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Author = model.Author(author)
		t.Kind = model.Kind(kind)
		t.MediaRef = mediaRef.String
		t.Mood = model.Mood(mood.String)
		t.CreatedAt = timeFromUnix(createdAt)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Images returns a session's archived gallery, newest first.
func (s *Store) Images(ctx context.Context, sessionID string) ([]model.Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref, mimeType, prompt, data, createdAt
		FROM images
		WHERE sessionId = ?
		ORDER BY createdAt DESC, rowid DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		var (
			img       model.Image
			createdAt int64
		)
		if err := rows.Scan(&img.Ref, &img.MIMEType, &img.Prompt, &img.Data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		img.CreatedAt = timeFromUnix(createdAt)
		images = append(images, img)
	}
	return images, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func unixFromTime(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixNano()
}

func timeFromUnix(ns int64) time.Time {
	return time.Unix(0, ns)
}
