package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lemonhq/roomchat/chat/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcript (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	author      TEXT NOT NULL DEFAULT '',
	author_name TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL,
	ts          TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcript_ts ON transcript(ts);
`

// Store persists feed entries to a local SQLite file so a transcript survives
// the process. Appends happen on the socket read path, so they must stay
// cheap; WAL mode and a busy timeout keep a concurrent reader from blocking
// the writer.
type Store struct {
	db *sql.DB
}

var _ session.TranscriptStore = (*Store)(nil)

// Open creates or opens the transcript database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open transcript database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create transcript schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append writes one feed entry.
func (s *Store) Append(entry session.FeedEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO transcript (kind, author, author_name, text, ts) VALUES (?, ?, ?, ?, ?)`,
		string(entry.Kind), entry.Author, entry.AuthorName, entry.Text, ts,
	)
	if err != nil {
		return fmt.Errorf("append transcript entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries in chronological order, oldest first.
func (s *Store) Recent(limit int) ([]session.FeedEntry, error) {
	rows, err := s.db.Query(
		`SELECT kind, author, author_name, text, ts FROM (
			SELECT id, kind, author, author_name, text, ts FROM transcript ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var entries []session.FeedEntry
	for rows.Next() {
		var entry session.FeedEntry
		var kind string
		if err := rows.Scan(&kind, &entry.Author, &entry.AuthorName, &entry.Text, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		entry.Kind = session.EntryKind(kind)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript rows: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
