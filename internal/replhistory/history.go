// Package replhistory persists REPL input lines — not compiled
// bytecode, which spec.md §6 explicitly forbids persisting — across
// sessions in a small embedded SQLite database, the same kind of local
// history a shell keeps in `.bash_history`.
package replhistory

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type History struct {
	db *sql.DB
}

// Open creates (if needed) and opens the history database at path.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	const schema = `
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			line TEXT NOT NULL,
			entered_at TEXT NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history table: %w", err)
	}
	return &History{db: db}, nil
}

// Append records one REPL input line.
func (h *History) Append(line string) error {
	_, err := h.db.Exec(`INSERT INTO history (line, entered_at) VALUES (?, ?)`,
		line, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Recent returns the last n lines, oldest first, for the REPL's
// `:history` meta-command.
func (h *History) Recent(n int) ([]string, error) {
	rows, err := h.db.Query(
		`SELECT line FROM history ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, rows.Err()
}

func (h *History) Close() error { return h.db.Close() }
