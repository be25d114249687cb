// Package journal keeps sqlite record of edits dispatched to the engine.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ErrClosed is returned by operations on closed journal.
var ErrClosed = errors.New("journal is closed")

const schema = `
CREATE TABLE IF NOT EXISTS edits (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	stamp   INTEGER NOT NULL,
	page    TEXT    NOT NULL,
	intent  TEXT    NOT NULL,
	action  TEXT    NOT NULL,
	result  INTEGER NOT NULL,
	message TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS edits_page ON edits(page, seq);
`

// Entry is a single dispatched edit.
type Entry struct {
	Seq  int64     `json:"seq"`
	Time time.Time `json:"time"`
	Page string    `json:"page"`
	// Intent is empty for actions dispatched directly.
	Intent string `json:"intent,omitempty"`
	// Action is wire form of the dispatched action.
	Action  string `json:"action"`
	Result  bool   `json:"result"`
	Message string `json:"message,omitempty"`
}

// Journal is safe for concurrent use.
type Journal struct {
	log  *zap.Logger
	mu   sync.Mutex
	conn *sqlite.Conn
}

// Open opens or creates journal database. Empty path keeps journal in
// memory.
func Open(path string, log *zap.Logger) (*Journal, error) {
	flags := []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenCreate}
	if path == "" {
		path = ":memory:"
		flags = append(flags, sqlite.OpenMemory)
	} else {
		flags = append(flags, sqlite.OpenWAL)
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, fmt.Errorf("unable to open journal %s: %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare journal %s: %w", path, err)
	}
	return &Journal{log: log.Named("journal"), conn: conn}, nil
}

// Close closes database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.conn == nil {
		return nil
	}
	err := j.conn.Close()
	j.conn = nil
	return err
}

func (j *Journal) withConn(ctx context.Context, fn func(*sqlite.Conn) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.conn == nil {
		return ErrClosed
	}
	j.conn.SetInterrupt(ctx.Done())
	defer j.conn.SetInterrupt(nil)
	return fn(j.conn)
}

// Record appends entry, Seq and zero Time are filled in.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	var seq int64
	err := j.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`INSERT INTO edits (stamp, page, intent, action, result, message) VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{e.Time.UnixMilli(), e.Page, e.Intent, e.Action, e.Result, e.Message}})
		if err != nil {
			return err
		}
		seq = conn.LastInsertRowID()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("unable to record edit: %w", err)
	}
	j.log.Debug("Edit recorded", zap.Int64("seq", seq), zap.String("page", e.Page), zap.Bool("result", e.Result))
	return seq, nil
}

// Entries returns recorded edits of the page in order, empty page returns
// everything.
func (j *Journal) Entries(ctx context.Context, page string) ([]Entry, error) {
	query := `SELECT seq, stamp, page, intent, action, result, message FROM edits`
	var args []any
	if page != "" {
		query += ` WHERE page = ?`
		args = append(args, page)
	}
	query += ` ORDER BY seq`

	var entries []Entry
	err := j.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entries = append(entries, Entry{
					Seq:     stmt.ColumnInt64(0),
					Time:    time.UnixMilli(stmt.ColumnInt64(1)),
					Page:    stmt.ColumnText(2),
					Intent:  stmt.ColumnText(3),
					Action:  stmt.ColumnText(4),
					Result:  stmt.ColumnBool(5),
					Message: stmt.ColumnText(6),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read journal: %w", err)
	}
	return entries, nil
}

// Failures counts failed edits of the page.
func (j *Journal) Failures(ctx context.Context, page string) (int, error) {
	var n int
	err := j.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT count(*) FROM edits WHERE page = ? AND result = 0`,
			&sqlitex.ExecOptions{
				Args: []any{page},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					n = stmt.ColumnInt(0)
					return nil
				},
			})
	})
	if err != nil {
		return 0, fmt.Errorf("unable to count failures: %w", err)
	}
	return n, nil
}
