package xrefcore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// compressedMaps are the maps whose values are zstd-compressed before
// they touch disk: defs, refs, and docs are by far the largest
// structures in the database, accumulating one entry per identifier
// occurrence across every indexed tag.
var compressedMaps = map[MapName]bool{
	MapDefs: true,
	MapRefs: true,
	MapDocs: true,
}

// SQLiteDB is the Database implementation backing the Cross-Reference
// Database: one table per logical map in a single SQLite file, with a
// TEXT/BLOB primary key index giving the byte-lexicographic ordering
// IterPrefix needs for free.
type SQLiteDB struct {
	db *sql.DB

	keyGuardsMu sync.Mutex
	keyGuards   map[string]*sync.Mutex
}

// OpenSQLiteDB opens (creating if necessary) the database file at path and
// ensures every logical map's table exists.
func OpenSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("xrefcore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // the coordinator is the only writer

	s := &SQLiteDB{db: db, keyGuards: make(map[string]*sync.Mutex)}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) ensureSchema() error {
	for _, m := range AllMaps {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (key BLOB PRIMARY KEY, value BLOB NOT NULL)`, sanitizeTableName(m))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("xrefcore: create table %s: %w", m, err)
		}
	}
	return nil
}

func sanitizeTableName(m MapName) string {
	return "map_" + string(m)
}

// Close implements Database.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Get implements Database.
func (s *SQLiteDB) Get(ctx context.Context, m MapName, key []byte) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM "%s" WHERE key = ?`, sanitizeTableName(m)), key)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get %s: %w", ErrDatabaseBusy, m, err)
	}
	value, err := maybeDecompress(m, raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: decode %s: %w", ErrDatabaseCorrupt, m, err)
	}
	return value, true, nil
}

// IterPrefix implements Database.
func (s *SQLiteDB) IterPrefix(ctx context.Context, m MapName, prefix []byte, fn func(key, value []byte) bool) error {
	upper := prefixUpperBound(prefix)
	var rows *sql.Rows
	var err error
	switch {
	case len(prefix) == 0:
		rows, err = s.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT key, value FROM "%s" ORDER BY key`, sanitizeTableName(m)))
	case upper == nil:
		rows, err = s.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT key, value FROM "%s" WHERE key >= ? ORDER BY key`, sanitizeTableName(m)), prefix)
	default:
		rows, err = s.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT key, value FROM "%s" WHERE key >= ? AND key < ? ORDER BY key`, sanitizeTableName(m)),
			prefix, upper)
	}
	if err != nil {
		return fmt.Errorf("%w: iter_prefix %s: %w", ErrDatabaseBusy, m, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return fmt.Errorf("xrefcore: scan %s row: %w", m, err)
		}
		value, err := maybeDecompress(m, raw)
		if err != nil {
			return fmt.Errorf("%w: decode %s: %w", ErrDatabaseCorrupt, m, err)
		}
		if !fn(key, value) {
			break
		}
	}
	return rows.Err()
}

// prefixUpperBound returns the smallest byte string greater than every
// string with the given prefix, or nil if prefix is empty (no upper bound
// needed, scan the whole map).
func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix was all 0xff bytes; no finite upper bound
}

// WithBatch implements Database.
func (s *SQLiteDB) WithBatch(ctx context.Context, fn func(b *Batch) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin batch: %w", ErrDatabaseBusy, err)
	}

	impl := &sqliteBatch{db: s, tx: tx, ctx: ctx}
	if err := fn(&Batch{impl: impl}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit batch: %w", ErrDatabaseBusy, err)
	}
	return nil
}

type sqliteBatch struct {
	db  *SQLiteDB
	tx  *sql.Tx
	ctx context.Context
}

func (b *sqliteBatch) keyGuard(m MapName, key []byte) *sync.Mutex {
	id := string(m) + "\x00" + string(key)
	b.db.keyGuardsMu.Lock()
	defer b.db.keyGuardsMu.Unlock()
	g, ok := b.db.keyGuards[id]
	if !ok {
		g = &sync.Mutex{}
		b.db.keyGuards[id] = g
	}
	return g
}

func (b *sqliteBatch) put(ctx context.Context, m MapName, key, value []byte) error {
	raw, err := maybeCompress(m, value)
	if err != nil {
		return fmt.Errorf("xrefcore: encode %s: %w", m, err)
	}
	_, err = b.tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO "%s" (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, sanitizeTableName(m)),
		key, raw)
	if err != nil {
		return fmt.Errorf("%w: put %s: %w", ErrDatabaseBusy, m, err)
	}
	return nil
}

// appendValue performs the read-modify-write append under a per-key
// guard, within the batch's transaction so the resulting write still
// commits or rolls back atomically with everything else in the batch.
func (b *sqliteBatch) appendValue(ctx context.Context, m MapName, key, suffix []byte) error {
	guard := b.keyGuard(m, key)
	guard.Lock()
	defer guard.Unlock()

	existing, ok, err := b.get(ctx, m, key)
	if err != nil {
		return err
	}
	var merged []byte
	if ok {
		merged = append(append([]byte{}, existing...), suffix...)
	} else {
		merged = append([]byte{}, suffix...)
	}
	return b.put(ctx, m, key, merged)
}

func (b *sqliteBatch) get(ctx context.Context, m MapName, key []byte) ([]byte, bool, error) {
	row := b.tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM "%s" WHERE key = ?`, sanitizeTableName(m)), key)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get %s: %w", ErrDatabaseBusy, m, err)
	}
	value, err := maybeDecompress(m, raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: decode %s: %w", ErrDatabaseCorrupt, m, err)
	}
	return value, true, nil
}
