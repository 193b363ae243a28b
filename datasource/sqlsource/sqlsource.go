package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/ohler55/ojg/oj"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/Fantom-foundation/rangeview/inter/source"
)

// DefaultTable is the table name used when none is given.
const DefaultTable = "records"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Source serves JSON records of a SQLite table, ordered by their rowid.
// The table is expected to have a `record` TEXT column holding one JSON document per row.
type Source struct {
	db    *sql.DB
	table string
	path  string
	owned bool
}

// Open opens a SQLite database file as a source. Use ":memory:" for a private in-memory database.
func Open(path, table string) (*Source, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	// every connection of an in-memory database is a distinct database
	db.SetMaxOpenConns(1)
	s, err := New(db, path, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an opened database. path is only used for the source identity.
func New(db *sql.DB, path, table string) (*Source, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identifier.MatchString(table) {
		return nil, errors.Errorf("invalid table name %q", table)
	}
	return &Source{
		db:    db,
		table: table,
		path:  path,
	}, nil
}

// Close closes the database if it was opened by Open.
func (s *Source) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *Source) ID() string {
	return fmt.Sprintf("sqlite:%s/%s", s.path, s.table)
}

// Init creates the table if it doesn't exist.
func (s *Source) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, record TEXT NOT NULL)", s.table))
	return errors.Wrapf(err, "create table %s", s.table)
}

// Append stores items as JSON records, in a single transaction.
func (s *Source) Append(ctx context.Context, items ...source.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (record) VALUES (?)", s.table))
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()
	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, oj.JSON(item)); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "insert record")
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (s *Source) Metadata(ctx context.Context) (source.Metadata, error) {
	var count int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&count)
	if err != nil {
		return source.Metadata{}, errors.Wrapf(err, "count %s", s.table)
	}
	return source.Metadata{TotalCount: count}, nil
}

func (s *Source) LoadRange(ctx context.Context, start, end int) ([]source.Item, error) {
	if start < 0 || end < start {
		return nil, errors.Errorf("invalid range [%d,%d)", start, end)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT record FROM %s ORDER BY rowid LIMIT ? OFFSET ?", s.table), end-start, start)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", s.table)
	}
	defer rows.Close()

	items := make([]source.Item, 0, end-start)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "scan record")
		}
		item, err := oj.ParseString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parse record %d", start+len(items))
		}
		items = append(items, item)
	}
	return items, errors.Wrap(rows.Err(), "iterate records")
}
