// Package sqlitestore implements store.Store on a single SQLite table.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/listwise/listwise/pkg/idwrap"
	"github.com/listwise/listwise/pkg/model/mrecord"
	"github.com/listwise/listwise/pkg/store"
)

// TableConfig describes the sequenced table. Fields lists every non-key
// column Save and List may touch; the order field and all scope fields must
// be among them.
type TableConfig struct {
	Table    string   `yaml:"table"`
	KeyField string   `yaml:"key_field"`
	Fields   []string `yaml:"fields"`
}

const defaultKeyField = "id"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (c TableConfig) normalize() TableConfig {
	if c.KeyField == "" {
		c.KeyField = defaultKeyField
	}
	return c
}

func (c TableConfig) validate() error {
	if c.Table == "" {
		return errors.New("sqlitestore: table name is required")
	}
	for _, ident := range append([]string{c.Table, c.KeyField}, c.Fields...) {
		if !identRe.MatchString(ident) {
			return fmt.Errorf("sqlitestore: invalid identifier %q", ident)
		}
	}
	if len(c.Fields) == 0 {
		return errors.New("sqlitestore: at least one field is required")
	}
	return nil
}

// SQLiteStore is a store.Store over one table. The zero value is not usable;
// construct with New. A transaction-bound copy is obtained with TX.
type SQLiteStore struct {
	db     *sql.DB
	tx     *sql.Tx
	cfg    TableConfig
	logger *slog.Logger
}

func New(db *sql.DB, cfg TableConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, cfg: cfg, logger: logger}, nil
}

// TX returns a copy of the store bound to tx.
func (s *SQLiteStore) TX(tx *sql.Tx) *SQLiteStore {
	return &SQLiteStore{db: s.db, tx: tx, cfg: s.cfg, logger: s.logger}
}

func (s *SQLiteStore) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.tx != nil {
		return s.tx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *SQLiteStore) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.QueryContext(ctx, query, args...)
	}
	return s.db.QueryContext(ctx, query, args...)
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func opSQL(op store.Op) string {
	switch op {
	case store.OpEq:
		return "="
	case store.OpGt:
		return ">"
	case store.OpGte:
		return ">="
	case store.OpLt:
		return "<"
	case store.OpLte:
		return "<="
	}
	return ""
}

// whereClause renders conds as an AND-joined WHERE fragment. OpIsNull becomes
// "field IS NULL"; plain equality would never match NULL rows.
func whereClause(conds []store.Cond) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	for _, c := range conds {
		if !identRe.MatchString(c.Field) {
			return "", nil, fmt.Errorf("sqlitestore: invalid condition field %q", c.Field)
		}
		if c.Op == store.OpIsNull {
			parts = append(parts, quote(c.Field)+" IS NULL")
			continue
		}
		op := opSQL(c.Op)
		if op == "" {
			return "", nil, fmt.Errorf("sqlitestore: unknown operator %d", c.Op)
		}
		parts = append(parts, quote(c.Field)+" "+op+" ?")
		args = append(args, c.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func (s *SQLiteStore) orderClause(orderBy *store.OrderBy) (string, error) {
	if orderBy == nil {
		return "", nil
	}
	if !identRe.MatchString(orderBy.Field) {
		return "", fmt.Errorf("sqlitestore: invalid order field %q", orderBy.Field)
	}
	dir := " ASC"
	if orderBy.Desc {
		dir = " DESC"
	}
	return " ORDER BY " + quote(orderBy.Field) + dir, nil
}

// selectColumns is the key field followed by every configured field, the
// column order used by all row scans.
func (s *SQLiteStore) selectColumns() string {
	cols := make([]string, 0, len(s.cfg.Fields)+1)
	cols = append(cols, quote(s.cfg.KeyField))
	for _, f := range s.cfg.Fields {
		cols = append(cols, quote(f))
	}
	return strings.Join(cols, ", ")
}

func (s *SQLiteStore) scanRecord(rows *sql.Rows, fields []string) (mrecord.Record, error) {
	dest := make([]any, len(fields)+1)
	var id idwrap.IDWrap
	dest[0] = &id
	vals := make([]any, len(fields))
	for i := range vals {
		dest[i+1] = &vals[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return mrecord.Record{}, err
	}
	rec := mrecord.New(id)
	for i, f := range fields {
		v := vals[i]
		// Byte slices are only valid until the next Scan.
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		rec.Set(f, v)
	}
	return rec, nil
}

func (s *SQLiteStore) FindOne(ctx context.Context, conds []store.Cond, orderBy *store.OrderBy) (mrecord.Record, error) {
	where, args, err := whereClause(conds)
	if err != nil {
		return mrecord.Record{}, err
	}
	order, err := s.orderClause(orderBy)
	if err != nil {
		return mrecord.Record{}, err
	}
	q := "SELECT " + s.selectColumns() + " FROM " + quote(s.cfg.Table) + where + order + " LIMIT 1"
	rows, err := s.queryContext(ctx, q, args...)
	if err != nil {
		return mrecord.Record{}, fmt.Errorf("sqlitestore: find one: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return mrecord.Record{}, err
		}
		return mrecord.Record{}, store.ErrNotFound
	}
	rec, err := s.scanRecord(rows, s.cfg.Fields)
	if err != nil {
		return mrecord.Record{}, fmt.Errorf("sqlitestore: scan record: %w", err)
	}
	return rec, rows.Err()
}

func (s *SQLiteStore) UpdateAll(ctx context.Context, delta store.Delta, conds []store.Cond) (int64, error) {
	if !identRe.MatchString(delta.Field) {
		return 0, fmt.Errorf("sqlitestore: invalid delta field %q", delta.Field)
	}
	where, args, err := whereClause(conds)
	if err != nil {
		return 0, err
	}
	col := quote(delta.Field)
	q := "UPDATE " + quote(s.cfg.Table) + " SET " + col + " = " + col + " + ?" + where
	res, err := s.execContext(ctx, q, append([]any{delta.N}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: update all: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) GetByKey(ctx context.Context, id idwrap.IDWrap, fields []string) (mrecord.Record, error) {
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		if !identRe.MatchString(f) {
			return mrecord.Record{}, fmt.Errorf("sqlitestore: invalid field %q", f)
		}
		cols = append(cols, quote(f))
	}
	q := "SELECT " + quote(s.cfg.KeyField) + ", " + strings.Join(cols, ", ") +
		" FROM " + quote(s.cfg.Table) + " WHERE " + quote(s.cfg.KeyField) + " = ?"
	rows, err := s.queryContext(ctx, q, id)
	if err != nil {
		return mrecord.Record{}, fmt.Errorf("sqlitestore: get by key: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return mrecord.Record{}, err
		}
		return mrecord.Record{}, store.ErrNotFound
	}
	rec, err := s.scanRecord(rows, fields)
	if err != nil {
		return mrecord.Record{}, fmt.Errorf("sqlitestore: scan record: %w", err)
	}
	return rec, rows.Err()
}

// Save updates the columns the record supplies, inserting a new row when the
// key does not exist yet. Columns the record does not mention keep their
// current values.
func (s *SQLiteStore) Save(ctx context.Context, rec mrecord.Record) error {
	if rec.ID.IsZero() {
		return mrecord.ErrNoKey
	}
	cols := make([]string, 0, len(s.cfg.Fields))
	args := make([]any, 0, len(s.cfg.Fields)+1)
	for _, f := range s.cfg.Fields {
		if v, ok := rec.Get(f); ok {
			cols = append(cols, f)
			args = append(args, v)
		}
	}

	if len(cols) > 0 {
		sets := make([]string, len(cols))
		for i, c := range cols {
			sets[i] = quote(c) + " = ?"
		}
		q := "UPDATE " + quote(s.cfg.Table) + " SET " + strings.Join(sets, ", ") +
			" WHERE " + quote(s.cfg.KeyField) + " = ?"
		res, err := s.execContext(ctx, q, append(args, rec.ID)...)
		if err != nil {
			return fmt.Errorf("sqlitestore: save: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}

	insertCols := []string{quote(s.cfg.KeyField)}
	placeholders := []string{"?"}
	insertArgs := []any{rec.ID}
	for i, c := range cols {
		insertCols = append(insertCols, quote(c))
		placeholders = append(placeholders, "?")
		insertArgs = append(insertArgs, args[i])
	}
	verb := "INSERT INTO "
	if len(cols) == 0 {
		// A record with no fields only has to exist; the row may already.
		verb = "INSERT OR IGNORE INTO "
	}
	q := verb + quote(s.cfg.Table) + " (" + strings.Join(insertCols, ", ") +
		") VALUES (" + strings.Join(placeholders, ", ") + ")"
	if _, err := s.execContext(ctx, q, insertArgs...); err != nil {
		return fmt.Errorf("sqlitestore: save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteByKey(ctx context.Context, id idwrap.IDWrap) error {
	q := "DELETE FROM " + quote(s.cfg.Table) + " WHERE " + quote(s.cfg.KeyField) + " = ?"
	if _, err := s.execContext(ctx, q, id); err != nil {
		return fmt.Errorf("sqlitestore: delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, conds []store.Cond, orderBy *store.OrderBy) ([]mrecord.Record, error) {
	where, args, err := whereClause(conds)
	if err != nil {
		return nil, err
	}
	order, err := s.orderClause(orderBy)
	if err != nil {
		return nil, err
	}
	q := "SELECT " + s.selectColumns() + " FROM " + quote(s.cfg.Table) + where + order
	rows, err := s.queryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	defer rows.Close()
	var out []mrecord.Record
	for rows.Next() {
		rec, err := s.scanRecord(rows, s.cfg.Fields)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InTx runs fn in one transaction. A store already bound to a transaction
// joins it instead of nesting.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin tx: %w", err)
	}
	defer s.rollback(tx)
	if err := fn(s.TX(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// meant for defer so the error is still logged after commit paths
func (s *SQLiteStore) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Error("tx rollback failed", "error", err)
	}
}
