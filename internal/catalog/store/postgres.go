package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"corretaje/internal/catalog/models"
	"corretaje/internal/platform/postgres"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
)

type scanner interface {
	Scan(dest ...any) error
}

// Table describes how one catalog kind maps onto its table.
type Table[E models.Entry[E]] struct {
	Name string
	// Columns excludes id; Values must return arguments in the same order.
	Columns []string
	Values  func(E) []any
	// Scan reads id followed by Columns.
	Scan func(scanner) (E, error)
	// HasDefault is set for tables with an es_default column.
	HasDefault  bool
	Constraints postgres.ConstraintFields
}

// PostgresStore persists one catalog kind.
type PostgresStore[E models.Entry[E]] struct {
	db    *sql.DB
	table Table[E]
}

func NewPostgres[E models.Entry[E]](db *sql.DB, table Table[E]) *PostgresStore[E] {
	return &PostgresStore[E]{db: db, table: table}
}

func (s *PostgresStore[E]) Create(ctx context.Context, e E) error {
	placeholders := make([]string, len(s.table.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING id`,
		s.table.Name, strings.Join(s.table.Columns, ", "), strings.Join(placeholders, ", "))

	var id int64
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query, s.table.Values(e)...).Scan(&id); err != nil {
		return fmt.Errorf("create %s: %w", s.table.Name, postgres.TranslateError(err, s.table.Constraints))
	}
	e.SetKey(id)
	return nil
}

func (s *PostgresStore[E]) Update(ctx context.Context, e E) error {
	sets := make([]string, len(s.table.Columns))
	for i, col := range s.table.Columns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+2)
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, s.table.Name, strings.Join(sets, ", "))

	args := append([]any{e.Key()}, s.table.Values(e)...)
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", s.table.Name, postgres.TranslateError(err, s.table.Constraints))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", s.table.Name, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore[E]) FindByID(ctx context.Context, id int64) (E, error) {
	return s.one(ctx, s.selectFrom()+` WHERE id = $1`, id)
}

func (s *PostgresStore[E]) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, s.table.Name)
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check %s: %w", s.table.Name, err)
	}
	return ok, nil
}

func (s *PostgresStore[E]) List(ctx context.Context, skip, limit int) ([]E, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, s.selectFrom()+` ORDER BY id OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table.Name, err)
	}
	defer rows.Close()

	out := []E{}
	for rows.Next() {
		e, err := s.table.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table.Name, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table.Name, err)
	}
	return out, nil
}

func (s *PostgresStore[E]) FindDefault(ctx context.Context) (E, error) {
	if !s.table.HasDefault {
		var zero E
		return zero, sentinel.ErrNotFound
	}
	return s.one(ctx, s.selectFrom()+` WHERE is_active AND es_default ORDER BY id LIMIT 1`)
}

func (s *PostgresStore[E]) selectFrom() string {
	return fmt.Sprintf(`SELECT id, %s FROM %s`, strings.Join(s.table.Columns, ", "), s.table.Name)
}

func (s *PostgresStore[E]) one(ctx context.Context, query string, args ...any) (E, error) {
	e, err := s.table.Scan(tx.Executor(ctx, s.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		var zero E
		if errors.Is(err, sql.ErrNoRows) {
			return zero, sentinel.ErrNotFound
		}
		return zero, fmt.Errorf("find %s: %w", s.table.Name, err)
	}
	return e, nil
}
