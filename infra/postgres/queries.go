package postgres

import (
	"catalog/domain"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Table describes how a catalog table is written and read back. Reads may
// join other tables; writes always target Name and only the Writable columns.
type Table struct {
	Name     string
	Alias    string
	Joins    string
	Select   string
	Writable []string
}

func (t Table) from() string {
	from := t.Name + " " + t.Alias
	if t.Joins != "" {
		from += " " + t.Joins
	}
	return from
}

func (t Table) idColumn() string {
	return t.Alias + ".id"
}

func (t Table) columns(data domain.Fields) ([]string, error) {
	cols := make([]string, 0, len(data))
	for col := range data {
		if !slices.Contains(t.Writable, col) {
			return nil, fmt.Errorf("postgres: column %q is not writable on %s", col, t.Name)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

// PageQuery narrows a paginated read. Where conditions are ANDed and use ?
// placeholders bound from Args in order.
type PageQuery struct {
	Page    int
	PerPage int
	Where   []string
	Args    []any
	OrderBy string
}

func (q PageQuery) where() string {
	if len(q.Where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.Where, " AND ")
}

// GetPaginatedData counts the rows matching q, then reads the requested page
// with the same filter. The page is clamped to the available range.
func GetPaginatedData[T any](ctx context.Context, db sqlx.QueryerContext, t Table, q PageQuery) (domain.Page[T], error) {
	var total int
	countQuery := sqlx.Rebind(sqlx.DOLLAR, "SELECT COUNT(*) FROM "+t.from()+q.where())
	if err := sqlx.GetContext(ctx, db, &total, countQuery, q.Args...); err != nil {
		return domain.Page[T]{}, fmt.Errorf("count %s: %w", t.Name, err)
	}

	meta := domain.NewPageMeta(q.Page, q.PerPage, total)
	items := make([]T, 0)
	if total == 0 {
		return domain.Page[T]{Items: items, Meta: meta}, nil
	}

	query := "SELECT " + t.Select + " FROM " + t.from() + q.where()
	if q.OrderBy != "" {
		query += " ORDER BY " + q.OrderBy
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query+" LIMIT ? OFFSET ?")

	args := append(slices.Clone(q.Args), meta.PerPage, meta.Offset())
	if err := sqlx.SelectContext(ctx, db, &items, query, args...); err != nil {
		return domain.Page[T]{}, fmt.Errorf("select %s: %w", t.Name, err)
	}

	return domain.Page[T]{Items: items, Meta: meta}, nil
}

func GetRecord[T any](ctx context.Context, db sqlx.QueryerContext, t Table, id string) (T, error) {
	var record T
	query := sqlx.Rebind(sqlx.DOLLAR, "SELECT "+t.Select+" FROM "+t.from()+" WHERE "+t.idColumn()+" = ?")
	err := sqlx.GetContext(ctx, db, &record, query, id)
	return record, err
}

// CreateRecord inserts data and reads the new row back through the table projection.
func CreateRecord[T any](ctx context.Context, db sqlx.QueryerContext, t Table, data domain.Fields) (T, error) {
	var zero T

	cols, err := t.columns(data)
	if err != nil {
		return zero, err
	}

	args := make([]any, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		args[i] = data[col]
		marks[i] = "?"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", t.Name, strings.Join(cols, ", "), strings.Join(marks, ", "))
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING id", t.Name)
	}

	var id string
	if err := db.QueryRowxContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...).Scan(&id); err != nil {
		return zero, err
	}

	return GetRecord[T](ctx, db, t, id)
}

// UpdateRecord applies updates to the row with id and stamps updated_at.
// Returns sql.ErrNoRows when no row has that id.
func UpdateRecord[T any](ctx context.Context, db sqlx.QueryerContext, t Table, id string, updates domain.Fields) (T, error) {
	var zero T

	cols, err := t.columns(updates)
	if err != nil {
		return zero, err
	}

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, updates[col])
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? RETURNING id", t.Name, strings.Join(sets, ", "))

	var updated string
	if err := db.QueryRowxContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...).Scan(&updated); err != nil {
		return zero, err
	}

	return GetRecord[T](ctx, db, t, updated)
}

// DeleteRecord reports whether a row with id existed and was removed.
func DeleteRecord(ctx context.Context, db sqlx.ExecerContext, table, id string) (bool, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
