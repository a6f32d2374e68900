package postgres

import (
	"catalog/domain"
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// categoryOrderLock serializes display_order assignment between concurrent creates.
const categoryOrderLock = 7_310_001

var categoryTable = Table{
	Name:  "categories",
	Alias: "c",
	Select: `c.id, c.name, c.slug, c.description, c.image_url, c.color, c.icon,
		c.is_active, c.display_order, c.created_at, c.updated_at`,
	Writable: []string{"name", "slug", "description", "image_url", "color", "icon", "is_active", "display_order"},
}

func (r *PgRepository) ListCategories(ctx context.Context, page, perPage int) (domain.Page[domain.Category], error) {
	return GetPaginatedData[domain.Category](ctx, r.db, categoryTable, PageQuery{
		Page:    page,
		PerPage: perPage,
		OrderBy: "c.display_order ASC, c.id ASC",
	})
}

func (r *PgRepository) ListAllCategories(ctx context.Context) ([]domain.Category, error) {
	categories := make([]domain.Category, 0)
	query := "SELECT " + categoryTable.Select + " FROM categories c ORDER BY c.display_order ASC, c.id ASC"

	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *PgRepository) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	return GetRecord[domain.Category](ctx, r.db, categoryTable, id)
}

func (r *PgRepository) ResolveCategoryIDs(ctx context.Context, slug string) ([]string, error) {
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM categories WHERE slug = $1`, slug); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PgRepository) CreateCategory(ctx context.Context, fields domain.Fields) (domain.Category, error) {
	var category domain.Category

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		data := fields.Clone()

		if _, ok := data["display_order"]; !ok {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, categoryOrderLock); err != nil {
				return fmt.Errorf("lock display order: %w", err)
			}

			var current sql.NullInt64
			if err := tx.GetContext(ctx, &current, `SELECT MAX(display_order) FROM categories`); err != nil {
				return fmt.Errorf("read display order: %w", err)
			}

			var highest *int
			if current.Valid {
				v := int(current.Int64)
				highest = &v
			}
			data["display_order"] = domain.NextDisplayOrder(highest)
		}

		created, err := CreateRecord[domain.Category](ctx, tx, categoryTable, data)
		if err != nil {
			return err
		}
		category = created
		return nil
	})

	return category, mapError(err)
}

// UpdateCategory applies updates and, when the category is deactivated,
// deactivates its products in the same transaction.
func (r *PgRepository) UpdateCategory(ctx context.Context, id string, updates domain.Fields) (domain.Category, error) {
	var category domain.Category

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		updated, err := UpdateRecord[domain.Category](ctx, tx, categoryTable, id, updates)
		if err != nil {
			return err
		}
		category = updated

		if active, ok := updates["is_active"].(bool); ok && !active {
			_, err := tx.ExecContext(ctx,
				`UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE category_id = $1 AND is_active`,
				id,
			)
			if err != nil {
				return fmt.Errorf("deactivate products of category %s: %w", id, err)
			}
		}
		return nil
	})

	return category, mapError(err)
}

// DeleteCategory detaches the category's products and removes it. Returns how
// many products were detached, or sql.ErrNoRows when the category is missing.
func (r *PgRepository) DeleteCategory(ctx context.Context, id string) (int64, error) {
	var detached int64

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET category_id = NULL, updated_at = NOW() WHERE category_id = $1`,
			id,
		)
		if err != nil {
			return fmt.Errorf("detach products of category %s: %w", id, err)
		}

		if detached, err = res.RowsAffected(); err != nil {
			return err
		}

		deleted, err := DeleteRecord(ctx, tx, categoryTable.Name, id)
		if err != nil {
			return err
		}
		if !deleted {
			return sql.ErrNoRows
		}
		return nil
	})

	return detached, mapError(err)
}
