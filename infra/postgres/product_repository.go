package postgres

import (
	"catalog/domain"
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var productTable = Table{
	Name:  "products",
	Alias: "p",
	Joins: "LEFT JOIN categories c ON c.id = p.category_id",
	Select: `p.id, p.title, p.description, p.image_url, p.price, p.discount_price, p.category_id,
		p.is_active, p.stock_quantity, p.rating, p.reviews_count, p.created_at, p.updated_at,
		c.id AS "category.id", c.name AS "category.name", c.slug AS "category.slug",
		c.description AS "category.description", c.image_url AS "category.image_url",
		c.color AS "category.color", c.icon AS "category.icon",
		c.is_active AS "category.is_active", c.display_order AS "category.display_order"`,
	Writable: []string{
		"title", "description", "image_url", "price", "discount_price",
		"category_id", "is_active", "stock_quantity",
	},
}

var productSortColumns = map[string]string{
	"price":          "p.price",
	"created_at":     "p.created_at",
	"updated_at":     "p.updated_at",
	"title":          "p.title",
	"stock_quantity": "p.stock_quantity",
}

// joinedCategory holds the LEFT JOINed category columns, all NULL for products
// without a category.
type joinedCategory struct {
	ID           sql.NullString `db:"id"`
	Name         sql.NullString `db:"name"`
	Slug         sql.NullString `db:"slug"`
	Description  sql.NullString `db:"description"`
	ImageURL     sql.NullString `db:"image_url"`
	Color        sql.NullString `db:"color"`
	Icon         sql.NullString `db:"icon"`
	IsActive     sql.NullBool   `db:"is_active"`
	DisplayOrder sql.NullInt64  `db:"display_order"`
}

type productRow struct {
	domain.Product
	Joined joinedCategory `db:"category"`
}

func (row productRow) toDomain() domain.Product {
	p := row.Product
	if !row.Joined.ID.Valid {
		p.Category = nil
		return p
	}

	p.Category = &domain.CategorySummary{
		ID:           row.Joined.ID.String,
		Name:         row.Joined.Name.String,
		Slug:         row.Joined.Slug.String,
		Description:  nullString(row.Joined.Description),
		ImageURL:     nullString(row.Joined.ImageURL),
		Color:        nullString(row.Joined.Color),
		Icon:         nullString(row.Joined.Icon),
		IsActive:     row.Joined.IsActive.Bool,
		DisplayOrder: int(row.Joined.DisplayOrder.Int64),
	}
	return p
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func (r *PgRepository) ListProducts(ctx context.Context, page, perPage int, filter domain.ProductFilter) (domain.Page[domain.Product], error) {
	q := PageQuery{
		Page:    page,
		PerPage: perPage,
		OrderBy: productOrderBy(filter),
	}

	if filter.Search != nil && *filter.Search != "" {
		q.Where = append(q.Where, "p.title ILIKE ?")
		q.Args = append(q.Args, "%"+escapeLike(*filter.Search)+"%")
	}
	if filter.CategoryIDs != nil {
		q.Where = append(q.Where, "p.category_id = ANY(?)")
		q.Args = append(q.Args, pq.Array(filter.CategoryIDs))
	}
	if filter.IsActive != nil {
		q.Where = append(q.Where, "p.is_active = ?")
		q.Args = append(q.Args, *filter.IsActive)
	}
	if filter.MinPrice != nil {
		q.Where = append(q.Where, "p.price >= ?")
		q.Args = append(q.Args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q.Where = append(q.Where, "p.price <= ?")
		q.Args = append(q.Args, *filter.MaxPrice)
	}
	if filter.MinStock != nil {
		q.Where = append(q.Where, "p.stock_quantity >= ?")
		q.Args = append(q.Args, *filter.MinStock)
	}
	if filter.MaxStock != nil {
		q.Where = append(q.Where, "p.stock_quantity <= ?")
		q.Args = append(q.Args, *filter.MaxStock)
	}

	rows, err := GetPaginatedData[productRow](ctx, r.db, productTable, q)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}

	items := make([]domain.Product, len(rows.Items))
	for i, row := range rows.Items {
		items[i] = row.toDomain()
	}
	return domain.Page[domain.Product]{Items: items, Meta: rows.Meta}, nil
}

func (r *PgRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row, err := GetRecord[productRow](ctx, r.db, productTable, id)
	if err != nil {
		return domain.Product{}, err
	}
	return row.toDomain(), nil
}

func (r *PgRepository) CreateProduct(ctx context.Context, fields domain.Fields) (domain.Product, error) {
	row, err := CreateRecord[productRow](ctx, r.db, productTable, domain.SanitizeProductFields(fields))
	if err != nil {
		return domain.Product{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (r *PgRepository) UpdateProduct(ctx context.Context, id string, updates domain.Fields) (domain.Product, error) {
	row, err := UpdateRecord[productRow](ctx, r.db, productTable, id, domain.SanitizeProductFields(updates))
	if err != nil {
		return domain.Product{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (r *PgRepository) DeleteProduct(ctx context.Context, id string) error {
	deleted, err := DeleteRecord(ctx, r.db, productTable.Name, id)
	if err != nil {
		return mapError(err)
	}
	if !deleted {
		return sql.ErrNoRows
	}
	return nil
}

// ApplyProductReview folds one review score into the product's average rating.
// The review id is recorded in the same transaction, so a redelivered review
// returns domain.ErrReviewAlreadyApplied instead of counting twice. The
// read-modify-write happens in a single statement so concurrent reviews are
// not lost.
func (r *PgRepository) ApplyProductReview(ctx context.Context, productID, reviewID string, score decimal.Decimal) (domain.Product, error) {
	var product domain.Product

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO applied_reviews (review_id, product_id)
			SELECT $1, id FROM products WHERE id = $2
			ON CONFLICT (review_id) DO NOTHING`,
			reviewID, productID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var seen bool
			if err := tx.GetContext(ctx, &seen, "SELECT EXISTS (SELECT 1 FROM applied_reviews WHERE review_id = $1)", reviewID); err != nil {
				return err
			}
			if seen {
				return domain.ErrReviewAlreadyApplied
			}
			return sql.ErrNoRows
		}

		var id string
		err = tx.QueryRowxContext(ctx, `
			UPDATE products SET
				rating = ROUND((rating * reviews_count + $2) / (reviews_count + 1), 2),
				reviews_count = reviews_count + 1,
				updated_at = NOW()
			WHERE id = $1
			RETURNING id`,
			productID, score,
		).Scan(&id)
		if err != nil {
			return err
		}

		row, err := GetRecord[productRow](ctx, tx, productTable, id)
		if err != nil {
			return err
		}
		product = row.toDomain()
		return nil
	})

	return product, err
}

func productOrderBy(filter domain.ProductFilter) string {
	column, ok := productSortColumns[filter.SortBy]
	if !ok {
		column = productSortColumns["created_at"]
	}

	direction := "DESC"
	if filter.SortOrder == domain.SortAsc {
		direction = "ASC"
	}

	return column + " " + direction + ", p.id ASC"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
