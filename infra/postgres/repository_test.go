package postgres

import (
	"catalog/domain"
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var categoryColumns = []string{
	"id", "name", "slug", "description", "image_url", "color", "icon",
	"is_active", "display_order", "created_at", "updated_at",
}

var productColumns = []string{
	"id", "title", "description", "image_url", "price", "discount_price", "category_id",
	"is_active", "stock_quantity", "rating", "reviews_count", "created_at", "updated_at",
	"category.id", "category.name", "category.slug", "category.description", "category.image_url",
	"category.color", "category.icon", "category.is_active", "category.display_order",
}

func newMockRepository(t *testing.T) (*PgRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return FromDB(sqlx.NewDb(db, "postgres")), mock
}

func categoryRow(rows *sqlmock.Rows, id, name, slug string, order int) *sqlmock.Rows {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return rows.AddRow(id, name, slug, nil, nil, "#22c55e", nil, true, order, now, now)
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

func TestListCategories_ClampsPageToLastPage(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM categories c")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(q("ORDER BY c.display_order ASC, c.id ASC LIMIT $1 OFFSET $2")).
		WithArgs(10, 10).
		WillReturnRows(categoryRow(sqlmock.NewRows(categoryColumns), "c-11", "Vegan", "vegan", 10))

	page, err := repo.ListCategories(context.Background(), 5, 10)

	require.NoError(t, err)
	assert.Equal(t, domain.PageMeta{Page: 2, PerPage: 10, Total: 12, Pages: 2, First: 1, Last: 2}, page.Meta)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c-11", page.Items[0].ID)
}

func TestListCategories_EmptyTableSkipsRangeQuery(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM categories c")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	page, err := repo.ListCategories(context.Background(), 3, 10)

	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 1, page.Meta.Page)
	assert.Equal(t, 0, page.Meta.Pages)
}

func TestListCategories_CountFailurePropagates(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(q("SELECT COUNT(*)")).WillReturnError(sql.ErrConnDone)

	_, err := repo.ListCategories(context.Background(), 1, 10)

	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCreateCategory_AssignsNextDisplayOrderUnderLock(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(categoryOrderLock).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT MAX(display_order) FROM categories")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))
	mock.ExpectQuery(q("INSERT INTO categories (display_order, name, slug) VALUES ($1, $2, $3) RETURNING id")).
		WithArgs(5, "Vegan", "vegan").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c-1"))
	mock.ExpectQuery(q("WHERE c.id = $1")).
		WithArgs("c-1").
		WillReturnRows(categoryRow(sqlmock.NewRows(categoryColumns), "c-1", "Vegan", "vegan", 5))
	mock.ExpectCommit()

	category, err := repo.CreateCategory(context.Background(), domain.Fields{"name": "Vegan", "slug": "vegan"})

	require.NoError(t, err)
	assert.Equal(t, 5, category.DisplayOrder)
}

func TestCreateCategory_FirstCategoryGetsOrderZero(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT MAX(display_order)")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(q("INSERT INTO categories")).
		WithArgs(0, "Protein", "protein").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c-1"))
	mock.ExpectQuery(q("WHERE c.id = $1")).
		WillReturnRows(categoryRow(sqlmock.NewRows(categoryColumns), "c-1", "Protein", "protein", 0))
	mock.ExpectCommit()

	category, err := repo.CreateCategory(context.Background(), domain.Fields{"name": "Protein", "slug": "protein"})

	require.NoError(t, err)
	assert.Equal(t, 0, category.DisplayOrder)
}

func TestCreateCategory_ExplicitOrderSkipsLock(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO categories (display_order, name, slug)")).
		WithArgs(9, "Vegan", "vegan").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c-1"))
	mock.ExpectQuery(q("WHERE c.id = $1")).
		WillReturnRows(categoryRow(sqlmock.NewRows(categoryColumns), "c-1", "Vegan", "vegan", 9))
	mock.ExpectCommit()

	_, err := repo.CreateCategory(context.Background(), domain.Fields{"name": "Vegan", "slug": "vegan", "display_order": 9})

	require.NoError(t, err)
}

func TestUpdateCategory_DeactivationCascadesToProducts(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("UPDATE categories SET is_active = $1, updated_at = NOW() WHERE id = $2 RETURNING id")).
		WithArgs(false, "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c-1"))
	mock.ExpectQuery(q("WHERE c.id = $1")).
		WillReturnRows(categoryRow(sqlmock.NewRows(categoryColumns), "c-1", "Vegan", "vegan", 0))
	mock.ExpectExec(q("UPDATE products SET is_active = FALSE")).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	_, err := repo.UpdateCategory(context.Background(), "c-1", domain.Fields{"is_active": false})

	require.NoError(t, err)
}

func TestUpdateCategory_MissingRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("UPDATE categories SET name = $1")).
		WithArgs("Renamed", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.UpdateCategory(context.Background(), "missing", domain.Fields{"name": "Renamed"})

	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteCategory_DetachesProducts(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE products SET category_id = NULL, updated_at = NOW() WHERE category_id = $1")).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(q("DELETE FROM categories WHERE id = $1")).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	detached, err := repo.DeleteCategory(context.Background(), "c-1")

	require.NoError(t, err)
	assert.Equal(t, int64(3), detached)
}

func TestDeleteCategory_MissingIsNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE products SET category_id = NULL")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("DELETE FROM categories")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.DeleteCategory(context.Background(), "missing")

	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListProducts_ComposesFiltersAndSort(t *testing.T) {
	repo, mock := newMockRepository(t)

	search := "bar_1"
	active := true
	minPrice := decimal.RequireFromString("2.00")
	maxStock := 50
	filter := domain.ProductFilter{
		Search:      &search,
		CategoryIDs: []string{"c-1"},
		IsActive:    &active,
		MinPrice:    &minPrice,
		MaxStock:    &maxStock,
		SortBy:      "price",
		SortOrder:   "asc",
	}

	where := "WHERE p.title ILIKE $1 AND p.category_id = ANY($2) AND p.is_active = $3 AND p.price >= $4 AND p.stock_quantity <= $5"
	now := time.Now()

	mock.ExpectQuery(q("SELECT COUNT(*) FROM products p LEFT JOIN categories c ON c.id = p.category_id " + where)).
		WithArgs(`%bar\_1%`, pq.Array([]string{"c-1"}), true, minPrice, 50).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(q(where + " ORDER BY p.price ASC, p.id ASC LIMIT $6 OFFSET $7")).
		WithArgs(`%bar\_1%`, pq.Array([]string{"c-1"}), true, minPrice, 50, 10, 0).
		WillReturnRows(sqlmock.NewRows(productColumns).
			AddRow("p-1", "Protein bar_1", nil, nil, "2.50", nil, "c-1", true, 10, 4.5, 2, now, now,
				"c-1", "Protein", "protein", nil, nil, nil, nil, true, 0).
			AddRow("p-2", "Protein bar_1 XL", nil, nil, "3.00", "2.75", nil, true, 5, 0, 0, now, now,
				nil, nil, nil, nil, nil, nil, nil, nil, nil))

	page, err := repo.ListProducts(context.Background(), 1, 10, filter)

	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	first := page.Items[0]
	assert.True(t, decimal.RequireFromString("2.50").Equal(first.Price))
	require.NotNil(t, first.Category)
	assert.Equal(t, "protein", first.Category.Slug)

	second := page.Items[1]
	assert.Nil(t, second.Category)
	require.NotNil(t, second.DiscountPrice)
	assert.True(t, decimal.RequireFromString("2.75").Equal(*second.DiscountPrice))
}

func TestListProducts_DefaultsToNewestFirst(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM products p LEFT JOIN categories c ON c.id = p.category_id")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(q("ORDER BY p.created_at DESC, p.id ASC LIMIT $1 OFFSET $2")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(productColumns))

	_, err := repo.ListProducts(context.Background(), 1, 10, domain.ProductFilter{SortBy: "rating; DROP TABLE products"})

	require.NoError(t, err)
}

func TestCreateProduct_RoundsPricesAndDropsAggregates(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectQuery(q("INSERT INTO products (is_active, price, stock_quantity, title) VALUES ($1, $2, $3, $4) RETURNING id")).
		WithArgs(true, decimal.RequireFromString("10.13"), 0, "Granola").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))
	mock.ExpectQuery(q("WHERE p.id = $1")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows(productColumns).
			AddRow("p-1", "Granola", nil, nil, "10.13", nil, nil, true, 0, 0, 0, now, now,
				nil, nil, nil, nil, nil, nil, nil, nil, nil))

	product, err := repo.CreateProduct(context.Background(), domain.Fields{
		"title":          "Granola",
		"price":          decimal.RequireFromString("10.125"),
		"is_active":      true,
		"stock_quantity": 0,
		"rating":         4.9,
		"reviews_count":  100,
	})

	require.NoError(t, err)
	assert.Zero(t, product.Rating)
	assert.Zero(t, product.ReviewsCount)
}

func TestCreateProduct_ForeignKeyViolationIsConstraintError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(q("INSERT INTO products")).
		WillReturnError(&pq.Error{Code: "23503", Message: "insert or update on table \"products\" violates foreign key constraint"})

	_, err := repo.CreateProduct(context.Background(), domain.Fields{
		"title":       "Granola",
		"price":       decimal.NewFromInt(3),
		"category_id": "missing",
	})

	assert.ErrorIs(t, err, domain.ErrConstraintViolation)
}

func TestUpdateRecord_RejectsUnknownColumns(t *testing.T) {
	repo, _ := newMockRepository(t)

	_, err := UpdateRecord[domain.Category](context.Background(), repo.db, categoryTable, "c-1", domain.Fields{"id": "other"})

	assert.ErrorContains(t, err, `column "id" is not writable`)
}

func TestDeleteProduct(t *testing.T) {
	t.Run("removes existing row", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(q("DELETE FROM products WHERE id = $1")).
			WithArgs("p-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.DeleteProduct(context.Background(), "p-1"))
	})

	t.Run("missing row is not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec(q("DELETE FROM products WHERE id = $1")).
			WithArgs("p-404").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.DeleteProduct(context.Background(), "p-404"), sql.ErrNoRows)
	})
}

func TestApplyProductReview(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO applied_reviews (review_id, product_id)")).
		WithArgs("r-1", "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("reviews_count = reviews_count + 1")).
		WithArgs("p-1", decimal.NewFromInt(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))
	mock.ExpectQuery(q("WHERE p.id = $1")).
		WillReturnRows(sqlmock.NewRows(productColumns).
			AddRow("p-1", "Granola", nil, nil, "3.00", nil, nil, true, 1, 4.5, 2, now, now,
				nil, nil, nil, nil, nil, nil, nil, nil, nil))
	mock.ExpectCommit()

	product, err := repo.ApplyProductReview(context.Background(), "p-1", "r-1", decimal.NewFromInt(5))

	require.NoError(t, err)
	assert.Equal(t, 4.5, product.Rating)
	assert.Equal(t, 2, product.ReviewsCount)
}

func TestApplyProductReview_NothingRecorded(t *testing.T) {
	tests := []struct {
		name string
		seen bool
		want error
	}{
		{"redelivered review", true, domain.ErrReviewAlreadyApplied},
		{"missing product", false, sql.ErrNoRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)

			mock.ExpectBegin()
			mock.ExpectExec(q("INSERT INTO applied_reviews (review_id, product_id)")).
				WithArgs("r-1", "p-1").
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(q("SELECT EXISTS (SELECT 1 FROM applied_reviews WHERE review_id = $1)")).
				WithArgs("r-1").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.seen))
			mock.ExpectRollback()

			_, err := repo.ApplyProductReview(context.Background(), "p-1", "r-1", decimal.NewFromInt(5))

			assert.ErrorIs(t, err, tt.want)
		})
	}
}
