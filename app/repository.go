package app

import (
	"catalog/domain"
	"context"

	"github.com/shopspring/decimal"
)

// Repository returns sql.ErrNoRows for missing rows and wraps
// domain.ErrConstraintViolation for rejected writes.
type Repository interface {
	Close() error

	ListCategories(ctx context.Context, page, perPage int) (domain.Page[domain.Category], error)
	ListAllCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	ResolveCategoryIDs(ctx context.Context, slug string) ([]string, error)
	CreateCategory(ctx context.Context, fields domain.Fields) (domain.Category, error)
	UpdateCategory(ctx context.Context, id string, updates domain.Fields) (domain.Category, error)
	DeleteCategory(ctx context.Context, id string) (int64, error)

	ListProducts(ctx context.Context, page, perPage int, filter domain.ProductFilter) (domain.Page[domain.Product], error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	CreateProduct(ctx context.Context, fields domain.Fields) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, updates domain.Fields) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ApplyProductReview(ctx context.Context, productID, reviewID string, score decimal.Decimal) (domain.Product, error)
}
