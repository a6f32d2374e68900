package app

import (
	"catalog/domain"
	"catalog/internal/querycache"
	"catalog/pkg/httperror"
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ListProductsHandler struct {
	repository Repository
	cache      *querycache.Cache
}

func NewListProductsHandler(repository Repository, cache *querycache.Cache) *ListProductsHandler {
	return &ListProductsHandler{
		repository: repository,
		cache:      cache,
	}
}

type ListProductsRequest struct {
	Page         string `query:"page"`
	PerPage      string `query:"per_page"`
	Search       string `query:"search" validate:"omitempty,max=255"`
	CategorySlug string `query:"category_slug" validate:"omitempty,oneof=protein lowCarb vegan vegetarian"`
	IsActive     string `query:"is_active" validate:"omitempty,oneof=true false"`
	MinPrice     string `query:"min_price" validate:"omitempty,money"`
	MaxPrice     string `query:"max_price" validate:"omitempty,money"`
	MinStock     string `query:"min_stock" validate:"omitempty,number"`
	MaxStock     string `query:"max_stock" validate:"omitempty,number"`
	SortBy       string `query:"sort_by" validate:"omitempty,oneof=price created_at updated_at title stock_quantity"`
	SortOrder    string `query:"sort_order" validate:"omitempty,oneof=asc desc"`
}

type ListProductsResponse = domain.Page[domain.Product]

func (r *ListProductsRequest) filter() domain.ProductFilter {
	f := domain.ProductFilter{
		SortBy:    r.SortBy,
		SortOrder: r.SortOrder,
	}
	if r.Search != "" {
		f.Search = &r.Search
	}
	if r.IsActive != "" {
		active := r.IsActive == "true"
		f.IsActive = &active
	}
	if d, err := decimal.NewFromString(r.MinPrice); err == nil {
		f.MinPrice = &d
	}
	if d, err := decimal.NewFromString(r.MaxPrice); err == nil {
		f.MaxPrice = &d
	}
	if n, err := strconv.Atoi(r.MinStock); err == nil {
		f.MinStock = &n
	}
	if n, err := strconv.Atoi(r.MaxStock); err == nil {
		f.MaxStock = &n
	}
	return f
}

func (h ListProductsHandler) Handle(ctx context.Context, req *ListProductsRequest) (*ListProductsResponse, error) {
	if err := validateRequest("product.index.validation_failed", req); err != nil {
		return nil, err
	}

	page := ParsePage(req.Page)
	perPage := ParsePerPage(req.PerPage)
	filter := req.filter()

	key := pageKey(ProductsEntity, page, perPage,
		"search", req.Search,
		"category_slug", req.CategorySlug,
		"is_active", req.IsActive,
		"min_price", req.MinPrice,
		"max_price", req.MaxPrice,
		"min_stock", req.MinStock,
		"max_stock", req.MaxStock,
		"sort_by", req.SortBy,
		"sort_order", req.SortOrder,
	)

	result, err := cachedQuery(ctx, h.cache, key, func(ctx context.Context) (domain.Page[domain.Product], error) {
		if req.CategorySlug != "" {
			ids, err := h.repository.ResolveCategoryIDs(ctx, req.CategorySlug)
			if err != nil {
				return domain.Page[domain.Product]{}, err
			}
			if len(ids) == 0 {
				return domain.EmptyPage[domain.Product](perPage), nil
			}
			filter.CategoryIDs = ids
		}
		return h.repository.ListProducts(ctx, page, perPage, filter)
	})
	if err != nil {
		zap.L().Error("Failed to list products", zap.Error(err))
		return nil, httperror.InternalServerError(
			"product.index.failed",
			"Failed to retrieve products",
			nil,
		)
	}

	return &result, nil
}
