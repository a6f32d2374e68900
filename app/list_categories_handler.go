package app

import (
	"catalog/domain"
	"catalog/internal/querycache"
	"catalog/pkg/httperror"
	"context"

	"go.uber.org/zap"
)

type ListCategoriesHandler struct {
	repository Repository
	cache      *querycache.Cache
}

func NewListCategoriesHandler(repository Repository, cache *querycache.Cache) *ListCategoriesHandler {
	return &ListCategoriesHandler{
		repository: repository,
		cache:      cache,
	}
}

type ListCategoriesRequest struct {
	Page    string `query:"page"`
	PerPage string `query:"per_page"`
}

type ListCategoriesResponse = domain.Page[domain.Category]

func (h ListCategoriesHandler) Handle(ctx context.Context, req *ListCategoriesRequest) (*ListCategoriesResponse, error) {
	page := ParsePage(req.Page)
	perPage := ParsePerPage(req.PerPage)

	key := pageKey(CategoriesEntity, page, perPage)
	result, err := cachedQuery(ctx, h.cache, key, func(ctx context.Context) (domain.Page[domain.Category], error) {
		return h.repository.ListCategories(ctx, page, perPage)
	})
	if err != nil {
		zap.L().Error("Failed to list categories", zap.Error(err))
		return nil, httperror.InternalServerError(
			"category.index.failed",
			"Failed to retrieve categories",
			nil,
		)
	}

	return &result, nil
}
