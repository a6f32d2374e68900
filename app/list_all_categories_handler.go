package app

import (
	"catalog/domain"
	"catalog/internal/querycache"
	"catalog/pkg/httperror"
	"context"
)

// ListAllCategoriesHandler serves the unpaginated list used by selects and
// filter bars.
type ListAllCategoriesHandler struct {
	repository Repository
	cache      *querycache.Cache
}

func NewListAllCategoriesHandler(repository Repository, cache *querycache.Cache) *ListAllCategoriesHandler {
	return &ListAllCategoriesHandler{
		repository: repository,
		cache:      cache,
	}
}

type ListAllCategoriesRequest struct{}

type ListAllCategoriesResponse struct {
	Items []domain.Category `json:"items"`
}

func (h ListAllCategoriesHandler) Handle(ctx context.Context, _ *ListAllCategoriesRequest) (*ListAllCategoriesResponse, error) {
	key := querycache.NewKey(CategoriesEntity, "scope", "all")
	items, err := cachedQuery(ctx, h.cache, key, h.repository.ListAllCategories)
	if err != nil {
		return nil, httperror.InternalServerError(
			"category.all.failed",
			"Failed to retrieve categories",
			nil,
		)
	}

	return &ListAllCategoriesResponse{
		Items: items,
	}, nil
}
