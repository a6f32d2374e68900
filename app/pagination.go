package app

import (
	"catalog/internal/querycache"
	"context"
	"math"
	"strconv"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Cache entities
const (
	CategoriesEntity = "categories"
	ProductsEntity   = "products"
)

// ParsePage coerces the page query parameter. Anything that is not a positive
// number reads as page 1; fractions are truncated.
func ParsePage(raw string) int {
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 1
	}
	return int(max(1, math.Trunc(min(n, math.MaxInt32))))
}

func ParsePerPage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return DefaultPerPage
	}
	return min(n, MaxPerPage)
}

// pageKey identifies one page of an entity listing. Empty filter values are
// left out so equivalent queries share a key.
func pageKey(entity string, page, perPage int, filters ...string) querycache.Key {
	kv := append([]string{
		"page", strconv.Itoa(page),
		"per_page", strconv.Itoa(perPage),
	}, filters...)
	return querycache.NewKey(entity, kv...)
}

// isUnfilteredFirstPage reports whether key caches the first page of the
// plain listing, the only view that mutations patch optimistically.
func isUnfilteredFirstPage(key querycache.Key) bool {
	if len(key.Params) != 2 || !key.Params.Has("per_page") {
		return false
	}
	return key.Params.Get("page") == "1"
}

// cachedQuery serves fetch through the query cache when one is configured.
func cachedQuery[T any](ctx context.Context, cache *querycache.Cache, key querycache.Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	if cache == nil {
		return fetch(ctx)
	}

	var out T
	err := cache.Fetch(ctx, key, &out, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	return out, err
}
