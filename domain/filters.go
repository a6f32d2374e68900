package domain

import "github.com/shopspring/decimal"

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

var ProductSortFields = []string{"price", "created_at", "updated_at", "title", "stock_quantity"}

// ProductFilter composes conjunctively. A nil field places no constraint.
type ProductFilter struct {
	Search      *string
	CategoryIDs []string
	IsActive    *bool
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	MinStock    *int
	MaxStock    *int
	SortBy      string
	SortOrder   string
}
