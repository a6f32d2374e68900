package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string           `json:"id" db:"id"`
	Title         string           `json:"title" db:"title"`
	Description   *string          `json:"description" db:"description"`
	ImageURL      *string          `json:"image_url" db:"image_url"`
	Price         decimal.Decimal  `json:"price" db:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price" db:"discount_price"`
	CategoryID    *string          `json:"category_id" db:"category_id"`
	IsActive      bool             `json:"is_active" db:"is_active"`
	StockQuantity int              `json:"stock_quantity" db:"stock_quantity"`
	Rating        float64          `json:"rating" db:"rating"`
	ReviewsCount  int              `json:"reviews_count" db:"reviews_count"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`

	Category *CategorySummary `json:"category,omitempty" db:"-"`
}

// RoundPrice rounds half-up to the two decimals stored by the price columns.
func RoundPrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(2)
}

// SanitizeProductFields prepares caller supplied product fields for storage:
// prices are rounded and the review aggregates, owned by the review worker,
// are dropped.
func SanitizeProductFields(fields Fields) Fields {
	out := fields.Clone()
	delete(out, "rating")
	delete(out, "reviews_count")

	if v, ok := out["price"].(decimal.Decimal); ok {
		out["price"] = RoundPrice(v)
	}

	switch v := out["discount_price"].(type) {
	case decimal.Decimal:
		out["discount_price"] = RoundPrice(v)
	case *decimal.Decimal:
		if v != nil {
			rounded := RoundPrice(*v)
			out["discount_price"] = &rounded
		}
	}

	return out
}

// NextRating folds one review score into the running average.
func NextRating(rating float64, count int, score decimal.Decimal) float64 {
	total := decimal.NewFromFloat(rating).Mul(decimal.NewFromInt(int64(count))).Add(score)
	avg, _ := total.Div(decimal.NewFromInt(int64(count + 1))).Round(2).Float64()
	return avg
}
