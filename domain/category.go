package domain

import "time"

const (
	SlugProtein    = "protein"
	SlugLowCarb    = "lowCarb"
	SlugVegan      = "vegan"
	SlugVegetarian = "vegetarian"
)

var CategorySlugs = []string{SlugProtein, SlugLowCarb, SlugVegan, SlugVegetarian}

type Category struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Slug         string    `json:"slug" db:"slug"`
	Description  *string   `json:"description" db:"description"`
	ImageURL     *string   `json:"image_url" db:"image_url"`
	Color        *string   `json:"color" db:"color"`
	Icon         *string   `json:"icon" db:"icon"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	DisplayOrder int       `json:"display_order" db:"display_order"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// CategorySummary is the category snapshot embedded in products read with the join.
type CategorySummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	Description  *string `json:"description"`
	ImageURL     *string `json:"image_url"`
	Color        *string `json:"color"`
	Icon         *string `json:"icon"`
	IsActive     bool    `json:"is_active"`
	DisplayOrder int     `json:"display_order"`
}

func (c Category) Summary() CategorySummary {
	return CategorySummary{
		ID:           c.ID,
		Name:         c.Name,
		Slug:         c.Slug,
		Description:  c.Description,
		ImageURL:     c.ImageURL,
		Color:        c.Color,
		Icon:         c.Icon,
		IsActive:     c.IsActive,
		DisplayOrder: c.DisplayOrder,
	}
}

func IsCategorySlug(slug string) bool {
	for _, s := range CategorySlugs {
		if s == slug {
			return true
		}
	}
	return false
}

// NextDisplayOrder returns the order assigned to a new category when the caller
// did not pick one. current is the highest existing order, nil for an empty table.
func NextDisplayOrder(current *int) int {
	if current == nil {
		return 0
	}
	return *current + 1
}
