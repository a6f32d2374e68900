package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CatalogExchange = "catalog.events"
	ReviewExchange  = "catalog.review"
)

// Event names
const (
	CategoryCreatedEvent = "category.created"
	CategoryUpdatedEvent = "category.updated"
	CategoryDeletedEvent = "category.deleted"
	ProductCreatedEvent  = "product.created"
	ProductUpdatedEvent  = "product.updated"
	ProductDeletedEvent  = "product.deleted"
	ImageUploadedEvent   = "image.uploaded"
	ImageDeletedEvent    = "image.deleted"
	ReviewCreatedEvent   = "review.created"
)

const (
	EventVersionV1 = "v1"
)

type CategoryPayload struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	IsActive     bool      `json:"isActive"`
	DisplayOrder int       `json:"displayOrder"`
	At           time.Time `json:"at"`
}

type CategoryDeletedPayload struct {
	ID        string    `json:"id"`
	DeletedAt time.Time `json:"deletedAt"`
}

type ProductPayload struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	CategoryID    *string          `json:"categoryId"`
	IsActive      bool             `json:"isActive"`
	StockQuantity int              `json:"stockQuantity"`
	At            time.Time        `json:"at"`
}

type ProductDeletedPayload struct {
	ID        string    `json:"id"`
	DeletedAt time.Time `json:"deletedAt"`
}

type ImagePayload struct {
	Bucket string    `json:"bucket"`
	Path   string    `json:"path"`
	URL    string    `json:"url,omitempty"`
	At     time.Time `json:"at"`
}

// ReviewCreatedPayload is published by the storefront when a customer reviews a product.
type ReviewCreatedPayload struct {
	ReviewID  string          `json:"reviewId"`
	ProductID string          `json:"productId"`
	Rating    decimal.Decimal `json:"rating"`
}
