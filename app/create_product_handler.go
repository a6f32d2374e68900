package app

import (
	"catalog/domain"
	"catalog/pkg/events"
	"context"

	"github.com/shopspring/decimal"
)

type CreateProductHandler struct {
	repository Repository
	hooks      *MutationHooks
}

func NewCreateProductHandler(repository Repository, hooks *MutationHooks) *CreateProductHandler {
	return &CreateProductHandler{
		repository: repository,
		hooks:      hooks,
	}
}

type CreateProductRequest struct {
	Title         string           `json:"title" validate:"required,min=3,max=255"`
	Description   *string          `json:"description" validate:"omitempty,min=10,max=1000"`
	ImageURL      *string          `json:"image_url" validate:"omitempty,url"`
	Price         *decimal.Decimal `json:"price" validate:"required,money"`
	DiscountPrice NullableDecimal  `json:"discount_price" validate:"omitempty,money"`
	CategoryID    *string          `json:"category_id" validate:"omitempty,uuid"`
	IsActive      *bool            `json:"is_active"`
	StockQuantity *int             `json:"stock_quantity" validate:"omitempty,gte=0"`
}

type ProductMutationResponse struct {
	Product      domain.Product `json:"product"`
	Notification Notification   `json:"notification"`
}

func (r *CreateProductRequest) fields() domain.Fields {
	f := domain.Fields{
		"title":          r.Title,
		"price":          *r.Price,
		"is_active":      true,
		"stock_quantity": 0,
	}
	if r.IsActive != nil {
		f["is_active"] = *r.IsActive
	}
	if r.StockQuantity != nil {
		f["stock_quantity"] = *r.StockQuantity
	}
	r.DiscountPrice.discountColumn(f, "discount_price")
	setOptional(f, "description", r.Description)
	setOptional(f, "image_url", r.ImageURL)
	setOptional(f, "category_id", r.CategoryID)
	return f
}

func (h CreateProductHandler) Handle(ctx context.Context, req *CreateProductRequest) (*ProductMutationResponse, error) {
	if err := validateRequest("product.create.validation_failed", req); err != nil {
		return nil, err
	}

	product, notification, err := Mutate(ctx, h.hooks, productMutation(MutationCreate), "",
		func(ctx context.Context) (domain.Product, error) {
			return h.repository.CreateProduct(ctx, req.fields())
		},
		productPayload,
	)
	if err != nil {
		return nil, err
	}

	return &ProductMutationResponse{
		Product:      product,
		Notification: notification,
	}, nil
}

func productMutation(kind string) Mutation {
	return Mutation{
		Entity: ProductsEntity,
		Noun:   "product",
		Kind:   kind,
		Event: map[string]string{
			MutationCreate: events.ProductCreatedEvent,
			MutationUpdate: events.ProductUpdatedEvent,
			MutationDelete: events.ProductDeletedEvent,
		}[kind],
	}
}

func productPayload(p domain.Product) any {
	return events.ProductPayload{
		ID:            p.ID,
		Title:         p.Title,
		Price:         p.Price,
		DiscountPrice: p.DiscountPrice,
		CategoryID:    p.CategoryID,
		IsActive:      p.IsActive,
		StockQuantity: p.StockQuantity,
		At:            p.UpdatedAt,
	}
}
