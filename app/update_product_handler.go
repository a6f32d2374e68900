package app

import (
	"catalog/domain"
	"catalog/pkg/httperror"
	"context"

	"github.com/shopspring/decimal"
)

type UpdateProductHandler struct {
	repository Repository
	hooks      *MutationHooks
}

func NewUpdateProductHandler(repository Repository, hooks *MutationHooks) *UpdateProductHandler {
	return &UpdateProductHandler{
		repository: repository,
		hooks:      hooks,
	}
}

type UpdateProductRequest struct {
	ID            string           `json:"-" params:"id" validate:"required,uuid"`
	Title         *string          `json:"title" validate:"omitempty,min=3,max=255"`
	Description   *string          `json:"description" validate:"omitempty,min=10,max=1000"`
	ImageURL      *string          `json:"image_url" validate:"omitempty,url"`
	Price         *decimal.Decimal `json:"price" validate:"omitempty,money"`
	DiscountPrice NullableDecimal  `json:"discount_price" validate:"omitempty,money"`
	CategoryID    *string          `json:"category_id" validate:"omitempty,uuid"`
	IsActive      *bool            `json:"is_active"`
	StockQuantity *int             `json:"stock_quantity" validate:"omitempty,gte=0"`
}

func (r *UpdateProductRequest) fields() domain.Fields {
	f := domain.Fields{}
	if r.Title != nil {
		f["title"] = *r.Title
	}
	if r.Price != nil {
		f["price"] = *r.Price
	}
	r.DiscountPrice.discountColumn(f, "discount_price")
	if r.IsActive != nil {
		f["is_active"] = *r.IsActive
	}
	if r.StockQuantity != nil {
		f["stock_quantity"] = *r.StockQuantity
	}
	setOptional(f, "description", r.Description)
	setOptional(f, "image_url", r.ImageURL)
	setOptional(f, "category_id", r.CategoryID)
	return f
}

func (h UpdateProductHandler) Handle(ctx context.Context, req *UpdateProductRequest) (*ProductMutationResponse, error) {
	if err := validateRequest("product.update.validation_failed", req); err != nil {
		return nil, err
	}

	updates := req.fields()
	if len(updates) == 0 {
		return nil, httperror.BadRequest("product.update.empty", "Nothing to update", nil)
	}

	product, notification, err := Mutate(ctx, h.hooks, productMutation(MutationUpdate), req.ID,
		func(ctx context.Context) (domain.Product, error) {
			return h.repository.UpdateProduct(ctx, req.ID, updates)
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
