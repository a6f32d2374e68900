package app

import (
	"catalog/domain"
	"catalog/pkg/httperror"
	"context"
	"database/sql"
	"errors"
)

type GetProductHandler struct {
	repository Repository
}

func NewGetProductHandler(repository Repository) *GetProductHandler {
	return &GetProductHandler{
		repository: repository,
	}
}

type GetProductRequest struct {
	ID string `params:"id" validate:"required,uuid"`
}

type GetProductResponse struct {
	Product domain.Product `json:"product"`
}

func (h GetProductHandler) Handle(ctx context.Context, req *GetProductRequest) (*GetProductResponse, error) {
	if err := validateRequest("product.show.validation_failed", req); err != nil {
		return nil, err
	}

	product, err := h.repository.GetProduct(ctx, req.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NotFound("product.show.not_found", "Product not found", nil)
		}
		return nil, httperror.InternalServerError(
			"product.show.failed",
			"Failed to retrieve product",
			nil,
		)
	}

	return &GetProductResponse{
		Product: product,
	}, nil
}
