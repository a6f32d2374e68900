package app

import (
	"catalog/domain"
	"catalog/pkg/httperror"
	"context"
	"database/sql"
	"errors"
)

type GetCategoryHandler struct {
	repository Repository
}

func NewGetCategoryHandler(repository Repository) *GetCategoryHandler {
	return &GetCategoryHandler{
		repository: repository,
	}
}

type GetCategoryRequest struct {
	ID string `params:"id" validate:"required,uuid"`
}

type GetCategoryResponse struct {
	Category domain.Category `json:"category"`
}

func (h GetCategoryHandler) Handle(ctx context.Context, req *GetCategoryRequest) (*GetCategoryResponse, error) {
	if err := validateRequest("category.show.validation_failed", req); err != nil {
		return nil, err
	}

	category, err := h.repository.GetCategory(ctx, req.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NotFound("category.show.not_found", "Category not found", nil)
		}
		return nil, httperror.InternalServerError(
			"category.show.failed",
			"Failed to retrieve category",
			nil,
		)
	}

	return &GetCategoryResponse{
		Category: category,
	}, nil
}
