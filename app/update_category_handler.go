package app

import (
	"catalog/domain"
	"catalog/pkg/httperror"
	"context"
)

type UpdateCategoryHandler struct {
	repository Repository
	hooks      *MutationHooks
}

func NewUpdateCategoryHandler(repository Repository, hooks *MutationHooks) *UpdateCategoryHandler {
	return &UpdateCategoryHandler{
		repository: repository,
		hooks:      hooks,
	}
}

type UpdateCategoryRequest struct {
	ID           string  `json:"-" params:"id" validate:"required,uuid"`
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	Slug         *string `json:"slug" validate:"omitempty,oneof=protein lowCarb vegan vegetarian"`
	Description  *string `json:"description" validate:"omitempty,max=1000"`
	ImageURL     *string `json:"image_url" validate:"omitempty,url"`
	Color        *string `json:"color" validate:"omitempty,hexcolor"`
	Icon         *string `json:"icon" validate:"omitempty,max=64"`
	IsActive     *bool   `json:"is_active"`
	DisplayOrder *int    `json:"display_order" validate:"omitempty,gte=0"`
}

func (r *UpdateCategoryRequest) fields() domain.Fields {
	f := domain.Fields{}
	if r.Name != nil {
		f["name"] = *r.Name
	}
	if r.Slug != nil {
		f["slug"] = *r.Slug
	}
	if r.IsActive != nil {
		f["is_active"] = *r.IsActive
	}
	if r.DisplayOrder != nil {
		f["display_order"] = *r.DisplayOrder
	}
	setOptional(f, "description", r.Description)
	setOptional(f, "image_url", r.ImageURL)
	setOptional(f, "color", r.Color)
	setOptional(f, "icon", r.Icon)
	return f
}

func (h UpdateCategoryHandler) Handle(ctx context.Context, req *UpdateCategoryRequest) (*CategoryMutationResponse, error) {
	if err := validateRequest("category.update.validation_failed", req); err != nil {
		return nil, err
	}

	updates := req.fields()
	if len(updates) == 0 {
		return nil, httperror.BadRequest("category.update.empty", "Nothing to update", nil)
	}

	category, notification, err := Mutate(ctx, h.hooks, categoryMutation(MutationUpdate), req.ID,
		func(ctx context.Context) (domain.Category, error) {
			return h.repository.UpdateCategory(ctx, req.ID, updates)
		},
		categoryPayload,
	)
	if err != nil {
		return nil, err
	}

	return &CategoryMutationResponse{
		Category:     category,
		Notification: notification,
	}, nil
}
