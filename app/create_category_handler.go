package app

import (
	"catalog/domain"
	"catalog/pkg/events"
	"context"
)

type CreateCategoryHandler struct {
	repository Repository
	hooks      *MutationHooks
}

func NewCreateCategoryHandler(repository Repository, hooks *MutationHooks) *CreateCategoryHandler {
	return &CreateCategoryHandler{
		repository: repository,
		hooks:      hooks,
	}
}

type CreateCategoryRequest struct {
	Name         string  `json:"name" validate:"required,min=1,max=255"`
	Slug         string  `json:"slug" validate:"required,oneof=protein lowCarb vegan vegetarian"`
	Description  *string `json:"description" validate:"omitempty,max=1000"`
	ImageURL     *string `json:"image_url" validate:"omitempty,url"`
	Color        *string `json:"color" validate:"omitempty,hexcolor"`
	Icon         *string `json:"icon" validate:"omitempty,max=64"`
	IsActive     *bool   `json:"is_active"`
	DisplayOrder *int    `json:"display_order" validate:"omitempty,gte=0"`
}

type CategoryMutationResponse struct {
	Category     domain.Category `json:"category"`
	Notification Notification    `json:"notification"`
}

func (r *CreateCategoryRequest) fields() domain.Fields {
	f := domain.Fields{
		"name":      r.Name,
		"slug":      r.Slug,
		"is_active": true,
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

func (h CreateCategoryHandler) Handle(ctx context.Context, req *CreateCategoryRequest) (*CategoryMutationResponse, error) {
	if err := validateRequest("category.create.validation_failed", req); err != nil {
		return nil, err
	}

	category, notification, err := Mutate(ctx, h.hooks, categoryMutation(MutationCreate), "",
		func(ctx context.Context) (domain.Category, error) {
			return h.repository.CreateCategory(ctx, req.fields())
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

func categoryMutation(kind string) Mutation {
	return Mutation{
		Entity: CategoriesEntity,
		Noun:   "category",
		Kind:   kind,
		Event: map[string]string{
			MutationCreate: events.CategoryCreatedEvent,
			MutationUpdate: events.CategoryUpdatedEvent,
			MutationDelete: events.CategoryDeletedEvent,
		}[kind],
		// products embed a category snapshot and follow its deactivation
		Also: []string{ProductsEntity},
	}
}

func categoryPayload(c domain.Category) any {
	return events.CategoryPayload{
		ID:           c.ID,
		Name:         c.Name,
		Slug:         c.Slug,
		IsActive:     c.IsActive,
		DisplayOrder: c.DisplayOrder,
		At:           c.UpdatedAt,
	}
}

// setOptional stores an optional text column. An explicit empty string
// clears it.
func setOptional(f domain.Fields, col string, v *string) {
	if v == nil {
		return
	}
	if *v == "" {
		f[col] = nil
		return
	}
	f[col] = *v
}
