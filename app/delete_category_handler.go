package app

import (
	"catalog/pkg/events"
	"context"
	"time"
)

type DeleteCategoryHandler struct {
	repository Repository
	hooks      *MutationHooks
}

func NewDeleteCategoryHandler(repository Repository, hooks *MutationHooks) *DeleteCategoryHandler {
	return &DeleteCategoryHandler{
		repository: repository,
		hooks:      hooks,
	}
}

type DeleteCategoryRequest struct {
	ID string `params:"id" validate:"required,uuid"`
}

type DeleteCategoryResponse struct {
	ID               string       `json:"id"`
	DetachedProducts int64        `json:"detached_products"`
	Notification     Notification `json:"notification"`
}

func (h DeleteCategoryHandler) Handle(ctx context.Context, req *DeleteCategoryRequest) (*DeleteCategoryResponse, error) {
	if err := validateRequest("category.delete.validation_failed", req); err != nil {
		return nil, err
	}

	detached, notification, err := Mutate(ctx, h.hooks, categoryMutation(MutationDelete), req.ID,
		func(ctx context.Context) (int64, error) {
			return h.repository.DeleteCategory(ctx, req.ID)
		},
		func(int64) any {
			return events.CategoryDeletedPayload{ID: req.ID, DeletedAt: time.Now().UTC()}
		},
	)
	if err != nil {
		return nil, err
	}

	return &DeleteCategoryResponse{
		ID:               req.ID,
		DetachedProducts: detached,
		Notification:     notification,
	}, nil
}
