package app

import (
	"catalog/pkg/events"
	"context"
	"time"
)

type DeleteProductHandler struct {
	repository Repository
	hooks      *MutationHooks
}

func NewDeleteProductHandler(repository Repository, hooks *MutationHooks) *DeleteProductHandler {
	return &DeleteProductHandler{
		repository: repository,
		hooks:      hooks,
	}
}

type DeleteProductRequest struct {
	ID string `params:"id" validate:"required,uuid"`
}

type DeleteProductResponse struct {
	ID           string       `json:"id"`
	Notification Notification `json:"notification"`
}

func (h DeleteProductHandler) Handle(ctx context.Context, req *DeleteProductRequest) (*DeleteProductResponse, error) {
	if err := validateRequest("product.delete.validation_failed", req); err != nil {
		return nil, err
	}

	_, notification, err := Mutate(ctx, h.hooks, productMutation(MutationDelete), req.ID,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, h.repository.DeleteProduct(ctx, req.ID)
		},
		func(struct{}) any {
			return events.ProductDeletedPayload{ID: req.ID, DeletedAt: time.Now().UTC()}
		},
	)
	if err != nil {
		return nil, err
	}

	return &DeleteProductResponse{
		ID:           req.ID,
		Notification: notification,
	}, nil
}
