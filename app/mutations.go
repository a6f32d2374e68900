package app

import (
	"catalog/domain"
	"catalog/internal/metrics"
	"catalog/internal/querycache"
	"catalog/pkg/events"
	"catalog/pkg/httperror"
	"catalog/pkg/logger"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	MutationCreate = "create"
	MutationUpdate = "update"
	MutationDelete = "delete"
)

const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

// Mutation describes one write for the hooks: which cached entity it touches,
// how the dashboard names it and what event announces it.
type Mutation struct {
	Entity string
	Noun   string
	Kind   string
	Event  string

	// Also lists entities whose cached reads embed the mutated one.
	Also []string
}

var pastTense = map[string]string{
	MutationCreate: "created",
	MutationUpdate: "updated",
	MutationDelete: "deleted",
}

var progressive = map[string]string{
	MutationCreate: "creating",
	MutationUpdate: "updating",
	MutationDelete: "deleting",
}

// MutationHooks runs repository writes and keeps the query cache and
// subscribers in step with them.
type MutationHooks struct {
	cache     *querycache.Cache
	publisher events.Publisher
	service   string
}

func NewMutationHooks(cache *querycache.Cache, publisher events.Publisher, service string) *MutationHooks {
	return &MutationHooks{
		cache:     cache,
		publisher: publisher,
		service:   service,
	}
}

// Mutate runs write. On failure nothing else happens and the error carries a
// destructive notification. On success the first page of the plain listing is
// patched, every cached query of the entity is invalidated, the event is
// published and a success notification is returned.
func Mutate[T any](ctx context.Context, h *MutationHooks, m Mutation, id string, write func(ctx context.Context) (T, error), payload func(T) any) (T, Notification, error) {
	result, err := write(ctx)
	if err != nil {
		metrics.MutationsTotal.WithLabelValues(m.Entity, m.Kind, "failure").Inc()
		var zero T
		return zero, Notification{}, h.failure(m, err)
	}
	metrics.MutationsTotal.WithLabelValues(m.Entity, m.Kind, "success").Inc()

	if m.Kind != MutationDelete {
		id = recordID(result)
	}

	h.patch(ctx, m, id, result)
	h.invalidate(ctx, m)
	if payload != nil {
		h.publish(ctx, m.Event, payload(result))
	}

	return result, Notification{
		Title:       "Success",
		Description: capitalize(m.Noun) + " " + pastTense[m.Kind] + " successfully",
		Variant:     VariantDefault,
	}, nil
}

func (h *MutationHooks) failure(m Mutation, err error) error {
	var httpErr *httperror.Error
	if errors.As(err, &httpErr) {
		return httpErr
	}

	code := m.Noun + "." + m.Kind
	notification := Notification{
		Title:       "Error",
		Description: "Error " + progressive[m.Kind] + " " + m.Noun + ": " + err.Error(),
		Variant:     VariantDestructive,
	}
	details := map[string]any{"notification": notification}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		notification.Description = "Error " + progressive[m.Kind] + " " + m.Noun + ": " + m.Noun + " not found"
		details["notification"] = notification
		return httperror.NotFound(code+".not_found", notification.Description, details)
	case errors.Is(err, domain.ErrConstraintViolation):
		return httperror.Conflict(code+".constraint_violation", notification.Description, details)
	default:
		zap.L().Error("Catalog mutation failed", zap.String("entity", m.Entity), zap.String("kind", m.Kind), zap.Error(err))
		return httperror.InternalServerError(code+".failed", notification.Description, details)
	}
}

// patch applies the optimistic update to cached first pages of the plain
// listing. Filtered views and later pages are left to the invalidation.
func (h *MutationHooks) patch(ctx context.Context, m Mutation, id string, result any) {
	if h.cache == nil {
		return
	}

	keys, err := h.cache.Keys(ctx, m.Entity)
	if err != nil {
		logger.FromContext(ctx).Warn("Skipping optimistic cache patch", zap.String("entity", m.Entity), zap.Error(err))
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return
	}

	for _, key := range keys {
		if !isUnfilteredFirstPage(key) {
			continue
		}

		err := h.cache.Update(ctx, key, func(data json.RawMessage) (json.RawMessage, error) {
			return patchPage(data, m.Kind, id, raw)
		})
		if err != nil && !errors.Is(err, querycache.ErrMiss) {
			logger.FromContext(ctx).Warn("Optimistic cache patch failed", zap.String("key", key.String()), zap.Error(err))
		}
	}
}

func (h *MutationHooks) invalidate(ctx context.Context, m Mutation) {
	if h.cache == nil {
		return
	}

	for _, entity := range append([]string{m.Entity}, m.Also...) {
		if err := h.cache.Invalidate(ctx, entity); err != nil {
			logger.FromContext(ctx).Warn("Query cache invalidation failed", zap.String("entity", entity), zap.Error(err))
		}
	}
}

func (h *MutationHooks) publish(ctx context.Context, name string, payload any) {
	if h.publisher == nil || name == "" {
		return
	}

	headers := events.NewHeaders(h.service)
	event, err := events.NewEvent(name, events.EventVersionV1, payload, headers)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to build catalog event", zap.String("event", name), zap.Error(err))
		return
	}

	if err := h.publisher.Publish(ctx, events.CatalogExchange, event, headers); err != nil {
		logger.FromContext(ctx).Error("Failed to publish catalog event",
			zap.String("event", name),
			zap.String("traceID", headers.TraceID),
			zap.Error(err),
		)
	}
}

type cachedPage struct {
	Items []json.RawMessage `json:"items"`
	Meta  domain.PageMeta   `json:"meta"`
}

// patchPage prepends, merges or removes record id in a cached page envelope.
func patchPage(data json.RawMessage, kind, id string, record json.RawMessage) (json.RawMessage, error) {
	var page cachedPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, err
	}

	switch kind {
	case MutationCreate:
		page.Items = append([]json.RawMessage{record}, page.Items...)
		if page.Meta.PerPage > 0 && len(page.Items) > page.Meta.PerPage {
			page.Items = page.Items[:page.Meta.PerPage]
		}
		page.Meta = domain.NewPageMeta(page.Meta.Page, page.Meta.PerPage, page.Meta.Total+1)
	case MutationUpdate:
		for i, item := range page.Items {
			if rawID(item) == id {
				page.Items[i] = record
			}
		}
	case MutationDelete:
		kept := make([]json.RawMessage, 0, len(page.Items))
		for _, item := range page.Items {
			if rawID(item) != id {
				kept = append(kept, item)
			}
		}
		if len(kept) < len(page.Items) {
			page.Meta = domain.NewPageMeta(page.Meta.Page, page.Meta.PerPage, max(page.Meta.Total-1, 0))
		}
		page.Items = kept
	}

	return json.Marshal(page)
}

func rawID(item json.RawMessage) string {
	var v struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(item, &v)
	return v.ID
}

func recordID(v any) string {
	switch r := v.(type) {
	case domain.Category:
		return r.ID
	case domain.Product:
		return r.ID
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
