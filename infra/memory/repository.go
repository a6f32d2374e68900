package memory

import (
	"catalog/domain"
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository keeps the catalog in process memory. It mirrors the Postgres
// repository's semantics, including cascades and not-found errors, and is
// used for local runs without a database and in tests.
type Repository struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
	products   map[string]domain.Product
	reviews    map[string]struct{}
	now        func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		categories: make(map[string]domain.Category),
		products:   make(map[string]domain.Product),
		reviews:    make(map[string]struct{}),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) Close() error {
	return nil
}

func (r *Repository) ListCategories(_ context.Context, page, perPage int) (domain.Page[domain.Category], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return paginate(r.sortedCategories(), page, perPage), nil
}

func (r *Repository) ListAllCategories(_ context.Context) ([]domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedCategories(), nil
}

func (r *Repository) GetCategory(_ context.Context, id string) (domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return domain.Category{}, sql.ErrNoRows
	}
	return c, nil
}

func (r *Repository) ResolveCategoryIDs(_ context.Context, slug string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0)
	for _, c := range r.categories {
		if c.Slug == slug {
			ids = append(ids, c.ID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *Repository) CreateCategory(_ context.Context, fields domain.Fields) (domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c := domain.Category{ID: uuid.NewString(), IsActive: true, CreatedAt: now, UpdatedAt: now}

	data := fields.Clone()
	if _, ok := data["display_order"]; !ok {
		var highest *int
		for _, existing := range r.categories {
			if highest == nil || existing.DisplayOrder > *highest {
				order := existing.DisplayOrder
				highest = &order
			}
		}
		data["display_order"] = domain.NextDisplayOrder(highest)
	}

	if err := applyCategoryFields(&c, data); err != nil {
		return domain.Category{}, err
	}

	r.categories[c.ID] = c
	return c, nil
}

func (r *Repository) UpdateCategory(_ context.Context, id string, updates domain.Fields) (domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.categories[id]
	if !ok {
		return domain.Category{}, sql.ErrNoRows
	}

	if err := applyCategoryFields(&c, updates); err != nil {
		return domain.Category{}, err
	}
	c.UpdatedAt = r.now()
	r.categories[id] = c

	if active, ok := updates["is_active"].(bool); ok && !active {
		for pid, p := range r.products {
			if p.CategoryID != nil && *p.CategoryID == id && p.IsActive {
				p.IsActive = false
				p.UpdatedAt = c.UpdatedAt
				r.products[pid] = p
			}
		}
	}

	return c, nil
}

func (r *Repository) DeleteCategory(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[id]; !ok {
		return 0, sql.ErrNoRows
	}

	var detached int64
	now := r.now()
	for pid, p := range r.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
			p.UpdatedAt = now
			r.products[pid] = p
			detached++
		}
	}

	delete(r.categories, id)
	return detached, nil
}

func (r *Repository) ListProducts(_ context.Context, page, perPage int, filter domain.ProductFilter) (domain.Page[domain.Product], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Product, 0)
	for _, p := range r.products {
		if matches(p, filter) {
			matched = append(matched, r.withCategory(p))
		}
	}

	slices.SortFunc(matched, productOrder(filter))
	return paginate(matched, page, perPage), nil
}

func (r *Repository) GetProduct(_ context.Context, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, sql.ErrNoRows
	}
	return r.withCategory(p), nil
}

func (r *Repository) CreateProduct(_ context.Context, fields domain.Fields) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	p := domain.Product{ID: uuid.NewString(), IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := r.applyProductFields(&p, domain.SanitizeProductFields(fields)); err != nil {
		return domain.Product{}, err
	}

	r.products[p.ID] = p
	return r.withCategory(p), nil
}

func (r *Repository) UpdateProduct(_ context.Context, id string, updates domain.Fields) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, sql.ErrNoRows
	}

	if err := r.applyProductFields(&p, domain.SanitizeProductFields(updates)); err != nil {
		return domain.Product{}, err
	}
	p.UpdatedAt = r.now()

	r.products[id] = p
	return r.withCategory(p), nil
}

func (r *Repository) DeleteProduct(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.products, id)
	return nil
}

func (r *Repository) ApplyProductReview(_ context.Context, productID, reviewID string, score decimal.Decimal) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return domain.Product{}, sql.ErrNoRows
	}
	if _, seen := r.reviews[reviewID]; seen {
		return domain.Product{}, domain.ErrReviewAlreadyApplied
	}
	r.reviews[reviewID] = struct{}{}

	p.Rating = domain.NextRating(p.Rating, p.ReviewsCount, score)
	p.ReviewsCount++
	p.UpdatedAt = r.now()

	r.products[productID] = p
	return r.withCategory(p), nil
}

func (r *Repository) sortedCategories() []domain.Category {
	out := make([]domain.Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Category) int {
		return cmp.Or(cmp.Compare(a.DisplayOrder, b.DisplayOrder), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (r *Repository) withCategory(p domain.Product) domain.Product {
	p.Category = nil
	if p.CategoryID == nil {
		return p
	}
	if c, ok := r.categories[*p.CategoryID]; ok {
		summary := c.Summary()
		p.Category = &summary
	}
	return p
}

func paginate[T any](all []T, page, perPage int) domain.Page[T] {
	meta := domain.NewPageMeta(page, perPage, len(all))
	items := make([]T, 0)
	if len(all) == 0 {
		return domain.Page[T]{Items: items, Meta: meta}
	}

	start := min(meta.Offset(), len(all))
	end := min(start+meta.PerPage, len(all))
	items = append(items, all[start:end]...)
	return domain.Page[T]{Items: items, Meta: meta}
}

func matches(p domain.Product, f domain.ProductFilter) bool {
	if f.Search != nil && *f.Search != "" &&
		!strings.Contains(strings.ToLower(p.Title), strings.ToLower(*f.Search)) {
		return false
	}
	if f.CategoryIDs != nil && (p.CategoryID == nil || !slices.Contains(f.CategoryIDs, *p.CategoryID)) {
		return false
	}
	if f.IsActive != nil && p.IsActive != *f.IsActive {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.MinStock != nil && p.StockQuantity < *f.MinStock {
		return false
	}
	if f.MaxStock != nil && p.StockQuantity > *f.MaxStock {
		return false
	}
	return true
}

func productOrder(f domain.ProductFilter) func(a, b domain.Product) int {
	var by func(a, b domain.Product) int
	switch f.SortBy {
	case "price":
		by = func(a, b domain.Product) int { return a.Price.Cmp(b.Price) }
	case "updated_at":
		by = func(a, b domain.Product) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	case "title":
		by = func(a, b domain.Product) int { return cmp.Compare(a.Title, b.Title) }
	case "stock_quantity":
		by = func(a, b domain.Product) int { return cmp.Compare(a.StockQuantity, b.StockQuantity) }
	default:
		by = func(a, b domain.Product) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}

	desc := f.SortOrder != domain.SortAsc
	return func(a, b domain.Product) int {
		c := by(a, b)
		if desc {
			c = -c
		}
		return cmp.Or(c, cmp.Compare(a.ID, b.ID))
	}
}

func applyCategoryFields(c *domain.Category, fields domain.Fields) error {
	for col, v := range fields {
		var ok bool
		switch col {
		case "name":
			c.Name, ok = v.(string)
		case "slug":
			c.Slug, ok = v.(string)
		case "description":
			c.Description, ok = optionalString(v)
		case "image_url":
			c.ImageURL, ok = optionalString(v)
		case "color":
			c.Color, ok = optionalString(v)
		case "icon":
			c.Icon, ok = optionalString(v)
		case "is_active":
			c.IsActive, ok = v.(bool)
		case "display_order":
			c.DisplayOrder, ok = v.(int)
		default:
			return fmt.Errorf("memory: column %q is not writable on categories", col)
		}
		if !ok {
			return fmt.Errorf("memory: unexpected %T for categories.%s", v, col)
		}
	}
	return nil
}

func (r *Repository) applyProductFields(p *domain.Product, fields domain.Fields) error {
	for col, v := range fields {
		var ok bool
		switch col {
		case "title":
			p.Title, ok = v.(string)
		case "description":
			p.Description, ok = optionalString(v)
		case "image_url":
			p.ImageURL, ok = optionalString(v)
		case "price":
			p.Price, ok = v.(decimal.Decimal)
		case "discount_price":
			p.DiscountPrice, ok = optionalDecimal(v)
		case "category_id":
			p.CategoryID, ok = optionalString(v)
			if ok && p.CategoryID != nil {
				if _, exists := r.categories[*p.CategoryID]; !exists {
					return fmt.Errorf("%w: category %s does not exist", domain.ErrConstraintViolation, *p.CategoryID)
				}
			}
		case "is_active":
			p.IsActive, ok = v.(bool)
		case "stock_quantity":
			p.StockQuantity, ok = v.(int)
		default:
			return fmt.Errorf("memory: column %q is not writable on products", col)
		}
		if !ok {
			return fmt.Errorf("memory: unexpected %T for products.%s", v, col)
		}
	}
	return nil
}

func optionalString(v any) (*string, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case string:
		return &s, true
	case *string:
		return s, true
	}
	return nil, false
}

func optionalDecimal(v any) (*decimal.Decimal, bool) {
	switch d := v.(type) {
	case nil:
		return nil, true
	case decimal.Decimal:
		return &d, true
	case *decimal.Decimal:
		return d, true
	}
	return nil, false
}
