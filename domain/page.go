package domain

type PageMeta struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
	First   int `json:"first"`
	Last    int `json:"last"`
}

type Page[T any] struct {
	Items []T      `json:"items"`
	Meta  PageMeta `json:"meta"`
}

// NewPageMeta computes the page count for total rows and clamps the requested
// page into [1, pages], or 1 when there are no pages.
func NewPageMeta(page, perPage, total int) PageMeta {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}

	return PageMeta{
		Page:    ClampPage(page, pages),
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		First:   1,
		Last:    pages,
	}
}

func ClampPage(page, pages int) int {
	return max(min(page, pages), 1)
}

func (m PageMeta) Offset() int {
	return (m.Page - 1) * m.PerPage
}

func EmptyPage[T any](perPage int) Page[T] {
	return Page[T]{
		Items: make([]T, 0),
		Meta:  NewPageMeta(1, perPage, 0),
	}
}
