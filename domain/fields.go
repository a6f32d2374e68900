package domain

import "errors"

// Fields holds column values for inserts and partial updates.
type Fields map[string]any

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

var ErrConstraintViolation = errors.New("constraint violation")

// ErrReviewAlreadyApplied is returned when a review id was folded into a
// product rating before.
var ErrReviewAlreadyApplied = errors.New("review already applied")
