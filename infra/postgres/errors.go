package postgres

import (
	"catalog/domain"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// integrity constraint violation: unique, foreign key, not null, check
const integrityViolationClass = "23"

func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == integrityViolationClass {
		return fmt.Errorf("%w: %s", domain.ErrConstraintViolation, pqErr.Message)
	}
	return err
}
