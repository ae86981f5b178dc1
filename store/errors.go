package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrMemberExists = errors.New("member with this email already exists")
	ErrNotFound     = errors.New("record not found")
	ErrSoldOut      = errors.New("not enough tickets left")
)

// CapacityError is returned when a reservation would oversell a screening.
type CapacityError struct {
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %d remaining", ErrSoldOut, e.Remaining)
}

func (e *CapacityError) Is(target error) bool { return target == ErrSoldOut }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
