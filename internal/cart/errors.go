package cart

import (
	"errors"
	"fmt"
)

var (
	ErrCellNotFound    = errors.New("no items ordered for this category")
	ErrItemNotFound    = errors.New("item not in this category")
	ErrCellPaid        = errors.New("category is already paid")
	ErrItemUnavailable = errors.New("item is not available")
)

// ValidationError reports invalid input rejected before the cart is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
