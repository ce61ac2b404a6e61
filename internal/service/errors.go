package service

import (
	"errors"
	"fmt"
)

var ErrForbidden = errors.New("forbidden")

// ValidationError rejects a request field before any state is touched. Stock
// rule violations raised by the ledger are stock.ValidationError instead.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
