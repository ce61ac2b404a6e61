package stock

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var ErrOversell = errors.New("decrement exceeds available stock")

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

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateRatio rejects ratios outside [0,1]. Callers must not clamp.
func ValidateRatio(ratio float64) error {
	if math.IsNaN(ratio) || ratio < 0 || ratio > 1 {
		return invalid("stock_ratio", "must be between 0 and 1, got %v", ratio)
	}
	return nil
}

// Split derives the online and offline share of quantity. The online share is
// floored so online+offline always equals quantity and the fractional unit
// lands offline. The product is taken in decimal so ratios like 0.29 do not
// lose a unit to binary rounding.
func Split(quantity int, ratio float64) (online int, offline int, err error) {
	if quantity < 0 {
		return 0, 0, invalid("quantity", "must not be negative, got %d", quantity)
	}
	if err := ValidateRatio(ratio); err != nil {
		return 0, 0, err
	}

	online = int(decimal.NewFromInt(int64(quantity)).
		Mul(decimal.NewFromFloat(ratio)).
		Floor().
		IntPart())
	return online, quantity - online, nil
}
