package fx

import (
	"errors"
	"fmt"
)

// ErrUnavailable is the umbrella for every rate lookup failure.
var ErrUnavailable = errors.New("exchange rate unavailable")

var (
	ErrServiceUnavailable  = fmt.Errorf("%w: service unavailable", ErrUnavailable)
	ErrUnsupportedCurrency = fmt.Errorf("%w: currency not supported", ErrUnavailable)
)
