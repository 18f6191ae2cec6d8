package credential

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a credential id is unknown to the pool.
var ErrNotFound = errors.New("credential not found")

// AllExhaustedError means every credential for the provider is disabled,
// unhealthy, cooling off, or already failed this request.
type AllExhaustedError struct {
	Provider   string
	Total      int
	Disabled   int
	Unhealthy  int
	CoolingOff int
}

func (e *AllExhaustedError) Error() string {
	return fmt.Sprintf(
		"all %d credentials exhausted for provider %s (disabled=%d unhealthy=%d cooling_off=%d)",
		e.Total, e.Provider, e.Disabled, e.Unhealthy, e.CoolingOff,
	)
}

// IsAllExhausted reports whether err is an AllExhaustedError.
func IsAllExhausted(err error) bool {
	var target *AllExhaustedError
	return errors.As(err, &target)
}
