package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Session errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Host bridge errors
	ErrHostUnavailable  = fmt.Errorf("host bridge unavailable")
	ErrEndpointNotFound = fmt.Errorf("network endpoint not found")
	ErrEmptyPassword    = fmt.Errorf("empty password")
	ErrPasswordTooLong  = fmt.Errorf("password exceeds maximum length")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
