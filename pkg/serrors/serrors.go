package serrors

import "fmt"

// Base is a structured error with a stable machine-readable code. Callers
// match on Code to render precise user-facing messages.
type Base struct {
	Code    string
	Message string
	Details string
}

func NewError(code, message, details string) *Base {
	return &Base{
		Code:    code,
		Message: message,
		Details: details,
	}
}

func (e *Base) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
}
