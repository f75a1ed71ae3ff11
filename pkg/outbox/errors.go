package outbox

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("outbox: invalid configuration")

func invalidConfig(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, detail)
}

func truncateError(err error, maxLen int) string {
	s := err.Error()
	if maxLen > 0 && len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
