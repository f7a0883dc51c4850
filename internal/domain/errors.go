package domain

import (
	"fmt"

	appErrors "launcher/internal/errors"
)

func invalidStatusError(kind Kind) error {
	return appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("invalid status: %s", kind), nil)
}

func invalidTransitionError(from, to Kind) error {
	return appErrors.New(appErrors.CodeUnknown, fmt.Sprintf("cannot transition from %s to %s", from, to), nil)
}
