// Package errl wraps errors with the call site stack so that logs point at the
// place where the failure was first observed.
package errl

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errorf formats an error like fmt.Errorf (including %w wrapping) and records
// the stack at the call site.
func Errorf(format string, args ...any) error {
	return errors.WithStack(fmt.Errorf(format, args...))
}

// Error records the stack at the call site. A nil error stays nil.
func Error(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

// Stack returns the error formatted with its recorded stack, for debug logging.
func Stack(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}
