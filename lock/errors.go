package lock

import (
	"fmt"
	"time"

	"github.com/enverbisevac/dmutex/errors"
)

// ErrTimeout is matched by every *TimeoutError through errors.Is.
var ErrTimeout = errors.New("lock: acquisition timed out")

// TimeoutError is returned when a lock could not be acquired within the
// configured timeout. The protected work did not run.
type TimeoutError struct {
	Key     string
	Timeout time.Duration
	// Err is the last backend error observed while polling, if any.
	Err error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("lock %q: failed to obtain a lock within %s", e.Key, e.Timeout)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTimeout or another *TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	_, ok := target.(*TimeoutError)
	return ok
}

// ErrorCode implements errors.Coder.
func (e *TimeoutError) ErrorCode() errors.Code {
	return errors.CodeTimeout
}

// IsTimeout checks if err is a lock timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// AsTimeout returns err as *TimeoutError.
func AsTimeout(err error) (terr *TimeoutError, ok bool) {
	if errors.As(err, &terr) {
		return terr, true
	}
	return nil, false
}
