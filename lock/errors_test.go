package lock

import (
	"errors"
	"fmt"
	"testing"
	"time"

	dmerrors "github.com/enverbisevac/dmutex/errors"
	"github.com/stretchr/testify/assert"
)

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Key: "R", Timeout: 100 * time.Millisecond}
	assert.Equal(t, `lock "R": failed to obtain a lock within 100ms`, err.Error())

	cause := errors.New("connection refused")
	err = &TimeoutError{Key: "R", Timeout: time.Second, Err: cause}
	assert.Equal(t, `lock "R": failed to obtain a lock within 1s: connection refused`, err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("nightly job: %w", err)
	assert.True(t, IsTimeout(wrapped))
	assert.ErrorIs(t, wrapped, &TimeoutError{})
	assert.Equal(t, dmerrors.CodeTimeout, dmerrors.AsCode(wrapped))

	got, ok := AsTimeout(wrapped)
	assert.True(t, ok)
	assert.Same(t, err, got)

	_, ok = AsTimeout(cause)
	assert.False(t, ok)
	assert.False(t, IsTimeout(cause))
}
