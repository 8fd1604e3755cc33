package lock

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentityFormat(t *testing.T) {
	id := NewIdentity()

	parts := strings.Split(id, ".")
	require.Len(t, parts, 4, "identity %q", id)
	assert.Equal(t, hostname, parts[0])
	assert.Equal(t, strconv.Itoa(os.Getpid()), parts[1])
	assert.Len(t, parts[2], 36)

	ts, err := strconv.ParseInt(parts[3], 10, 64)
	require.NoError(t, err)
	assert.Positive(t, ts)
}

func TestNewIdentityUnique(t *testing.T) {
	const n = 1000

	var mu sync.Mutex
	seen := make(map[string]struct{}, n)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewIdentity()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestConfigKey(t *testing.T) {
	tests := []struct {
		namespace string
		name      string
		want      string
	}{
		{"", "R", "R"},
		{"app", "R", "app:R"},
		{"app", "jobs:nightly", "app:jobs:nightly"},
	}
	for _, tt := range tests {
		c := Config{Namespace: tt.namespace}
		if got := c.key(tt.name); got != tt.want {
			t.Errorf("key(%q) with namespace %q = %q, want %q", tt.name, tt.namespace, got, tt.want)
		}
	}
}
