package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/enverbisevac/dmutex/lock"
	"github.com/enverbisevac/dmutex/lock/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, storetest.Suite{
		New: func(t *testing.T) lock.Store {
			return openTestStore(t, filepath.Join(t.TempDir(), "locks.db"))
		},
	})
}

func TestTwoConnectionsShareLocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks.db")
	ctx := context.Background()

	svc1 := lock.New(openTestStore(t, path), lock.WithPollInterval(10*time.Millisecond))
	svc2 := lock.New(openTestStore(t, path), lock.WithPollInterval(10*time.Millisecond))

	m1 := svc1.NewLock("R")
	require.NoError(t, m1.Lock(ctx))

	holder, found, err := svc2.CurrentHolder(ctx, "R")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, m1.ID(), holder)

	ok, err := svc2.NewLock("R").TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m1.Unlock(ctx))

	ok, err = svc2.NewLock("R").TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewDoesNotCloseCallerDB(t *testing.T) {
	owned := openTestStore(t, filepath.Join(t.TempDir(), "locks.db"))

	s := New(owned.db, WithTableName("other_locks"))
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Close())

	assert.NoError(t, owned.Ping(context.Background()))
}

const (
	helperEnvDB     = "DMUTEX_HELPER_DB"
	helperEnvMarker = "DMUTEX_HELPER_MARKER"
)

// TestHelperProcess is not a real test. It runs a critical section as a
// child process of TestCrossProcessMutualExclusion.
func TestHelperProcess(t *testing.T) {
	path := os.Getenv(helperEnvDB)
	if path == "" {
		t.Skip("helper process only")
	}
	marker := os.Getenv(helperEnvMarker)
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer s.Close()

	svc := lock.New(s, lock.WithPollInterval(20*time.Millisecond))
	err = svc.Run(ctx, "cross-process", func(context.Context) error {
		if _, err := os.Stat(marker); err == nil {
			return errors.New("someone else is running this code")
		}
		if err := os.WriteFile(marker, nil, 0o600); err != nil {
			return err
		}
		time.Sleep(300 * time.Millisecond)
		return os.Remove(marker)
	}, lock.WithTimeout(10*time.Second))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func TestCrossProcessMutualExclusion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping multi-process test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "locks.db")
	// create the schema once so children do not race on it
	openTestStore(t, path)

	cmds := make([]*exec.Cmd, 2)
	for i := range cmds {
		cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$")
		cmd.Env = append(os.Environ(),
			helperEnvDB+"="+path,
			helperEnvMarker+"="+filepath.Join(dir, "running"),
		)
		cmd.Stderr = os.Stderr
		require.NoError(t, cmd.Start())
		cmds[i] = cmd
	}

	start := time.Now()
	for i, cmd := range cmds {
		assert.NoError(t, cmd.Wait(), "helper process %d failed", i)
	}
	assert.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond,
		"critical sections should run one after the other")
}
