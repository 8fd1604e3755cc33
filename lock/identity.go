package lock

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var hostname = func() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	// dots separate identity fields
	return strings.ReplaceAll(name, ".", "_")
}()

// NewIdentity returns a token identifying a single acquisition attempt:
// host, process id, a random attempt id and the unix time in seconds.
// Two attempts never share a token, even within one process at the same
// instant.
func NewIdentity() string {
	return strings.Join([]string{
		hostname,
		strconv.Itoa(os.Getpid()),
		uuid.NewString(),
		strconv.FormatInt(time.Now().Unix(), 10),
	}, ".")
}
