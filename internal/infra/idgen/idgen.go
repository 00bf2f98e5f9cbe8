// File: internal/infra/idgen/idgen.go
package idgen

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewTaskID returns a time-ordered identifier for queue tasks and
// dead-letter entries, so retention pruning and default listing order can
// rely on lexical order matching insertion order without a secondary index.
func NewTaskID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
