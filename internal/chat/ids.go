package chat

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// newTurnID returns a ULID for t. The process-wide monotonic entropy keeps
// ids strictly increasing within one millisecond.
func newTurnID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}
