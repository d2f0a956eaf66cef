package rhom

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for new instances.
type IDGenerator func() string

// UUID generates random (version 4) UUIDs. This is the default.
func UUID() IDGenerator {
	return uuid.NewString
}

// UUIDv7 generates time-ordered (version 7) UUIDs, falling back to
// version 4 if the clock source fails.
func UUIDv7() IDGenerator {
	return func() string {
		id, err := uuid.NewV7()
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	}
}

// Sequence generates decimal ids counting up from start+1.
func Sequence(start int64) IDGenerator {
	var n atomic.Int64
	n.Store(start)
	return func() string {
		return strconv.FormatInt(n.Add(1), 10)
	}
}
