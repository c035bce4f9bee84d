package util

import (
	"github.com/google/uuid"
)

// UUIDGenerator matches the signature of the uuid library's generation
// functions. Injecting it lets tests produce deterministic OperationKey
// values instead of depending on uuid.NewRandom's entropy source.
type UUIDGenerator func() (uuid.UUID, error)

var _ UUIDGenerator = uuid.NewRandom

// NewSequentialUUIDGenerator returns a UUIDGenerator that hands out
// deterministic, strictly increasing UUIDs for use in tests that need to
// assert on the exact OperationKey seen by a fake backend or put handler.
func NewSequentialUUIDGenerator() UUIDGenerator {
	var next uint64
	return func() (uuid.UUID, error) {
		next++
		var id uuid.UUID
		id[8], id[9], id[10], id[11] = 0xDE, 0xAD, 0xBE, 0xEF
		for i := 0; i < 8; i++ {
			id[15-i] = byte(next >> (8 * i))
		}
		return id, nil
	}
}
