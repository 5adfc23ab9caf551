package protocol

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// GenerateGUID returns a random non-zero 64-bit session identifier.
// Each side of a connection picks its own guid independently; collision
// probability within a session universe is negligible.
func GenerateGUID() uint64 {
	for {
		id := uuid.New()
		guid := binary.LittleEndian.Uint64(id[:8])
		if guid != 0 {
			return guid
		}
	}
}
