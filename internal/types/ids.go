package types

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID generates a prefixed UUID identifier, e.g. "notif_3f2a...".
// Prefixes make record types recognizable in logs and API payloads.
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
