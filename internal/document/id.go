package document

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewProvisionalID returns a client-generated identifier used until the
// server has assigned a stable UUID. The format is deliberately not UUID
// shaped so IsProvisional can tell the two apart.
func NewProvisionalID() string {
	return fmt.Sprintf("doc-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// IsProvisional reports whether id was generated locally. Server-assigned
// identifiers are always UUID form.
func IsProvisional(id string) bool {
	return uuid.Validate(id) != nil
}
