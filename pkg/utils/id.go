package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a 32-char hex id (uuid v4 without dashes), matching varchar(32) columns.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
