package utils

import (
	"fmt"

	"github.com/polyglotlab/sosr/pkg/common/uuid"
)

// Redis key layout for live kernel sessions.

func SessionHeartName(id uuid.UUID) string {
	return fmt.Sprintf("sosr-session-heart-%s", id.String())
}

func SessionLockName(id uuid.UUID) string {
	return fmt.Sprintf("sosr-session-lock-%s", id.String())
}
