package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	ClarificationStatusOpen     = "open"
	ClarificationStatusResolved = "resolved"
	ClarificationStatusExpired  = "expired"
)

// ClarificationThread tracks a question the engine asked back to the user.
// A session holds at most one open thread at a time.
type ClarificationThread struct {
	Id            uuid.UUID
	SessionId     uuid.UUID
	OriginalQuery string
	Question      string
	Options       []string
	Reason        string
	Answer        string
	Status        string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	UpdatedAt     *time.Time
	DeletedAt     *time.Time
	IsDeleted     bool
}
