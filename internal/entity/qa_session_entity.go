package entity

import (
	"time"

	"github.com/google/uuid"
)

type QASession struct {
	Id        uuid.UUID
	UserId    *uuid.UUID // nil when auth is disabled
	Title     string
	DocScope  []string
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
