package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ClarificationThread struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId     uuid.UUID      `gorm:"type:uuid;not null;index"`
	OriginalQuery string         `gorm:"type:text;not null"`
	Question      string         `gorm:"type:text;not null"`
	Options       datatypes.JSON `gorm:"type:jsonb"`
	Reason        string         `gorm:"type:varchar(64)"`
	Answer        string         `gorm:"type:text"`
	Status        string         `gorm:"type:varchar(16);not null;default:'open';index"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	ResolvedAt    *time.Time
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (ClarificationThread) TableName() string {
	return "clarification_threads"
}
