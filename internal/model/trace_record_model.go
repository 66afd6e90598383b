package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TraceRecord struct {
	Id        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TraceId   string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	SessionId uuid.UUID  `gorm:"type:uuid;not null;index"`
	TurnId    *uuid.UUID `gorm:"type:uuid"`

	Query    string `gorm:"type:text"`
	Route    string `gorm:"type:varchar(32)"`
	Mode     string `gorm:"type:varchar(8)"`
	Status   string `gorm:"type:varchar(32);not null;index"`
	Attempts int    `gorm:"default:1"`

	PlanNodes datatypes.JSON `gorm:"type:jsonb"`
	NodeRuns  datatypes.JSON `gorm:"type:jsonb"`

	FallbackUsed bool   `gorm:"default:false"`
	DegradedFrom string `gorm:"type:varchar(8)"`

	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (TraceRecord) TableName() string {
	return "trace_records"
}
