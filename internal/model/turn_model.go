package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Turn struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID `gorm:"type:uuid;not null;index"`
	TraceId   string    `gorm:"type:varchar(64);index"`

	Query       string         `gorm:"type:text;not null"`
	Answer      string         `gorm:"type:text"`
	Route       string         `gorm:"type:varchar(32);index"`
	Mode        string         `gorm:"type:varchar(8)"`
	Status      string         `gorm:"type:varchar(32);not null"`
	Confidence  float64        `gorm:"type:double precision"`
	Citations   datatypes.JSON `gorm:"type:jsonb"`
	SubProblems datatypes.JSON `gorm:"type:jsonb"`

	Summary  string         `gorm:"type:text"`
	Entities datatypes.JSON `gorm:"type:jsonb"`
	Tags     datatypes.JSON `gorm:"type:jsonb"`

	FallbackUsed  bool   `gorm:"default:false"`
	DegradedFrom  string `gorm:"type:varchar(8)"`
	LatencyMillis int64

	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Turn) TableName() string {
	return "turns"
}
