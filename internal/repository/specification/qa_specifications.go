package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BySessionID filters rows belonging to one QA session
type BySessionID struct {
	SessionID uuid.UUID
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// ByTraceID filters by orchestration trace id
type ByTraceID struct {
	TraceID string
}

func (s ByTraceID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("trace_id = ?", s.TraceID)
}

// ByStatus filters by lifecycle status column
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// ByDocID filters document chunks by their source document
type ByDocID struct {
	DocID string
}

func (s ByDocID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("doc_id = ?", s.DocID)
}

// ByDocIDs filters document chunks by a set of source documents
type ByDocIDs struct {
	DocIDs []string
}

func (s ByDocIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("doc_id IN ?", s.DocIDs)
}

// OwnedBy filters sessions by owning user
type OwnedBy struct {
	UserID uuid.UUID
}

func (s OwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}
