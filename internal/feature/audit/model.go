package audit

import (
	"time"

	"catalog-admin/internal/domain"
)

// AuditModel rows are insert-only. Seq gives the append order; the ksuid key only sorts
// to the second.
type AuditModel struct {
	ID         string           `gorm:"primaryKey;type:varchar(27)"`
	Seq        uint64           `gorm:"not null;default:0;index"`
	UserID     string           `gorm:"type:varchar(32);index"`
	UserName   string           `gorm:"size:64"`
	Action     string           `gorm:"size:16;not null;index"`
	EntityType string           `gorm:"size:16;not null;index"`
	EntityID   string           `gorm:"type:varchar(32);index"`
	EntityName string           `gorm:"size:255"`
	Before     *domain.Snapshot `gorm:"serializer:json;type:text"`
	After      *domain.Snapshot `gorm:"serializer:json;type:text"`
	IPAddress  string           `gorm:"size:64"`
	Timestamp  time.Time        `gorm:"not null;index"`
}

func (AuditModel) TableName() string { return "audit_logs" }

func FromDomain(e domain.AuditEntry) AuditModel {
	return AuditModel{
		ID:         e.ID,
		Seq:        e.Seq,
		UserID:     e.UserID,
		UserName:   e.UserName,
		Action:     string(e.Action),
		EntityType: string(e.EntityType),
		EntityID:   e.EntityID,
		EntityName: e.EntityName,
		Before:     e.Before,
		After:      e.After,
		IPAddress:  e.IPAddress,
		Timestamp:  e.Timestamp,
	}
}

func (m AuditModel) ToDomain() domain.AuditEntry {
	return domain.AuditEntry{
		ID:         m.ID,
		Seq:        m.Seq,
		UserID:     m.UserID,
		UserName:   m.UserName,
		Action:     domain.Action(m.Action),
		EntityType: domain.EntityType(m.EntityType),
		EntityID:   m.EntityID,
		EntityName: m.EntityName,
		Before:     m.Before,
		After:      m.After,
		IPAddress:  m.IPAddress,
		Timestamp:  m.Timestamp.UTC(),
	}
}
