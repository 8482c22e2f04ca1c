package model

import (
	"time"

	"gorm.io/datatypes"
)

// Evidence is the shape shared by fragments, testimonia and anonymous fragments.
// The engine only cares about its identity; Meta carries whatever the curators attach.
type Evidence struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Meta      datatypes.JSON `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Fragment struct {
	Evidence
}

func (Fragment) TableName() string {
	return KindFragment.EvidenceTable()
}

type Testimonium struct {
	Evidence
}

func (Testimonium) TableName() string {
	return KindTestimonium.EvidenceTable()
}

// AnonymousFragment is the evidence side of an appositum link.
type AnonymousFragment struct {
	Evidence
}

func (AnonymousFragment) TableName() string {
	return KindAppositum.EvidenceTable()
}
