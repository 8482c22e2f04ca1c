package model

import "time"

// Link attributes one evidence item to an antiquarian and optionally a work and a book.
// The three link tables share this row shape; the kind decides the table.
//
// Order is the position among the links of the same antiquarian (or among the links with
// no antiquarian), WorkOrder the position among the links of the same work, and OrderInBook
// the position among the links of the same book. OrderInBook is nil exactly when BookID is nil.
// Exclusive is only set on appositum links; exclusive apposita are never shared through a work.
type Link struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	EvidenceID          uint      `gorm:"not null;index" json:"evidence_id"`
	AntiquarianID       *uint     `gorm:"index" json:"antiquarian_id"`
	WorkID              *uint     `gorm:"index" json:"work_id"`
	BookID              *uint     `gorm:"index" json:"book_id"`
	Order               int       `gorm:"column:order;not null;default:0" json:"order"`
	WorkOrder           int       `gorm:"not null;default:0" json:"work_order"`
	OrderInBook         *int      `json:"order_in_book"`
	DefiniteAntiquarian bool      `gorm:"not null;default:false" json:"definite_antiquarian"`
	DefiniteWork        bool      `gorm:"not null;default:false" json:"definite_work"`
	DefiniteBook        bool      `gorm:"not null;default:false" json:"definite_book"`
	Exclusive           bool      `gorm:"not null;default:false" json:"exclusive"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HeldBy reports whether the link belongs to the given antiquarian.
func (l *Link) HeldBy(antiquarianID uint) bool {
	return l.AntiquarianID != nil && *l.AntiquarianID == antiquarianID
}

// Equivalent reports whether two links make the same attribution, ignoring the antiquarian,
// the ids and the positional fields.
func (l *Link) Equivalent(o *Link) bool {
	return l.EvidenceID == o.EvidenceID &&
		sameID(l.WorkID, o.WorkID) &&
		sameID(l.BookID, o.BookID) &&
		l.DefiniteAntiquarian == o.DefiniteAntiquarian &&
		l.DefiniteWork == o.DefiniteWork &&
		l.DefiniteBook == o.DefiniteBook &&
		l.Exclusive == o.Exclusive
}

// CopyFor returns an unsaved copy of the attribution for another antiquarian.
func (l *Link) CopyFor(antiquarianID uint) *Link {
	return &Link{
		EvidenceID:          l.EvidenceID,
		AntiquarianID:       Ptr(antiquarianID),
		WorkID:              clonePtr(l.WorkID),
		BookID:              clonePtr(l.BookID),
		DefiniteAntiquarian: l.DefiniteAntiquarian,
		DefiniteWork:        l.DefiniteWork,
		DefiniteBook:        l.DefiniteBook,
		Exclusive:           l.Exclusive,
	}
}

type FragmentLink struct {
	Link
}

func (FragmentLink) TableName() string {
	return KindFragment.LinkTable()
}

type TestimoniumLink struct {
	Link
}

func (TestimoniumLink) TableName() string {
	return KindTestimonium.LinkTable()
}

type AppositumLink struct {
	Link
}

func (AppositumLink) TableName() string {
	return KindAppositum.LinkTable()
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	return Ptr(*v)
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
