package model

import "time"

const (
	UnknownWorkName     = "Unknown Work"
	UnknownBookSubtitle = "Unknown Book"
)

// Antiquarian is an author whose lost works are reconstructed from later citations.
type Antiquarian struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	SortName  string    `gorm:"not null;default:''" json:"sort_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Antiquarian) TableName() string {
	return "antiquarians"
}

// Work is a literary work. Unknown works are placeholders owned by a single antiquarian.
type Work struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Subtitle  string    `gorm:"not null;default:''" json:"subtitle"`
	Unknown   bool      `gorm:"not null;default:false;index" json:"unknown"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Work) TableName() string {
	return "works"
}

// WorkLink is the ordered edge between an antiquarian and one of its works.
// Order is the position among the antiquarian's known works; the Unknown Work is not numbered.
type WorkLink struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AntiquarianID uint      `gorm:"not null;index:idx_work_links_antiquarian_work,unique,priority:1" json:"antiquarian_id"`
	WorkID        uint      `gorm:"not null;index:idx_work_links_antiquarian_work,unique,priority:2;index" json:"work_id"`
	Order         int       `gorm:"column:order;not null;default:0" json:"order"`
	Work          *Work     `gorm:"foreignKey:WorkID" json:"work,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (WorkLink) TableName() string {
	return "work_links"
}

// Unknown reports whether the linked work is the antiquarian's Unknown Work.
// The Work relation must be loaded.
func (w *WorkLink) Unknown() bool {
	return w.Work != nil && w.Work.Unknown
}

// Book is a numbered or titled subdivision of a work.
type Book struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WorkID    uint      `gorm:"not null;index" json:"work_id"`
	Number    *int      `json:"number,omitempty"`
	Subtitle  string    `gorm:"not null;default:''" json:"subtitle"`
	Unknown   bool      `gorm:"not null;default:false" json:"unknown"`
	Order     int       `gorm:"column:order;not null;default:0" json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}
