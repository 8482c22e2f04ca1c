package store

import (
	"context"

	"github.com/emrgen/rard/internal/model"
)

type Store interface {
	HierarchyStore
	EvidenceStore
	LinkStore
	// Transaction runs f inside one database transaction; any error rolls everything back.
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type HierarchyStore interface {
	// CreateAntiquarian creates a new antiquarian.
	CreateAntiquarian(ctx context.Context, antiquarian *model.Antiquarian) error
	// GetAntiquarian retrieves an antiquarian by ID.
	GetAntiquarian(ctx context.Context, id uint) (*model.Antiquarian, error)
	// ListAntiquarians retrieves all antiquarians ordered by sort name.
	ListAntiquarians(ctx context.Context) ([]*model.Antiquarian, error)
	// DeleteAntiquarian deletes an antiquarian with its work links and evidence links.
	DeleteAntiquarian(ctx context.Context, id uint) error

	// CreateWork creates a new work.
	CreateWork(ctx context.Context, work *model.Work) error
	// GetWork retrieves a work by ID.
	GetWork(ctx context.Context, id uint) (*model.Work, error)
	// ListWorks retrieves all works ordered by ID.
	ListWorks(ctx context.Context) ([]*model.Work, error)
	// ListWorksByIDs retrieves the works with the given IDs.
	ListWorksByIDs(ctx context.Context, ids []uint) ([]*model.Work, error)
	// DeleteWork deletes a work with its books, work links and evidence links.
	DeleteWork(ctx context.Context, id uint) error

	// CreateWorkLink associates a work with an antiquarian.
	CreateWorkLink(ctx context.Context, link *model.WorkLink) error
	// GetWorkLink retrieves the association between an antiquarian and a work.
	GetWorkLink(ctx context.Context, antiquarianID, workID uint) (*model.WorkLink, error)
	// ListWorkLinks retrieves an antiquarian's work links in ID order, with the works loaded.
	ListWorkLinks(ctx context.Context, antiquarianID uint) ([]*model.WorkLink, error)
	// ListWorkLinksByWorks retrieves the work links of the given works, with the works loaded.
	ListWorkLinksByWorks(ctx context.Context, workIDs []uint) ([]*model.WorkLink, error)
	// UpdateWorkLinkOrder sets the position of a work link.
	UpdateWorkLinkOrder(ctx context.Context, id uint, order int) error
	// DeleteWorkLink deletes a work link by ID.
	DeleteWorkLink(ctx context.Context, id uint) error

	// CreateBook creates a new book.
	CreateBook(ctx context.Context, book *model.Book) error
	// GetBook retrieves a book by ID.
	GetBook(ctx context.Context, id uint) (*model.Book, error)
	// ListBooks retrieves the books of a work in ID order.
	ListBooks(ctx context.Context, workID uint) ([]*model.Book, error)
	// ListBooksByIDs retrieves the books with the given IDs.
	ListBooksByIDs(ctx context.Context, ids []uint) ([]*model.Book, error)
	// UpdateBookOrder sets the position of a book.
	UpdateBookOrder(ctx context.Context, id uint, order int) error
	// DeleteBook deletes a book with its evidence links.
	DeleteBook(ctx context.Context, id uint) error
}

type EvidenceStore interface {
	// CreateEvidence creates a new evidence item of the given kind.
	CreateEvidence(ctx context.Context, kind model.EvidenceKind, evidence *model.Evidence) error
	// GetEvidence retrieves an evidence item.
	GetEvidence(ctx context.Context, ref model.EvidenceRef) (*model.Evidence, error)
	// ListEvidence retrieves all evidence items of a kind.
	ListEvidence(ctx context.Context, kind model.EvidenceKind) ([]*model.Evidence, error)
	// DeleteEvidence deletes an evidence item with its links.
	DeleteEvidence(ctx context.Context, ref model.EvidenceRef) error
}

type LinkStore interface {
	// CreateLink creates a new link of the given kind.
	CreateLink(ctx context.Context, kind model.EvidenceKind, link *model.Link) error
	// GetLink retrieves a link by ID.
	GetLink(ctx context.Context, kind model.EvidenceKind, id uint) (*model.Link, error)
	// ListLinks retrieves the links matching the filter in ID order.
	ListLinks(ctx context.Context, kind model.EvidenceKind, filter LinkFilter) ([]*model.Link, error)
	// CountLinks counts the links matching the filter.
	CountLinks(ctx context.Context, kind model.EvidenceKind, filter LinkFilter) (int64, error)
	// UpdateLinkFields updates the given columns of a link.
	UpdateLinkFields(ctx context.Context, kind model.EvidenceKind, id uint, fields map[string]any) error
	// DeleteLink deletes a link by ID.
	DeleteLink(ctx context.Context, kind model.EvidenceKind, id uint) error
}

// LinkFilter selects links. Empty filters match every link of the kind.
type LinkFilter struct {
	AntiquarianID   *uint
	NullAntiquarian bool
	WorkID          *uint
	WorkIDs         []uint
	BookID          *uint
	EvidenceID      *uint
}

// AntiquarianScope returns the filter for one antiquarian, or for the unattributed
// links when antiquarianID is nil.
func AntiquarianScope(antiquarianID *uint) LinkFilter {
	if antiquarianID == nil {
		return LinkFilter{NullAntiquarian: true}
	}
	return LinkFilter{AntiquarianID: antiquarianID}
}
