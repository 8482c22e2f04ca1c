package store

import (
	"context"
	"errors"

	"github.com/emrgen/rard/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateAntiquarian(ctx context.Context, antiquarian *model.Antiquarian) error {
	return g.db.WithContext(ctx).Create(antiquarian).Error
}

func (g *GormStore) GetAntiquarian(ctx context.Context, id uint) (*model.Antiquarian, error) {
	var antiquarian model.Antiquarian
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&antiquarian).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &antiquarian, nil
}

func (g *GormStore) ListAntiquarians(ctx context.Context) ([]*model.Antiquarian, error) {
	var antiquarians []*model.Antiquarian
	err := g.db.WithContext(ctx).Order("sort_name, id").Find(&antiquarians).Error
	return antiquarians, err
}

// DeleteAntiquarian removes the antiquarian's evidence links and work links before the
// antiquarian itself. Works survive; the caller decides what happens to the Unknown Work.
func (g *GormStore) DeleteAntiquarian(ctx context.Context, id uint) error {
	db := g.db.WithContext(ctx)
	for _, kind := range model.AllKinds {
		if err := db.Table(kind.LinkTable()).Where("antiquarian_id = ?", id).Delete(&model.Link{}).Error; err != nil {
			return err
		}
	}

	if err := db.Where("antiquarian_id = ?", id).Delete(&model.WorkLink{}).Error; err != nil {
		return err
	}

	return db.Where("id = ?", id).Delete(&model.Antiquarian{}).Error
}

func (g *GormStore) CreateWork(ctx context.Context, work *model.Work) error {
	return g.db.WithContext(ctx).Create(work).Error
}

func (g *GormStore) GetWork(ctx context.Context, id uint) (*model.Work, error) {
	var work model.Work
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&work).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &work, nil
}

func (g *GormStore) ListWorks(ctx context.Context) ([]*model.Work, error) {
	var works []*model.Work
	err := g.db.WithContext(ctx).Order("id").Find(&works).Error
	return works, err
}

func (g *GormStore) ListWorksByIDs(ctx context.Context, ids []uint) ([]*model.Work, error) {
	works := make([]*model.Work, 0)
	if len(ids) == 0 {
		return works, nil
	}
	err := g.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&works).Error
	return works, err
}

// DeleteWork cascades to every link pointing at the work, its books and its work links.
func (g *GormStore) DeleteWork(ctx context.Context, id uint) error {
	db := g.db.WithContext(ctx)
	for _, kind := range model.AllKinds {
		if err := db.Table(kind.LinkTable()).Where("work_id = ?", id).Delete(&model.Link{}).Error; err != nil {
			return err
		}
	}

	if err := db.Where("work_id = ?", id).Delete(&model.Book{}).Error; err != nil {
		return err
	}

	if err := db.Where("work_id = ?", id).Delete(&model.WorkLink{}).Error; err != nil {
		return err
	}

	logrus.Debugf("deleted work %d", id)

	return db.Where("id = ?", id).Delete(&model.Work{}).Error
}

func (g *GormStore) CreateWorkLink(ctx context.Context, link *model.WorkLink) error {
	return g.db.WithContext(ctx).Omit("Work").Create(link).Error
}

func (g *GormStore) GetWorkLink(ctx context.Context, antiquarianID, workID uint) (*model.WorkLink, error) {
	var link model.WorkLink
	err := g.db.WithContext(ctx).
		Preload("Work").
		Where("antiquarian_id = ? AND work_id = ?", antiquarianID, workID).
		First(&link).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

func (g *GormStore) ListWorkLinks(ctx context.Context, antiquarianID uint) ([]*model.WorkLink, error) {
	var links []*model.WorkLink
	err := g.db.WithContext(ctx).
		Preload("Work").
		Where("antiquarian_id = ?", antiquarianID).
		Order("id").
		Find(&links).Error
	return links, err
}

func (g *GormStore) ListWorkLinksByWorks(ctx context.Context, workIDs []uint) ([]*model.WorkLink, error) {
	links := make([]*model.WorkLink, 0)
	if len(workIDs) == 0 {
		return links, nil
	}
	err := g.db.WithContext(ctx).
		Preload("Work").
		Where("work_id IN ?", workIDs).
		Order("id").
		Find(&links).Error
	return links, err
}

func (g *GormStore) UpdateWorkLinkOrder(ctx context.Context, id uint, order int) error {
	return g.db.WithContext(ctx).Model(&model.WorkLink{}).Where("id = ?", id).Update("order", order).Error
}

func (g *GormStore) DeleteWorkLink(ctx context.Context, id uint) error {
	return g.db.WithContext(ctx).Where("id = ?", id).Delete(&model.WorkLink{}).Error
}

func (g *GormStore) CreateBook(ctx context.Context, book *model.Book) error {
	return g.db.WithContext(ctx).Create(book).Error
}

func (g *GormStore) GetBook(ctx context.Context, id uint) (*model.Book, error) {
	var book model.Book
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&book).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &book, nil
}

func (g *GormStore) ListBooks(ctx context.Context, workID uint) ([]*model.Book, error) {
	var books []*model.Book
	err := g.db.WithContext(ctx).Where("work_id = ?", workID).Order("id").Find(&books).Error
	return books, err
}

func (g *GormStore) ListBooksByIDs(ctx context.Context, ids []uint) ([]*model.Book, error) {
	books := make([]*model.Book, 0)
	if len(ids) == 0 {
		return books, nil
	}
	err := g.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&books).Error
	return books, err
}

func (g *GormStore) UpdateBookOrder(ctx context.Context, id uint, order int) error {
	return g.db.WithContext(ctx).Model(&model.Book{}).Where("id = ?", id).Update("order", order).Error
}

func (g *GormStore) DeleteBook(ctx context.Context, id uint) error {
	db := g.db.WithContext(ctx)
	for _, kind := range model.AllKinds {
		if err := db.Table(kind.LinkTable()).Where("book_id = ?", id).Delete(&model.Link{}).Error; err != nil {
			return err
		}
	}

	return db.Where("id = ?", id).Delete(&model.Book{}).Error
}

func (g *GormStore) CreateEvidence(ctx context.Context, kind model.EvidenceKind, evidence *model.Evidence) error {
	return g.db.WithContext(ctx).Table(kind.EvidenceTable()).Create(evidence).Error
}

func (g *GormStore) GetEvidence(ctx context.Context, ref model.EvidenceRef) (*model.Evidence, error) {
	var evidence model.Evidence
	err := g.db.WithContext(ctx).Table(ref.Kind.EvidenceTable()).Where("id = ?", ref.ID).First(&evidence).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &evidence, nil
}

func (g *GormStore) ListEvidence(ctx context.Context, kind model.EvidenceKind) ([]*model.Evidence, error) {
	var evidence []*model.Evidence
	err := g.db.WithContext(ctx).Table(kind.EvidenceTable()).Order("id").Find(&evidence).Error
	return evidence, err
}

func (g *GormStore) DeleteEvidence(ctx context.Context, ref model.EvidenceRef) error {
	db := g.db.WithContext(ctx)
	if err := db.Table(ref.Kind.LinkTable()).Where("evidence_id = ?", ref.ID).Delete(&model.Link{}).Error; err != nil {
		return err
	}

	return db.Table(ref.Kind.EvidenceTable()).Where("id = ?", ref.ID).Delete(&model.Evidence{}).Error
}

func (g *GormStore) CreateLink(ctx context.Context, kind model.EvidenceKind, link *model.Link) error {
	return g.db.WithContext(ctx).Table(kind.LinkTable()).Create(link).Error
}

func (g *GormStore) GetLink(ctx context.Context, kind model.EvidenceKind, id uint) (*model.Link, error) {
	var link model.Link
	err := g.db.WithContext(ctx).Table(kind.LinkTable()).Where("id = ?", id).First(&link).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

func (g *GormStore) ListLinks(ctx context.Context, kind model.EvidenceKind, filter LinkFilter) ([]*model.Link, error) {
	links := make([]*model.Link, 0)
	err := filter.apply(g.db.WithContext(ctx).Table(kind.LinkTable())).Order("id").Find(&links).Error
	return links, err
}

func (g *GormStore) CountLinks(ctx context.Context, kind model.EvidenceKind, filter LinkFilter) (int64, error) {
	var count int64
	err := filter.apply(g.db.WithContext(ctx).Table(kind.LinkTable())).Count(&count).Error
	return count, err
}

func (g *GormStore) UpdateLinkFields(ctx context.Context, kind model.EvidenceKind, id uint, fields map[string]any) error {
	return g.db.WithContext(ctx).
		Model(&model.Link{}).
		Table(kind.LinkTable()).
		Where("id = ?", id).
		Updates(fields).Error
}

func (g *GormStore) DeleteLink(ctx context.Context, kind model.EvidenceKind, id uint) error {
	return g.db.WithContext(ctx).Table(kind.LinkTable()).Where("id = ?", id).Delete(&model.Link{}).Error
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}

func (f LinkFilter) apply(db *gorm.DB) *gorm.DB {
	if f.NullAntiquarian {
		db = db.Where("antiquarian_id IS NULL")
	} else if f.AntiquarianID != nil {
		db = db.Where("antiquarian_id = ?", *f.AntiquarianID)
	}
	if f.WorkID != nil {
		db = db.Where("work_id = ?", *f.WorkID)
	}
	if len(f.WorkIDs) > 0 {
		db = db.Where("work_id IN ?", f.WorkIDs)
	}
	if f.BookID != nil {
		db = db.Where("book_id = ?", *f.BookID)
	}
	if f.EvidenceID != nil {
		db = db.Where("evidence_id = ?", *f.EvidenceID)
	}
	return db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
