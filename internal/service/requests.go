package service

import (
	"errors"

	"github.com/emrgen/rard/internal/event"
	"github.com/emrgen/rard/internal/model"
	"github.com/go-playground/validator/v10"
)

// requestValidate checks the field constraints of every request.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("evidencekind", func(fl validator.FieldLevel) bool {
		return model.EvidenceKind(fl.Field().String()).Valid()
	})
	_ = requestValidate.RegisterValidation("movescope", func(fl validator.FieldLevel) bool {
		scope := event.MoveScope(fl.Field().String())
		return scope == event.ScopeWork || scope == event.ScopeBook
	})
}

// validateRequest runs the tag constraints and reports the first failing field.
func validateRequest(req any) error {
	err := requestValidate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Tag() == "evidencekind" {
			return invalid(fe.Field(), model.ErrInvalidKind)
		}
		return invalid(fe.Field(), ErrInvalidInput)
	}
	return err
}

type CreateAntiquarianRequest struct {
	Name     string `json:"name" validate:"required,max=128"`
	SortName string `json:"sort_name" validate:"max=128"`
}

type CreateWorkRequest struct {
	Name     string `json:"name" validate:"required,max=256"`
	Subtitle string `json:"subtitle" validate:"max=256"`
	// AntiquarianIDs are associated with the new work, in order.
	AntiquarianIDs []uint `json:"antiquarian_ids" validate:"dive,required"`
}

type CreateBookRequest struct {
	WorkID   uint   `json:"work_id" validate:"required"`
	Number   *int   `json:"number" validate:"omitempty,gte=0"`
	Subtitle string `json:"subtitle" validate:"max=256"`
}

type CreateEvidenceRequest struct {
	Kind model.EvidenceKind `json:"kind" validate:"required,evidencekind"`
	Name string             `json:"name" validate:"required,max=256"`
	Meta map[string]any     `json:"meta"`
}

// LinkRequest describes the attribution a link makes. The same shape creates a link and
// replaces the attribution of an existing one.
type LinkRequest struct {
	Kind                model.EvidenceKind `json:"kind" validate:"required,evidencekind"`
	EvidenceID          uint               `json:"evidence_id" validate:"required"`
	AntiquarianID       *uint              `json:"antiquarian_id"`
	WorkID              *uint              `json:"work_id"`
	BookID              *uint              `json:"book_id"`
	DefiniteAntiquarian bool               `json:"definite_antiquarian"`
	DefiniteWork        bool               `json:"definite_work"`
	DefiniteBook        bool               `json:"definite_book"`
	Exclusive           bool               `json:"exclusive"`
}

func (r *LinkRequest) link() *model.Link {
	return &model.Link{
		EvidenceID:          r.EvidenceID,
		AntiquarianID:       r.AntiquarianID,
		WorkID:              r.WorkID,
		BookID:              r.BookID,
		DefiniteAntiquarian: r.DefiniteAntiquarian,
		DefiniteWork:        r.DefiniteWork,
		DefiniteBook:        r.DefiniteBook,
		Exclusive:           r.Exclusive,
	}
}

type MoveLinkRequest struct {
	Kind     model.EvidenceKind `json:"kind" validate:"required,evidencekind"`
	LinkID   uint               `json:"link_id" validate:"required"`
	Scope    event.MoveScope    `json:"scope" validate:"required,movescope"`
	Position int                `json:"position" validate:"gte=0"`
}
