// Package event defines the typed change events emitted by every mutation of the
// hierarchy or the link tables. The reconciliation dispatcher consumes them inside the
// mutating transaction; the queue publishes them once the transaction has committed.
package event

import (
	"encoding/json"
	"time"

	"github.com/emrgen/rard/internal/model"
	"github.com/google/uuid"
)

type Event interface {
	// Name identifies the event kind in logs, metrics and published envelopes.
	Name() string
}

type AntiquarianCreated struct {
	AntiquarianID uint `json:"antiquarian_id"`
}

func (AntiquarianCreated) Name() string { return "antiquarian.created" }

// AntiquarianDeleted carries the works the antiquarian held so their indices can be repaired.
type AntiquarianDeleted struct {
	AntiquarianID uint   `json:"antiquarian_id"`
	WorkIDs       []uint `json:"work_ids"`
}

func (AntiquarianDeleted) Name() string { return "antiquarian.deleted" }

type WorkCreated struct {
	WorkID uint `json:"work_id"`
}

func (WorkCreated) Name() string { return "work.created" }

// WorkDeleted carries the antiquarians that held the work.
type WorkDeleted struct {
	WorkID         uint   `json:"work_id"`
	AntiquarianIDs []uint `json:"antiquarian_ids"`
}

func (WorkDeleted) Name() string { return "work.deleted" }

type AssociationAction string

const (
	WorkAdded   AssociationAction = "added"
	WorkRemoved AssociationAction = "removed"
)

// WorkAssociationChanged is emitted when an antiquarian gains or loses a work.
type WorkAssociationChanged struct {
	AntiquarianID uint              `json:"antiquarian_id"`
	WorkID        uint              `json:"work_id"`
	Action        AssociationAction `json:"action"`
}

func (WorkAssociationChanged) Name() string { return "work.association_changed" }

// WorkReordered is emitted when a work is moved inside an antiquarian.
type WorkReordered struct {
	AntiquarianID uint `json:"antiquarian_id"`
}

func (WorkReordered) Name() string { return "work.reordered" }

type BookCreated struct {
	WorkID uint `json:"work_id"`
	BookID uint `json:"book_id"`
}

func (BookCreated) Name() string { return "book.created" }

type BookReordered struct {
	WorkID uint `json:"work_id"`
}

func (BookReordered) Name() string { return "book.reordered" }

type BookDeleted struct {
	WorkID uint `json:"work_id"`
	BookID uint `json:"book_id"`
}

func (BookDeleted) Name() string { return "book.deleted" }

type LinkCreated struct {
	Kind model.EvidenceKind `json:"kind"`
	Link model.Link         `json:"link"`
}

func (LinkCreated) Name() string { return "link.created" }

// LinkUpdated carries the row before and after the edit so both scopes can be repaired.
type LinkUpdated struct {
	Kind   model.EvidenceKind `json:"kind"`
	Before model.Link         `json:"before"`
	After  model.Link         `json:"after"`
}

func (LinkUpdated) Name() string { return "link.updated" }

type LinkDeleted struct {
	Kind model.EvidenceKind `json:"kind"`
	Link model.Link         `json:"link"`
}

func (LinkDeleted) Name() string { return "link.deleted" }

type MoveScope string

const (
	ScopeWork MoveScope = "work"
	ScopeBook MoveScope = "book"
)

// LinkMoved is emitted after a link was repositioned inside its work or its book.
type LinkMoved struct {
	Kind  model.EvidenceKind `json:"kind"`
	Scope MoveScope          `json:"scope"`
	Link  model.Link         `json:"link"`
}

func (LinkMoved) Name() string { return "link.moved" }

// LinkSetChanged is emitted by bulk edits of the evidence set of an antiquarian, or of the
// antiquarian set of an evidence item.
type LinkSetChanged struct {
	Kind    model.EvidenceKind `json:"kind"`
	Added   []model.Link       `json:"added"`
	Removed []model.Link       `json:"removed"`
}

func (LinkSetChanged) Name() string { return "link.set_changed" }

type EvidenceDeleted struct {
	Ref   model.EvidenceRef `json:"ref"`
	Links []model.Link      `json:"links"`
}

func (EvidenceDeleted) Name() string { return "evidence.deleted" }

// Envelope is the published form of an event.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEnvelope(e Event) (*Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		ID:         uuid.New(),
		Name:       e.Name(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}, nil
}
