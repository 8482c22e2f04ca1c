package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidKind is returned when an evidence kind is not one of the known kinds.
	ErrInvalidKind = errors.New("invalid evidence kind, expected fragment, testimonium or appositum")
	// ErrInvalidEvidenceRef is returned when an evidence reference is malformed.
	ErrInvalidEvidenceRef = errors.New("invalid evidence reference, expected format is <kind>:<id>")
)

// EvidenceKind tags one of the three evidence tables and its parallel link table.
type EvidenceKind string

const (
	KindFragment    EvidenceKind = "fragment"
	KindTestimonium EvidenceKind = "testimonium"
	KindAppositum   EvidenceKind = "appositum"
)

// AllKinds lists the evidence kinds in the order reconciliation visits them.
var AllKinds = []EvidenceKind{KindFragment, KindTestimonium, KindAppositum}

type kindTables struct {
	evidence string
	link     string
}

// Kinds is the lookup table resolving a kind to its tables.
var Kinds = map[EvidenceKind]kindTables{
	KindFragment:    {evidence: "fragments", link: "fragment_links"},
	KindTestimonium: {evidence: "testimonia", link: "testimonium_links"},
	KindAppositum:   {evidence: "anonymous_fragments", link: "appositum_links"},
}

func ParseKind(s string) (EvidenceKind, error) {
	kind := EvidenceKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}

	return kind, nil
}

func (k EvidenceKind) Valid() bool {
	_, ok := Kinds[k]
	return ok
}

// EvidenceTable returns the table holding the evidence items of this kind.
func (k EvidenceKind) EvidenceTable() string {
	return Kinds[k].evidence
}

// LinkTable returns the table holding the attribution links of this kind.
func (k EvidenceKind) LinkTable() string {
	return Kinds[k].link
}

func (k EvidenceKind) String() string {
	return string(k)
}

// EvidenceRef points at one evidence item of any kind.
type EvidenceRef struct {
	Kind EvidenceKind `json:"kind"`
	ID   uint         `json:"id"`
}

func (r EvidenceRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// ParseEvidenceRef parses references like "fragment:12".
func ParseEvidenceRef(s string) (EvidenceRef, error) {
	tokens := strings.Split(s, ":")
	if len(tokens) != 2 {
		return EvidenceRef{}, ErrInvalidEvidenceRef
	}

	kind, err := ParseKind(tokens[0])
	if err != nil {
		return EvidenceRef{}, err
	}

	id, err := strconv.ParseUint(tokens[1], 10, 64)
	if err != nil || id == 0 {
		return EvidenceRef{}, ErrInvalidEvidenceRef
	}

	return EvidenceRef{Kind: kind, ID: uint(id)}, nil
}
