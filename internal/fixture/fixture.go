// Package fixture loads catalogues described in YAML. Every entry is applied through the
// catalogue service, so the imported graph is reconciled exactly like curator edits.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/service"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	ErrDuplicateKey = errors.New("duplicate fixture key")
	ErrUnknownKey   = errors.New("unknown fixture key")
)

type Antiquarian struct {
	Key      string `yaml:"key"`
	Name     string `yaml:"name"`
	SortName string `yaml:"sort_name"`
}

type Book struct {
	Key      string `yaml:"key"`
	Number   *int   `yaml:"number"`
	Subtitle string `yaml:"subtitle"`
}

type Work struct {
	Key          string   `yaml:"key"`
	Name         string   `yaml:"name"`
	Subtitle     string   `yaml:"subtitle"`
	Antiquarians []string `yaml:"antiquarians"`
	Books        []Book   `yaml:"books"`
}

type Evidence struct {
	Key  string             `yaml:"key"`
	Kind model.EvidenceKind `yaml:"kind"`
	Name string             `yaml:"name"`
	Meta map[string]any     `yaml:"meta"`
}

type Link struct {
	Evidence            string `yaml:"evidence"`
	Antiquarian         string `yaml:"antiquarian"`
	Work                string `yaml:"work"`
	Book                string `yaml:"book"`
	DefiniteAntiquarian bool   `yaml:"definite_antiquarian"`
	DefiniteWork        bool   `yaml:"definite_work"`
	DefiniteBook        bool   `yaml:"definite_book"`
	Exclusive           bool   `yaml:"exclusive"`
}

// Fixture is a catalogue in load order. Entries refer to each other by key.
type Fixture struct {
	Antiquarians []Antiquarian `yaml:"antiquarians"`
	Works        []Work        `yaml:"works"`
	Evidence     []Evidence    `yaml:"evidence"`
	Links        []Link        `yaml:"links"`
}

// Catalogue is the part of the catalogue service an import writes through.
type Catalogue interface {
	CreateAntiquarian(ctx context.Context, req *service.CreateAntiquarianRequest) (*model.Antiquarian, error)
	CreateWork(ctx context.Context, req *service.CreateWorkRequest) (*model.Work, error)
	CreateBook(ctx context.Context, req *service.CreateBookRequest) (*model.Book, error)
	CreateEvidence(ctx context.Context, req *service.CreateEvidenceRequest) (*model.Evidence, error)
	CreateLink(ctx context.Context, req *service.LinkRequest) (*model.Link, error)
}

// Result maps fixture keys to the ids they were created with.
type Result struct {
	Antiquarians map[string]uint
	Works        map[string]uint
	Books        map[string]uint
	Evidence     map[string]model.EvidenceRef
	Links        int
}

func Parse(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Import parses and applies a fixture.
func Import(ctx context.Context, catalogue Catalogue, r io.Reader) (*Result, error) {
	f, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return f.Apply(ctx, catalogue)
}

// Apply creates the entries of the fixture in order. It stops at the first failing entry;
// what was created before stays.
func (f *Fixture) Apply(ctx context.Context, catalogue Catalogue) (*Result, error) {
	res := &Result{
		Antiquarians: make(map[string]uint),
		Works:        make(map[string]uint),
		Books:        make(map[string]uint),
		Evidence:     make(map[string]model.EvidenceRef),
	}

	for _, a := range f.Antiquarians {
		if _, ok := res.Antiquarians[a.Key]; ok {
			return res, fmt.Errorf("%w: antiquarian %q", ErrDuplicateKey, a.Key)
		}
		created, err := catalogue.CreateAntiquarian(ctx, &service.CreateAntiquarianRequest{Name: a.Name, SortName: a.SortName})
		if err != nil {
			return res, fmt.Errorf("antiquarian %q: %w", a.Key, err)
		}
		res.Antiquarians[a.Key] = created.ID
	}

	for _, w := range f.Works {
		if _, ok := res.Works[w.Key]; ok {
			return res, fmt.Errorf("%w: work %q", ErrDuplicateKey, w.Key)
		}
		holders, err := lookupAll(res.Antiquarians, "antiquarian", w.Antiquarians)
		if err != nil {
			return res, fmt.Errorf("work %q: %w", w.Key, err)
		}
		created, err := catalogue.CreateWork(ctx, &service.CreateWorkRequest{Name: w.Name, Subtitle: w.Subtitle, AntiquarianIDs: holders})
		if err != nil {
			return res, fmt.Errorf("work %q: %w", w.Key, err)
		}
		res.Works[w.Key] = created.ID

		for _, b := range w.Books {
			if _, ok := res.Books[b.Key]; ok {
				return res, fmt.Errorf("%w: book %q", ErrDuplicateKey, b.Key)
			}
			book, err := catalogue.CreateBook(ctx, &service.CreateBookRequest{WorkID: created.ID, Number: b.Number, Subtitle: b.Subtitle})
			if err != nil {
				return res, fmt.Errorf("book %q: %w", b.Key, err)
			}
			res.Books[b.Key] = book.ID
		}
	}

	for _, e := range f.Evidence {
		if _, ok := res.Evidence[e.Key]; ok {
			return res, fmt.Errorf("%w: evidence %q", ErrDuplicateKey, e.Key)
		}
		created, err := catalogue.CreateEvidence(ctx, &service.CreateEvidenceRequest{Kind: e.Kind, Name: e.Name, Meta: e.Meta})
		if err != nil {
			return res, fmt.Errorf("evidence %q: %w", e.Key, err)
		}
		res.Evidence[e.Key] = model.EvidenceRef{Kind: e.Kind, ID: created.ID}
	}

	for i, l := range f.Links {
		req, err := res.linkRequest(l)
		if err != nil {
			return res, fmt.Errorf("link %d: %w", i, err)
		}
		if _, err := catalogue.CreateLink(ctx, req); err != nil {
			return res, fmt.Errorf("link %d (%s): %w", i, l.Evidence, err)
		}
		res.Links++
	}

	logrus.Infof("imported %d antiquarians, %d works, %d books, %d evidence items and %d links",
		len(res.Antiquarians), len(res.Works), len(res.Books), len(res.Evidence), res.Links)
	return res, nil
}

func (r *Result) linkRequest(l Link) (*service.LinkRequest, error) {
	ref, ok := r.Evidence[l.Evidence]
	if !ok {
		return nil, fmt.Errorf("%w: evidence %q", ErrUnknownKey, l.Evidence)
	}
	req := &service.LinkRequest{
		Kind:                ref.Kind,
		EvidenceID:          ref.ID,
		DefiniteAntiquarian: l.DefiniteAntiquarian,
		DefiniteWork:        l.DefiniteWork,
		DefiniteBook:        l.DefiniteBook,
		Exclusive:           l.Exclusive,
	}

	var err error
	if req.AntiquarianID, err = lookup(r.Antiquarians, "antiquarian", l.Antiquarian); err != nil {
		return nil, err
	}
	if req.WorkID, err = lookup(r.Works, "work", l.Work); err != nil {
		return nil, err
	}
	if req.BookID, err = lookup(r.Books, "book", l.Book); err != nil {
		return nil, err
	}
	return req, nil
}

// lookup resolves an optional key; the empty key is nil.
func lookup(ids map[string]uint, what, key string) (*uint, error) {
	if key == "" {
		return nil, nil
	}
	id, ok := ids[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownKey, what, key)
	}
	return &id, nil
}

func lookupAll(ids map[string]uint, what string, keys []string) ([]uint, error) {
	out := make([]uint, 0, len(keys))
	for _, key := range keys {
		id, err := lookup(ids, what, key)
		if err != nil {
			return nil, err
		}
		if id != nil {
			out = append(out, *id)
		}
	}
	return out, nil
}
