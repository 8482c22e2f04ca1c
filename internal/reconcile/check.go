package reconcile

import (
	"context"
	"fmt"
	"slices"

	"github.com/emrgen/rard/internal/metrics"
	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/ordering"
	"github.com/emrgen/rard/internal/store"
)

// Violation is one broken invariant found by Check.
type Violation struct {
	Rule   string `json:"rule"`
	Scope  string `json:"scope"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s [%s]: %s", v.Rule, v.Scope, v.Detail)
}

const (
	RuleWorkLinkOrder    = "work-link-order"
	RuleSingleUnknown    = "single-unknown-work"
	RuleUnknownBook      = "single-unknown-book"
	RuleBookOrder        = "book-order"
	RuleLinkOrder        = "link-order"
	RuleWorkOrder        = "work-order"
	RuleOrderInBook      = "order-in-book"
	RuleBookPosition     = "book-position-presence"
	RuleBookInWork       = "book-in-work"
	RuleDefiniteUnknown  = "definite-unknown"
	RuleExclusiveKind    = "exclusive-appositum"
	RuleOrphanedWithHold = "orphan-of-held-work"
	RuleDefiniteOrphan   = "definite-without-antiquarian"
)

// Check reads the whole graph and reports every invariant it breaks. It never writes.
func (e *Engine) Check(ctx context.Context, st store.Store) ([]Violation, error) {
	c := &checker{st: st, books: make(map[uint]*model.Book), works: make(map[uint]*model.Work)}
	if err := c.run(ctx); err != nil {
		return nil, err
	}
	metrics.Violations.Set(float64(len(c.violations)))
	return c.violations, nil
}

type checker struct {
	st         store.Store
	works      map[uint]*model.Work
	books      map[uint]*model.Book
	holders    map[uint][]*model.WorkLink
	violations []Violation
}

func (c *checker) report(rule, scope, format string, args ...any) {
	c.violations = append(c.violations, Violation{Rule: rule, Scope: scope, Detail: fmt.Sprintf(format, args...)})
}

func (c *checker) run(ctx context.Context) error {
	works, err := c.st.ListWorks(ctx)
	if err != nil {
		return err
	}
	ids := make([]uint, 0, len(works))
	for _, w := range works {
		c.works[w.ID] = w
		ids = append(ids, w.ID)
		if err := c.checkBooks(ctx, w); err != nil {
			return err
		}
	}

	c.holders = make(map[uint][]*model.WorkLink)
	if len(ids) > 0 {
		wls, err := c.st.ListWorkLinksByWorks(ctx, ids)
		if err != nil {
			return err
		}
		for _, wl := range wls {
			c.holders[wl.WorkID] = append(c.holders[wl.WorkID], wl)
		}
	}

	antiquarians, err := c.st.ListAntiquarians(ctx)
	if err != nil {
		return err
	}
	slots := make(map[uint]map[uint]workSlot, len(antiquarians))
	for _, a := range antiquarians {
		s, err := c.checkWorkLinks(ctx, a.ID)
		if err != nil {
			return err
		}
		slots[a.ID] = s
	}

	for _, kind := range model.AllKinds {
		links, err := c.st.ListLinks(ctx, kind, store.LinkFilter{})
		if err != nil {
			return err
		}
		c.checkLinks(kind, links, slots)
	}
	return nil
}

func (c *checker) checkBooks(ctx context.Context, w *model.Work) error {
	books, err := c.st.ListBooks(ctx, w.ID)
	if err != nil {
		return err
	}
	scope := fmt.Sprintf("work %d", w.ID)

	unknown := 0
	for _, b := range books {
		c.books[b.ID] = b
		if b.Unknown {
			unknown++
		}
	}
	if unknown != 1 {
		c.report(RuleUnknownBook, scope, "has %d unknown books", unknown)
	}

	sorted := slices.Clone(books)
	sortBooks(sorted)
	for i, b := range sorted {
		if b.Order != i {
			c.report(RuleBookOrder, scope, "book %d at order %d, expected %d", b.ID, b.Order, i)
		}
	}
	return nil
}

func (c *checker) checkWorkLinks(ctx context.Context, antiquarianID uint) (map[uint]workSlot, error) {
	links, err := c.st.ListWorkLinks(ctx, antiquarianID)
	if err != nil {
		return nil, err
	}
	scope := fmt.Sprintf("antiquarian %d", antiquarianID)

	unknown := 0
	slots := make(map[uint]workSlot, len(links))
	var known []int
	for _, wl := range links {
		if wl.Unknown() {
			unknown++
			slots[wl.WorkID] = workSlot{rank: ordering.Unranked, unknown: true}
			continue
		}
		slots[wl.WorkID] = workSlot{rank: wl.Order}
		known = append(known, wl.Order)
	}
	if unknown != 1 {
		c.report(RuleSingleUnknown, scope, "has %d unknown works", unknown)
	}
	if !contiguous(known) {
		c.report(RuleWorkLinkOrder, scope, "work orders %v are not 0..%d", sortedInts(known), len(known)-1)
	}
	return slots, nil
}

func (c *checker) checkLinks(kind model.EvidenceKind, links []*model.Link, slots map[uint]map[uint]workSlot) {
	byAntiquarian := make(map[uint][]*model.Link)
	var unattributed []*model.Link
	byWork := make(map[uint][]int)
	byBook := make(map[uint][]int)

	for _, l := range links {
		scope := fmt.Sprintf("%s link %d", kind, l.ID)

		if l.AntiquarianID == nil {
			unattributed = append(unattributed, l)
			if l.WorkID != nil && len(c.holders[*l.WorkID]) > 0 {
				c.report(RuleOrphanedWithHold, scope, "unattributed link on work %d which has holders", *l.WorkID)
			}
			if l.DefiniteAntiquarian {
				c.report(RuleDefiniteOrphan, scope, "definite on an antiquarian it does not reference")
			}
		} else {
			byAntiquarian[*l.AntiquarianID] = append(byAntiquarian[*l.AntiquarianID], l)
		}

		if (l.BookID == nil) != (l.OrderInBook == nil) {
			c.report(RuleBookPosition, scope, "book %v with order in book %v", l.BookID, l.OrderInBook)
		}
		if l.WorkID != nil {
			byWork[*l.WorkID] = append(byWork[*l.WorkID], l.WorkOrder)
		}
		if l.BookID != nil && l.OrderInBook != nil {
			byBook[*l.BookID] = append(byBook[*l.BookID], *l.OrderInBook)
		}
		if l.BookID != nil {
			b, ok := c.books[*l.BookID]
			if !ok || l.WorkID == nil || b.WorkID != *l.WorkID {
				c.report(RuleBookInWork, scope, "book %d is not a book of work %v", *l.BookID, l.WorkID)
			}
			if ok && b.Unknown && l.DefiniteBook {
				c.report(RuleDefiniteUnknown, scope, "definite on the unknown book")
			}
		}
		if l.WorkID != nil {
			if w, ok := c.works[*l.WorkID]; ok && w.Unknown && l.DefiniteWork {
				c.report(RuleDefiniteUnknown, scope, "definite on the unknown work")
			}
		}
		if l.Exclusive && kind != model.KindAppositum {
			c.report(RuleExclusiveKind, scope, "exclusive set on a %s link", kind)
		}
	}

	for id, positions := range byWork {
		if !contiguous(positions) {
			c.report(RuleWorkOrder, fmt.Sprintf("%s work %d", kind, id), "work orders %v", sortedInts(positions))
		}
	}
	for id, positions := range byBook {
		if !contiguous(positions) {
			c.report(RuleOrderInBook, fmt.Sprintf("%s book %d", kind, id), "orders in book %v", sortedInts(positions))
		}
	}

	for id, scoped := range byAntiquarian {
		c.checkOrder(kind, fmt.Sprintf("%s antiquarian %d", kind, id), scoped, slots[id])
	}
	if len(unattributed) > 0 {
		c.checkOrder(kind, fmt.Sprintf("%s unattributed", kind), unattributed, c.nullSlots(unattributed))
	}
}

// checkOrder verifies that the Order values are 0..n-1 and agree with the comparator.
func (c *checker) checkOrder(kind model.EvidenceKind, scope string, links []*model.Link, slots map[uint]workSlot) {
	key := linkKey(slots)
	compare := ordering.LinkComparator(kind)
	sorted := slices.Clone(links)
	slices.SortStableFunc(sorted, func(a, b *model.Link) int { return compare(key(a), key(b)) })

	for i, l := range sorted {
		if l.Order != i {
			c.report(RuleLinkOrder, scope, "link %d at order %d, expected %d", l.ID, l.Order, i)
		}
	}
}

func (c *checker) nullSlots(links []*model.Link) map[uint]workSlot {
	slots := make(map[uint]workSlot)
	for _, l := range links {
		if l.WorkID == nil {
			continue
		}
		w, ok := c.works[*l.WorkID]
		if !ok {
			continue
		}
		slot := workSlot{rank: ordering.Unranked, unknown: w.Unknown}
		if !w.Unknown {
			for _, wl := range c.holders[w.ID] {
				slot.rank = min(slot.rank, wl.Order)
			}
		}
		slots[w.ID] = slot
	}
	return slots
}

func contiguous(positions []int) bool {
	for i, p := range sortedInts(positions) {
		if p != i {
			return false
		}
	}
	return true
}

func sortedInts(v []int) []int {
	s := slices.Clone(v)
	slices.Sort(s)
	return s
}
