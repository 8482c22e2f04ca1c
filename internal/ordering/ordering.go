// Package ordering holds the comparison functions behind every positional index.
//
// Each scope has its own named comparator so that the tie-break rules are visible and
// testable on their own:
//
//   - CompareWorkLinks orders the works of one antiquarian (Unknown Work last).
//   - CompareBooks orders the books of one work (Unknown Book last, ties by number).
//   - CompareFragmentLinks and CompareTestimoniumLinks order the links of one antiquarian,
//     or the unattributed links. Fragments and apposita put the Unknown Work after the known
//     works; testimonia put work-less links first and the Unknown Work before known works.
//   - ComparePositions orders the links of one work or one book by their current position.
//   - CompareBookGroups orders the links of one work grouped by book.
package ordering

import (
	"cmp"
	"math"

	"github.com/emrgen/rard/internal/model"
)

// Unranked is the rank of a work that has no association order in the current scope.
const Unranked = math.MaxInt

// WorkLinkKey is the sort key of a work inside one antiquarian.
type WorkLinkKey struct {
	Order   int
	Unknown bool
}

// CompareWorkLinks sorts known works by their order and the Unknown Work last.
// Equal keys compare equal so a stable sort keeps the load order.
func CompareWorkLinks(a, b WorkLinkKey) int {
	if c := compareBool(a.Unknown, b.Unknown); c != 0 {
		return c
	}
	return cmp.Compare(a.Order, b.Order)
}

// BookKey is the sort key of a book inside its work.
type BookKey struct {
	ID      uint
	Order   int
	Number  *int
	Unknown bool
}

// CompareBooks sorts books by order with the Unknown Book last; ties are broken by number
// (books without a number after numbered ones) and finally by id.
func CompareBooks(a, b BookKey) int {
	if c := compareBool(a.Unknown, b.Unknown); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Order, b.Order); c != 0 {
		return c
	}
	if c := compareOptional(a.Number, b.Number); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// LinkKey is the sort key of a link inside an antiquarian scope.
type LinkKey struct {
	ID          uint
	HasWork     bool
	UnknownWork bool
	// WorkRank is the association order of the link's work, Unranked when there is none.
	WorkRank  int
	WorkID    uint
	WorkOrder int
	// Order is the current position, used only to keep work-less links stable.
	Order int
}

const (
	groupKnown = iota
	groupUnknown
	groupNoWork
)

func group(k LinkKey) int {
	switch {
	case !k.HasWork:
		return groupNoWork
	case k.UnknownWork:
		return groupUnknown
	default:
		return groupKnown
	}
}

// CompareFragmentLinks orders fragment and appositum links: known works in association order,
// then the Unknown Work, then links without a work.
func CompareFragmentLinks(a, b LinkKey) int {
	if c := cmp.Compare(group(a), group(b)); c != 0 {
		return c
	}
	return compareWithinGroup(a, b)
}

// testimoniumGroup reverses the fragment convention: no work, Unknown Work, known works.
func testimoniumGroup(k LinkKey) int {
	switch group(k) {
	case groupNoWork:
		return 0
	case groupUnknown:
		return 1
	default:
		return 2
	}
}

// CompareTestimoniumLinks orders testimonium links: links without a work first, then the
// Unknown Work, then known works in association order.
func CompareTestimoniumLinks(a, b LinkKey) int {
	if c := cmp.Compare(testimoniumGroup(a), testimoniumGroup(b)); c != 0 {
		return c
	}
	return compareWithinGroup(a, b)
}

// LinkComparator returns the antiquarian-scope comparator for a kind.
func LinkComparator(kind model.EvidenceKind) func(a, b LinkKey) int {
	if kind == model.KindTestimonium {
		return CompareTestimoniumLinks
	}
	return CompareFragmentLinks
}

func compareWithinGroup(a, b LinkKey) int {
	if !a.HasWork && !b.HasWork {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
	if c := cmp.Compare(a.WorkRank, b.WorkRank); c != 0 {
		return c
	}
	if c := cmp.Compare(a.WorkID, b.WorkID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.WorkOrder, b.WorkOrder); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// PositionKey is the sort key of a link inside a work or a book.
type PositionKey struct {
	ID       uint
	Position *int
}

// ComparePositions sorts by current position, links without one last, then by id.
func ComparePositions(a, b PositionKey) int {
	if c := compareOptional(a.Position, b.Position); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// BookGroupKey is the sort key used to regroup the links of a work by book.
type BookGroupKey struct {
	ID uint
	// BookRank is the order of the link's book, Unranked when it has none.
	BookRank    int
	OrderInBook *int
	WorkOrder   int
}

// CompareBookGroups sorts links by the order of their book (links without a book last),
// then by position inside the book, then by their previous work order.
func CompareBookGroups(a, b BookGroupKey) int {
	if c := cmp.Compare(a.BookRank, b.BookRank); c != 0 {
		return c
	}
	if c := compareOptional(a.OrderInBook, b.OrderInBook); c != 0 {
		return c
	}
	if c := cmp.Compare(a.WorkOrder, b.WorkOrder); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// compareBool sorts false before true.
func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

// compareOptional sorts present values ascending and missing values last.
func compareOptional(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*a, *b)
	}
}
