package mei

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

// ErrUnknownElement is returned when selection refers to an id which is not
// present in the document.
var ErrUnknownElement = errors.New("unknown element")

// Document is an immutable snapshot of an MEI page. It is rebuilt from the
// engine state for every editing operation and never cached across calls.
type Document struct {
	Root       *Element
	Surface    Bounds
	HasSurface bool

	all   []*Element
	byID  map[string]*Element
	kinds map[Kind][]*Element
	zones map[string]Zone
}

// ByID returns element by its xml:id or nil.
func (d *Document) ByID(id string) *Element {
	if d == nil {
		return nil
	}
	return d.byID[id]
}

// Elements returns all sequenced elements of requested kind in document order.
func (d *Document) Elements(kind Kind) []*Element {
	if d == nil {
		return nil
	}
	return d.kinds[kind]
}

// Staves returns logical staves in document order.
func (d *Document) Staves() []*Element {
	return d.Elements(KindStaff)
}

// Syllables returns all syllables in document order.
func (d *Document) Syllables() []*Element {
	return d.Elements(KindSyllable)
}

// Zone returns facsimile zone by id.
func (d *Document) Zone(id string) (Zone, bool) {
	if d == nil {
		return Zone{}, false
	}
	z, ok := d.zones[id]
	return z, ok
}

// ZoneIDs returns ids of all facsimile zones.
func (d *Document) ZoneIDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.zones))
	for id := range d.zones {
		ids = append(ids, id)
	}
	return ids
}

// Len returns number of elements in the snapshot.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.all)
}

// Resolve maps ids to elements preserving order. All unknown ids are
// reported at once.
func (d *Document) Resolve(ids []string) ([]*Element, error) {
	var (
		res = make([]*Element, 0, len(ids))
		err error
	)
	for _, id := range ids {
		el := d.ByID(id)
		if el == nil {
			err = multierr.Append(err, fmt.Errorf("%w: %q", ErrUnknownElement, id))
			continue
		}
		res = append(res, el)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// StaffPos returns position of the element's logical staff, -1 if element is
// not on a staff.
func StaffPos(el *Element) int {
	if el == nil || el.Staff == nil {
		return -1
	}
	return el.Staff.Pos
}

// CompareOrder orders elements by enclosing staff first and document order
// second.
func CompareOrder(a, b *Element) int {
	if c := StaffPos(a) - StaffPos(b); c != 0 {
		return c
	}
	return a.Order - b.Order
}

// SortedByOrder returns copy of elements sorted into document order.
func SortedByOrder(elements []*Element) []*Element {
	sorted := slices.Clone(elements)
	slices.SortStableFunc(sorted, CompareOrder)
	return sorted
}
