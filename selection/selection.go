// Package selection classifies the set of elements chosen by the user and
// answers structural questions about it (adjacency, shared containers,
// linkage) without touching any live presentation state.
package selection

import (
	"fmt"
	"slices"

	"neon/mei"
)

// Selection is an immutable snapshot of what the user has selected. It is
// owned by the presentation layer and passed in for every operation.
type Selection struct {
	Mode Mode     `json:"mode"`
	IDs  []string `json:"ids"`
}

// Resolve maps selected ids to document elements.
func (s Selection) Resolve(doc *mei.Document) ([]*mei.Element, error) {
	if !s.Mode.IsValid() {
		return nil, fmt.Errorf("%s: %w", s.Mode, ErrUnsupportedMode)
	}
	return doc.Resolve(s.IDs)
}

// ModeKind returns element kind selected as a unit in requested mode.
func ModeKind(mode Mode) (mei.Kind, bool) {
	switch mode {
	case ModeStaff:
		return mei.KindStaff, true
	case ModeSyllable:
		return mei.KindSyllable, true
	case ModeNeume:
		return mei.KindNeume, true
	case ModeNc:
		return mei.KindNC, true
	}
	return mei.KindOther, false
}

// Adjacency answers structural questions which in the browser are resolved
// against rendered SVG. Presentation layers may supply their own.
type Adjacency interface {
	// AreAdjacent reports if elements occupy consecutive positions in the
	// sequence of elements selected in this mode.
	AreAdjacent(mode Mode, elements []*mei.Element) bool
	// SharedLogicalParent reports if all elements belong to the same
	// immediate logical container.
	SharedLogicalParent(mode Mode, elements []*mei.Element) bool
}

// DocumentAdjacency implements Adjacency over document snapshot.
type DocumentAdjacency struct {
	Doc *mei.Document
}

// AreAdjacent implements Adjacency.
func (a DocumentAdjacency) AreAdjacent(mode Mode, elements []*mei.Element) bool {
	kind, ok := ModeKind(mode)
	if !ok || len(elements) == 0 {
		return false
	}
	seq := a.Doc.Elements(kind)
	positions := make([]int, 0, len(elements))
	for _, el := range elements {
		if el.Kind != kind || el.Pos < 0 || el.Pos >= len(seq) || seq[el.Pos] != el {
			return false
		}
		positions = append(positions, el.Pos)
	}
	slices.Sort(positions)
	for i := 1; i < len(positions); i++ {
		if positions[i]-positions[i-1] != 1 {
			return false
		}
	}
	return true
}

// SharedLogicalParent implements Adjacency.
func (a DocumentAdjacency) SharedLogicalParent(mode Mode, elements []*mei.Element) bool {
	if len(elements) == 0 {
		return false
	}
	var parent func(*mei.Element) *mei.Element
	switch mode {
	case ModeSyllable:
		parent = func(el *mei.Element) *mei.Element { return el.Staff }
	case ModeNeume:
		parent = func(el *mei.Element) *mei.Element { return el.Parent.Closest(mei.KindSyllable) }
	case ModeNc:
		parent = func(el *mei.Element) *mei.Element { return el.Parent.Closest(mei.KindNeume) }
	default:
		return false
	}
	first := parent(elements[0])
	if first == nil {
		return false
	}
	for _, el := range elements[1:] {
		if parent(el) != first {
			return false
		}
	}
	return true
}

// IsGroupable checks if selected elements can be grouped. Neumes of the same
// syllable are already grouped.
func IsGroupable(mode Mode, elements []*mei.Element, adj Adjacency) bool {
	if len(elements) < 2 {
		return false
	}
	if mode == ModeNeume && adj.SharedLogicalParent(mode, elements) {
		return false
	}
	return adj.AreAdjacent(mode, elements)
}

// LinkedWarning is shown when structural action is refused because it
// involves linked syllables.
const LinkedWarning = "The action involves linked syllables, please untoggle them first"

// ContainsLinked reports if any selected element belongs to a syllable which
// is part of a linkage pair.
func ContainsLinked(mode Mode, elements []*mei.Element) bool {
	for _, el := range elements {
		var syllable *mei.Element
		switch mode {
		case ModeSyllable:
			syllable = el
		case ModeNeume, ModeNc:
			syllable = el.Closest(mei.KindSyllable)
		default:
			return false
		}
		if syllable != nil && syllable.HasLink() {
			return true
		}
	}
	return false
}

// LinkableFunc reports if elements may be linked or unlinked.
type LinkableFunc func(mode Mode, elements []*mei.Element) bool

// Classify computes selection type. It is a pure decision function, linkage
// knowledge is supplied by the caller.
func Classify(mode Mode, elements []*mei.Element, adj Adjacency, linkable LinkableFunc) (Type, error) {
	if !mode.IsValid() {
		return TypeNone, fmt.Errorf("%s: %w", mode, ErrUnsupportedMode)
	}
	if len(elements) == 0 {
		return TypeNone, nil
	}
	single := len(elements) == 1

	switch mode {
	case ModeSyllable:
		switch {
		case single && elements[0].Syl() == nil:
			return TypeNoSyl, nil
		case single:
			return TypeSingleSyllable, nil
		case linkable != nil && linkable(mode, elements):
			return TypeLinkable, nil
		case IsGroupable(mode, elements, adj):
			return TypeMultiSyllable, nil
		}
	case ModeStaff:
		switch {
		case single:
			return TypeSingleStaff, nil
		case IsGroupable(mode, elements, adj):
			return TypeMultiStaff, nil
		}
	case ModeNeume:
		switch {
		case single:
			return TypeSingleNeume, nil
		case IsGroupable(mode, elements, adj):
			return TypeMultiNeume, nil
		}
	case ModeNc:
		switch {
		case single:
			return TypeSingleNc, nil
		case len(elements) == 2 && adj.SharedLogicalParent(mode, elements) && adj.AreAdjacent(mode, elements):
			return TypeLigature, nil
		case IsGroupable(mode, elements, adj):
			return TypeMultiNc, nil
		}
	case ModeBBox:
		if single {
			return TypeBBox, nil
		}
	case ModeLayerElement:
		if single && elements[0].Kind.IsLayerElement() {
			return TypeLayerElement, nil
		}
	}
	return TypeDefault, nil
}
