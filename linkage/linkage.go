// Package linkage validates the syllable chain formed by @precedes and
// @follows pairs and resolves which syllables a link toggle applies to.
package linkage

import (
	"errors"
	"slices"

	"neon/mei"
	"neon/selection"
)

// ErrNoToggleEndpoints is returned when no pair of syllables suitable for a
// link toggle could be found. Callers must treat it as a no-op.
var ErrNoToggleEndpoints = errors.New("unable to find syllables to link")

// InvalidWarning is shown when selection contains broken linkage.
const InvalidWarning = "The selected syllables include invalid linked syllable(s)!"

// Diagnostic is a user facing refusal reason. Empty means no message.
type Diagnostic string

func unlinked(el *mei.Element) bool {
	return !el.HasLink()
}

// IsLinked reports if every element carries @precedes or @follows.
func IsLinked(elements []*mei.Element) bool {
	for _, el := range elements {
		if unlinked(el) {
			return false
		}
	}
	return true
}

// HasInvalidLinkedSyllable reports if any element of the set has a link
// which is not reciprocated within the set or whose partner is not the next
// element of the set in document order. Selection order does not matter.
func HasInvalidLinkedSyllable(elements []*mei.Element) bool {
	els := mei.SortedByOrder(elements)
	return slices.ContainsFunc(els, func(el *mei.Element) bool {
		return !validLinks(el, els)
	})
}

func indexOf(elements []*mei.Element, id string) int {
	return slices.IndexFunc(elements, func(el *mei.Element) bool { return el.ID == id })
}

// validLinks checks element's own pointers against set.
func validLinks(el *mei.Element, set []*mei.Element) bool {
	if ref, ok := el.Precedes(); ok {
		idx := indexOf(set, mei.RefID(ref))
		if idx < 0 {
			return false
		}
		next := set[idx]
		back, ok := next.Follows()
		if !ok || back != mei.Ref(el.ID) {
			return false
		}
		if idx != indexOf(set, el.ID)+1 {
			return false
		}
	}
	if ref, ok := el.Follows(); ok {
		idx := indexOf(set, mei.RefID(ref))
		if idx < 0 {
			return false
		}
		fwd, ok := set[idx].Precedes()
		if !ok || fwd != mei.Ref(el.ID) {
			return false
		}
	}
	return true
}

// CanBeLinked reports if unlinked syllables may be joined. Syllables must
// follow each other directly in the page and sit on consecutive staves. Two
// syllables must both be unlinked, longer sequences must have exactly one
// unlinked syllable at either end.
func CanBeLinked(doc *mei.Document, elements []*mei.Element) bool {
	if len(elements) < 2 {
		return false
	}
	els := mei.SortedByOrder(elements)
	syllables, staves := doc.Syllables(), doc.Staves()
	for i := range len(els) - 1 {
		cur, next := els[i], els[i+1]
		if slices.Index(syllables, next)-slices.Index(syllables, cur) != 1 {
			return false
		}
		if cur.Staff == nil || next.Staff == nil {
			return false
		}
		if slices.Index(staves, next.Staff)-slices.Index(staves, cur.Staff) != 1 {
			return false
		}
	}
	if len(els) == 2 {
		return unlinked(els[0]) && unlinked(els[1])
	}
	free := -1
	for i, el := range els {
		if !unlinked(el) {
			continue
		}
		if free >= 0 {
			return false
		}
		free = i
	}
	return free == 0 || free == len(els)-1
}

// IsLinkable reports if user should be offered to link or unlink selected
// syllables. When refusal has to be explained to the user non-empty
// diagnostic is returned.
func IsLinkable(mode selection.Mode, doc *mei.Document, elements []*mei.Element) (bool, Diagnostic) {
	if len(elements) < 2 || mode != selection.ModeSyllable {
		return false, ""
	}
	if HasInvalidLinkedSyllable(elements) {
		return false, InvalidWarning
	}
	if IsLinked(elements) {
		return true, ""
	}
	return CanBeLinked(doc, elements), ""
}

// Linkable adapts IsLinkable for selection classifier.
func Linkable(doc *mei.Document) selection.LinkableFunc {
	return func(mode selection.Mode, elements []*mei.Element) bool {
		ok, _ := IsLinkable(mode, doc, elements)
		return ok
	}
}

// ToggleEndpoints returns syllables a new link should join. With two
// syllables they are returned in document order. Otherwise the single unlinked
// syllable is paired with its neighbour, which only exists when it is at
// either end of the sequence.
func ToggleEndpoints(elements []*mei.Element) (first, second *mei.Element, err error) {
	if len(elements) < 2 {
		return nil, nil, ErrNoToggleEndpoints
	}
	els := mei.SortedByOrder(elements)
	if len(els) == 2 {
		return els[0], els[1], nil
	}
	idx := slices.IndexFunc(els, unlinked)
	switch idx {
	case 0:
		return els[0], els[1], nil
	case len(els) - 1:
		return els[idx-1], els[idx], nil
	}
	return nil, nil, ErrNoToggleEndpoints
}

// InvalidSyllables checks every linked syllable of the page against its
// partners and returns unique offenders in document order. Unlike
// HasInvalidLinkedSyllable partners are looked up in the whole page.
func InvalidSyllables(doc *mei.Document) []*mei.Element {
	var (
		res  []*mei.Element
		seen = make(map[*mei.Element]bool)
	)
	for _, el := range doc.Syllables() {
		if !el.HasLink() || seen[el] {
			continue
		}
		if !validPagePair(doc, el) {
			seen[el] = true
			res = append(res, el)
		}
	}
	return res
}

// validPagePair verifies links of a syllable against the page: partner must
// exist, be a syllable, point back and be the structurally adjacent syllable.
func validPagePair(doc *mei.Document, el *mei.Element) bool {
	if ref, ok := el.Precedes(); ok {
		next := doc.ByID(mei.RefID(ref))
		if next == nil || next.Kind != mei.KindSyllable {
			return false
		}
		if back, ok := next.Follows(); !ok || back != mei.Ref(el.ID) {
			return false
		}
		if next.Pos != el.Pos+1 {
			return false
		}
	}
	if ref, ok := el.Follows(); ok {
		prev := doc.ByID(mei.RefID(ref))
		if prev == nil || prev.Kind != mei.KindSyllable {
			return false
		}
		if fwd, ok := prev.Precedes(); !ok || fwd != mei.Ref(el.ID) {
			return false
		}
		if prev.Pos != el.Pos-1 {
			return false
		}
	}
	return true
}

// SelectionType computes options menu variant for syllable selections.
func SelectionType(doc *mei.Document, elements []*mei.Element) selection.Type {
	t, err := selection.Classify(selection.ModeSyllable, elements, selection.DocumentAdjacency{Doc: doc}, Linkable(doc))
	if err != nil {
		return selection.TypeNone
	}
	return t
}
