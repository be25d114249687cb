package action

import (
	"slices"

	"neon/linkage"
	"neon/mei"
)

// Page wide corrections. Every one of them produces a single chain or a
// refusal when there is nothing to fix.

// RemoveEmptySyllables removes syllables without neumes.
func RemoveEmptySyllables(doc *mei.Document) (Chain, error) {
	var chain Chain
	for _, syllable := range doc.Syllables() {
		if len(syllable.Descendants(mei.KindNeume)) == 0 {
			chain = append(chain, Remove{ElementID: syllable.ID})
		}
	}
	if len(chain) == 0 {
		return nil, refuse("No empty syllables found")
	}
	return chain, nil
}

// RemoveEmptyNeumes removes neumes without components.
func RemoveEmptyNeumes(doc *mei.Document) (Chain, error) {
	var chain Chain
	for _, neume := range doc.Elements(mei.KindNeume) {
		if len(neume.Descendants(mei.KindNC)) == 0 {
			chain = append(chain, Remove{ElementID: neume.ID})
		}
	}
	if len(chain) == 0 {
		return nil, refuse("No empty Neumes found")
	}
	return chain, nil
}

// OutOfBoundsZones returns ids of zones with any coordinate outside of page
// surface.
func OutOfBoundsZones(doc *mei.Document) map[string]bool {
	res := make(map[string]bool)
	for _, id := range doc.ZoneIDs() {
		z, _ := doc.Zone(id)
		if outside(z.Ulx, doc.Surface.Lrx) || outside(z.Lrx, doc.Surface.Lrx) ||
			outside(z.Uly, doc.Surface.Lry) || outside(z.Lry, doc.Surface.Lry) {
			res[id] = true
		}
	}
	return res
}

func outside(coord, limit float64) bool {
	return coord < 0 || coord > limit
}

// OutOfBoundsGlyphs returns glyphs whose zones are outside of page surface
// in document order.
func OutOfBoundsGlyphs(doc *mei.Document) []*mei.Element {
	if !doc.HasSurface {
		return nil
	}
	zones := OutOfBoundsZones(doc)
	var glyphs []*mei.Element
	for _, kind := range []mei.Kind{mei.KindNC, mei.KindDivLine, mei.KindClef, mei.KindAccid} {
		for _, el := range doc.Elements(kind) {
			if facs := el.Facs(); facs != "" && zones[facs] {
				glyphs = append(glyphs, el)
			}
		}
	}
	slices.SortStableFunc(glyphs, func(a, b *mei.Element) int { return a.Order - b.Order })
	return glyphs
}

// RemoveOutOfBounds removes glyphs drawn outside of the page.
func RemoveOutOfBounds(doc *mei.Document) (Chain, error) {
	if !doc.HasSurface {
		return nil, refuse("Page has no surface dimensions")
	}
	glyphs := OutOfBoundsGlyphs(doc)
	if len(glyphs) == 0 {
		return nil, refuse("There are no out-of-bound glyphs to remove.")
	}
	return perElement(glyphs, func(id string) Action { return Remove{ElementID: id} }), nil
}

func ligated(nc *mei.Element) bool {
	v, _ := nc.Attr("ligated")
	return v != "" && v != "false"
}

// InvalidObliques returns ligated components which are not followed by
// their ligated partner.
func InvalidObliques(doc *mei.Document) []*mei.Element {
	var (
		res []*mei.Element
		ncs = doc.Elements(mei.KindNC)
	)
	for i := 0; i < len(ncs); i++ {
		if !ligated(ncs[i]) {
			continue
		}
		if i+1 < len(ncs) && ligated(ncs[i+1]) {
			// skip the partner
			i++
			continue
		}
		res = append(res, ncs[i])
	}
	return res
}

// UntoggleInvalidObliques clears ligature flag of unpaired components.
func UntoggleInvalidObliques(doc *mei.Document) (Chain, error) {
	obliques := InvalidObliques(doc)
	if len(obliques) == 0 {
		return nil, refuse("No invalid obliques found")
	}
	return perElement(obliques, func(id string) Action {
		return Set{ElementID: id, AttrType: "ligated", AttrValue: ""}
	}), nil
}

// UntoggleInvalidSyllables clears broken links of every invalid syllable
// together with reciprocal pointers of its neighbours. Syllables losing
// their link get empty text if they have none.
func UntoggleInvalidSyllables(doc *mei.Document) (Chain, error) {
	invalid := linkage.InvalidSyllables(doc)
	if len(invalid) == 0 {
		return nil, refuse("No invalid syllables found")
	}

	var (
		chain   Chain
		seen    = make(map[Set]bool)
		texts   = make(map[string]bool)
		touched []*mei.Element
	)
	unset := func(el *mei.Element, attr string) {
		if _, ok := el.Attr(attr); !ok {
			return
		}
		a := Set{ElementID: el.ID, AttrType: attr, AttrValue: ""}
		if seen[a] {
			return
		}
		seen[a] = true
		chain = append(chain, a)
	}
	neighbour := func(ref string) *mei.Element {
		el := doc.ByID(mei.RefID(ref))
		if el == nil || el.Kind != mei.KindSyllable {
			return nil
		}
		return el
	}

	// partner pointers are cleared only when they point back, otherwise they
	// may belong to another valid pair
	for _, syllable := range invalid {
		touched = append(touched, syllable)
		self := mei.Ref(syllable.ID)
		if ref, ok := syllable.Precedes(); ok {
			unset(syllable, "precedes")
			if next := neighbour(ref); next != nil {
				if back, ok := next.Follows(); ok && back == self {
					unset(next, "follows")
					touched = append(touched, next)
				}
			}
		}
		if ref, ok := syllable.Follows(); ok {
			unset(syllable, "follows")
			if prev := neighbour(ref); prev != nil {
				if fwd, ok := prev.Precedes(); ok && fwd == self {
					unset(prev, "precedes")
					touched = append(touched, prev)
				}
			}
		}
	}
	for _, syllable := range touched {
		if syllable.Syl() != nil || texts[syllable.ID] {
			continue
		}
		texts[syllable.ID] = true
		chain = append(chain, SetText{ElementID: syllable.ID, Text: ""})
	}
	return chain, nil
}
