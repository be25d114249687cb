package mei

import (
	"regexp"
	"strconv"
	"strings"
)

// Type definitions for the subset of MEI used by the neume editor.

// Kind classifies document elements the editor knows how to act upon.
type Kind int

const (
	KindOther Kind = iota
	KindStaff
	KindSyllable
	KindNeume
	KindNC
	KindAccid
	KindClef
	KindDivLine
	KindCustos
	KindSyl
	KindZone
)

var kindNames = map[Kind]string{
	KindOther:    "other",
	KindStaff:    "staff",
	KindSyllable: "syllable",
	KindNeume:    "neume",
	KindNC:       "nc",
	KindAccid:    "accid",
	KindClef:     "clef",
	KindDivLine:  "divLine",
	KindCustos:   "custos",
	KindSyl:      "syl",
	KindZone:     "zone",
}

// String implements the Stringer interface.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsLayerElement reports if element kind is one of the "loose" glyphs which
// may live inside or outside of a syllable.
func (k Kind) IsLayerElement() bool {
	return k == KindAccid || k == KindClef || k == KindDivLine || k == KindCustos
}

func kindFromTag(tag string) Kind {
	switch tag {
	case "staff", "sb":
		return KindStaff
	case "syllable":
		return KindSyllable
	case "neume":
		return KindNeume
	case "nc":
		return KindNC
	case "accid":
		return KindAccid
	case "clef":
		return KindClef
	case "divLine":
		return KindDivLine
	case "custos":
		return KindCustos
	case "syl":
		return KindSyl
	case "zone":
		return KindZone
	}
	return KindOther
}

// Element is a node of the display hierarchy. Elements belong to a Document
// snapshot and must not be modified after parsing.
type Element struct {
	ID       string
	Tag      string
	Kind     Kind
	Attrs    map[string]string
	Text     string
	Parent   *Element
	Children []*Element
	// Staff is the enclosing logical staff (an explicit <staff> or the
	// preceding <sb> in flat layouts), nil when element is outside of any.
	Staff *Element
	// Order is position in document order, Pos is position in the sequence
	// of elements of the same kind (-1 for kinds which are not sequenced).
	Order int
	Pos   int
}

// Attr returns raw attribute value and presence flag.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.Attrs[name]
	return v, ok
}

// Precedes returns raw value of @precedes.
func (e *Element) Precedes() (string, bool) {
	return e.Attr("precedes")
}

// Follows returns raw value of @follows.
func (e *Element) Follows() (string, bool) {
	return e.Attr("follows")
}

// HasLink reports if element carries at least one of @precedes or @follows.
func (e *Element) HasLink() bool {
	_, p := e.Precedes()
	_, f := e.Follows()
	return p || f
}

// Facs returns id of the zone referenced by @facs without leading '#'.
func (e *Element) Facs() string {
	v, _ := e.Attr("facs")
	return RefID(v)
}

// Closest returns element itself or its nearest ancestor of requested kind.
func (e *Element) Closest(kind Kind) *Element {
	for el := e; el != nil; el = el.Parent {
		if el.Kind == kind {
			return el
		}
	}
	return nil
}

// ChildrenOf returns direct children of requested kind.
func (e *Element) ChildrenOf(kind Kind) []*Element {
	var res []*Element
	for _, ch := range e.Children {
		if ch.Kind == kind {
			res = append(res, ch)
		}
	}
	return res
}

// Descendants returns all descendants of requested kind in document order.
func (e *Element) Descendants(kind Kind) []*Element {
	var res []*Element
	var walk func(*Element)
	walk = func(el *Element) {
		for _, ch := range el.Children {
			if ch.Kind == kind {
				res = append(res, ch)
			}
			walk(ch)
		}
	}
	walk(e)
	return res
}

// Syl returns text child of a syllable if any.
func (e *Element) Syl() *Element {
	if e == nil {
		return nil
	}
	if syls := e.ChildrenOf(KindSyl); len(syls) > 0 {
		return syls[0]
	}
	return nil
}

var columnRe = regexp.MustCompile(`\bcolumn(\d+)\b`)

// Column returns staff column number stored in @type (for example "column2").
func (e *Element) Column() (int, bool) {
	t, ok := e.Attr("type")
	if !ok {
		return 0, false
	}
	m := columnRe.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

const pitchNames = "cdefgab"

// Pitch returns diatonic step number of a neume component computed from
// @pname and @oct.
func (e *Element) Pitch() (int, bool) {
	pname, ok := e.Attr("pname")
	if !ok || len(pname) != 1 {
		return 0, false
	}
	step := strings.IndexByte(pitchNames, strings.ToLower(pname)[0])
	if step < 0 {
		return 0, false
	}
	oct, ok := e.Attr("oct")
	if !ok {
		return 0, false
	}
	o, err := strconv.Atoi(oct)
	if err != nil {
		return 0, false
	}
	return o*7 + step, true
}

// Zone is a facsimile region referenced by glyphs through @facs.
type Zone struct {
	ID     string
	Ulx    float64
	Uly    float64
	Lrx    float64
	Lry    float64
	Rotate float64
}

// Bounds of the page surface.
type Bounds struct {
	Lrx float64
	Lry float64
}

// RefID strips leading '#' from MEI reference.
func RefID(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), "#")
}

// Ref makes MEI reference out of id.
func Ref(id string) string {
	return "#" + id
}
