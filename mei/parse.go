package mei

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// ErrNotMEI is returned when document root is not <mei>.
var ErrNotMEI = errors.New("not an MEI document")

// NewXMLDocument returns etree document set up for reading MEI produced by
// various OMR tools, which are not always strict.
func NewXMLDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		ValidateInput: false,
		Permissive:    true,
	}
	doc.WriteSettings = etree.WriteSettings{
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	return doc
}

// Read parses MEI from reader and builds document snapshot.
func Read(r io.Reader, log *zap.Logger) (*Document, error) {
	doc := NewXMLDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("unable to read MEI: %w", err)
	}
	return Parse(doc, log)
}

// ParseString parses MEI text and builds document snapshot.
func ParseString(s string, log *zap.Logger) (*Document, error) {
	return Read(strings.NewReader(s), log)
}

// Parse walks the etree DOM and builds immutable snapshot of everything the
// editor needs: element hierarchy, document order, staff membership and
// facsimile zones.
func Parse(doc *etree.Document, log *zap.Logger) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	if root.Tag != "mei" {
		return nil, fmt.Errorf("unexpected root element %q: %w", root.Tag, ErrNotMEI)
	}

	d := &Document{
		byID:  make(map[string]*Element),
		kinds: make(map[Kind][]*Element),
		zones: make(map[string]Zone),
	}
	d.Root = d.build(root, nil, log)

	// Flat layouts mark staff boundaries with <sb> and keep a single <staff>
	// container, in that case only system beginnings are real staves.
	flat := false
	for _, el := range d.all {
		if el.Tag == "sb" {
			flat = true
			break
		}
	}
	if flat {
		for _, el := range d.all {
			if el.Tag == "staff" {
				el.Kind = KindOther
			}
		}
	}

	var current *Element
	for _, el := range d.all {
		if !flat {
			el.Staff = enclosingStaff(el)
			continue
		}
		if el.Tag == "sb" {
			current = el
		}
		el.Staff = current
	}

	for _, el := range d.all {
		el.Pos = -1
		switch el.Kind {
		case KindStaff, KindSyllable, KindNeume, KindNC, KindAccid, KindClef, KindDivLine, KindCustos:
			el.Pos = len(d.kinds[el.Kind])
			d.kinds[el.Kind] = append(d.kinds[el.Kind], el)
		case KindZone:
			d.zones[el.ID] = parseZone(el, log)
		}
	}

	if surface := findTag(d.Root, "surface"); surface != nil {
		d.Surface = Bounds{
			Lrx: parseCoord(surface, "lrx", log),
			Lry: parseCoord(surface, "lry", log),
		}
		d.HasSurface = true
	}

	for _, el := range d.all {
		if id := el.Facs(); id != "" {
			if _, ok := d.zones[id]; !ok {
				log.Debug("Element references unknown zone", zap.String("id", el.ID), zap.String("facs", id))
			}
		}
	}
	return d, nil
}

func (d *Document) build(node *etree.Element, parent *Element, log *zap.Logger) *Element {
	el := &Element{
		Tag:    node.Tag,
		Kind:   kindFromTag(node.Tag),
		Attrs:  make(map[string]string, len(node.Attr)),
		Parent: parent,
		Order:  len(d.all),
	}
	for _, a := range node.Attr {
		switch {
		case a.Space == "xml" && a.Key == "id":
			el.ID = a.Value
		case a.Space == "" || a.Space == "mei":
			el.Attrs[a.Key] = a.Value
		}
	}
	if el.Kind == KindSyl {
		el.Text = strings.TrimSpace(node.Text())
	}
	d.all = append(d.all, el)

	if el.ID != "" {
		if old, exists := d.byID[el.ID]; exists {
			log.Warn("Duplicate element id, keeping first", zap.String("id", el.ID), zap.String("tag", el.Tag), zap.String("first", old.Tag))
		} else {
			d.byID[el.ID] = el
		}
	}

	for _, child := range node.ChildElements() {
		el.Children = append(el.Children, d.build(child, el, log))
	}
	return el
}

func enclosingStaff(el *Element) *Element {
	for p := el; p != nil; p = p.Parent {
		if p.Tag == "staff" {
			return p
		}
	}
	return nil
}

func findTag(el *Element, tag string) *Element {
	if el.Tag == tag {
		return el
	}
	for _, ch := range el.Children {
		if found := findTag(ch, tag); found != nil {
			return found
		}
	}
	return nil
}

func parseZone(el *Element, log *zap.Logger) Zone {
	return Zone{
		ID:     el.ID,
		Ulx:    parseCoord(el, "ulx", log),
		Uly:    parseCoord(el, "uly", log),
		Lrx:    parseCoord(el, "lrx", log),
		Lry:    parseCoord(el, "lry", log),
		Rotate: parseCoord(el, "rotate", log),
	}
}

func parseCoord(el *Element, name string, log *zap.Logger) float64 {
	v, ok := el.Attr(name)
	if !ok || v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Warn("Bad coordinate value, using 0", zap.String("id", el.ID), zap.String("attr", name), zap.String("value", v))
		return 0
	}
	return f
}
