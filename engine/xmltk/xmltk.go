// Package xmltk is an engine toolkit working directly on MEI tree. It
// applies edits which do not need layout knowledge and is used where the
// real rendering engine is not available: command line fixes and tests.
package xmltk

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"neon/action"
	"neon/engine"
	"neon/mei"
)

var errNoDocument = errors.New("no document loaded")

// Toolkit implements engine.Toolkit. It does not render, all SVG it returns
// is empty.
type Toolkit struct {
	log   *zap.Logger
	doc   *etree.Document
	info  engine.Info
	newID func() string
}

// New returns toolkit without document, load one with RenderData.
func New(log *zap.Logger) *Toolkit {
	return &Toolkit{
		log: log.Named("xmltk"),
		newID: func() string {
			return "m-" + uuid.NewString()
		},
	}
}

// Start runs new toolkit behind in-process pipe and returns connected
// client. Closing client stops the pipe.
func Start(log *zap.Logger) (*engine.Client, error) {
	p := engine.NewPipe(log)
	if err := p.Worker().Ready(New(log)); err != nil {
		_ = p.Close()
		return nil, err
	}
	return engine.NewClient(p, log), nil
}

// RenderData implements engine.Toolkit. Document replaces the current one.
func (tk *Toolkit) RenderData(text string) (string, error) {
	doc := mei.NewXMLDocument()
	if err := doc.ReadFromString(text); err != nil {
		return "", fmt.Errorf("unable to read MEI: %w", err)
	}
	if root := doc.Root(); root == nil || root.Tag != "mei" {
		return "", mei.ErrNotMEI
	}
	tk.doc = doc
	tk.info = engine.Info{}
	return "", nil
}

// GetElementAttr implements engine.Toolkit.
func (tk *Toolkit) GetElementAttr(id string) (map[string]string, error) {
	if tk.doc == nil {
		return nil, errNoDocument
	}
	el := index(tk.doc.Root())[id]
	if el == nil {
		return nil, fmt.Errorf("%w: %q", mei.ErrUnknownElement, id)
	}
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		if a.Space == "xml" && a.Key == "id" {
			continue
		}
		attrs[a.Key] = a.Value
	}
	return attrs, nil
}

// Edit implements engine.Toolkit. Edit is applied to a copy of the document
// which replaces the current one only if every step succeeded, so failed
// chain leaves document untouched.
func (tk *Toolkit) Edit(editorAction json.RawMessage) (bool, error) {
	if tk.doc == nil {
		return false, errNoDocument
	}
	a, err := action.Unmarshal(editorAction)
	if err != nil {
		return false, err
	}

	work := tk.doc.Copy()
	ed := &editor{root: work.Root(), newID: tk.newID}
	if err := ed.apply(a); err != nil {
		tk.log.Debug("Edit rejected", zap.String("action", a.Kind().String()), zap.Error(err))
		tk.info = engine.Info{Status: "FAILURE", Message: err.Error()}
		return false, nil
	}
	tk.doc = work
	tk.info = engine.Info{Status: "OK", UUID: ed.created}
	return true, nil
}

// GetMEI implements engine.Toolkit.
func (tk *Toolkit) GetMEI() (string, error) {
	if tk.doc == nil {
		return "", errNoDocument
	}
	return tk.doc.WriteToString()
}

// EditInfo implements engine.Toolkit.
func (tk *Toolkit) EditInfo() (json.RawMessage, error) {
	return json.Marshal(tk.info)
}

// RenderToSVG implements engine.Toolkit.
func (tk *Toolkit) RenderToSVG(int) (string, error) {
	if tk.doc == nil {
		return "", errNoDocument
	}
	return "", nil
}

func index(root *etree.Element) map[string]*etree.Element {
	m := make(map[string]*etree.Element)
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		if id := el.SelectAttrValue("xml:id", ""); id != "" {
			if _, ok := m[id]; !ok {
				m[id] = el
			}
		}
		for _, ch := range el.ChildElements() {
			walk(ch)
		}
	}
	walk(root)
	return m
}

func order(root *etree.Element) map[*etree.Element]int {
	m := make(map[*etree.Element]int)
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		m[el] = len(m)
		for _, ch := range el.ChildElements() {
			walk(ch)
		}
	}
	walk(root)
	return m
}

// editor applies actions to a detached copy of the document.
type editor struct {
	root    *etree.Element
	newID   func() string
	created string
}

func (ed *editor) find(id string) (*etree.Element, error) {
	el := index(ed.root)[id]
	if el == nil {
		return nil, fmt.Errorf("%w: %q", mei.ErrUnknownElement, id)
	}
	return el, nil
}

func (ed *editor) apply(a action.Action) error {
	switch a := a.(type) {
	case action.Chain:
		for i, item := range a {
			if err := ed.apply(item); err != nil {
				return fmt.Errorf("chain item %d: %w", i, err)
			}
		}
		return nil
	case action.Set:
		return ed.set(a.ElementID, a.AttrType, a.AttrValue)
	case action.SetText:
		return ed.setText(a.ElementID, a.Text)
	case action.SetLiquescent:
		return ed.set(a.ElementID, "curve", a.Curve)
	case action.SetClef:
		return ed.set(a.ElementID, "shape", a.Shape)
	case action.Remove:
		return ed.remove(a.ElementID)
	case action.ResizeRotate:
		return ed.resizeRotate(a)
	case action.ToggleLigature:
		return ed.toggleLigature(a.ElementIDs)
	case action.Group:
		return ed.group(a.GroupType, a.ElementIDs)
	case action.Ungroup:
		return ed.ungroup(a.GroupType, a.ElementIDs)
	}
	return fmt.Errorf("%s: %w", a.Kind(), engine.ErrUnsupported)
}

func (ed *editor) set(id, attr, value string) error {
	el, err := ed.find(id)
	if err != nil {
		return err
	}
	if value == "" {
		el.RemoveAttr(attr)
		return nil
	}
	el.CreateAttr(attr, value)
	return nil
}

func (ed *editor) setText(id, text string) error {
	el, err := ed.find(id)
	if err != nil {
		return err
	}
	syl := el
	if el.Tag != "syl" {
		if el.Tag != "syllable" {
			return fmt.Errorf("unable to set text of %s %q", el.Tag, id)
		}
		if syl = el.SelectElement("syl"); syl == nil {
			syl = etree.NewElement("syl")
			syl.CreateAttr("xml:id", ed.newID())
			el.InsertChildAt(0, syl)
		}
	}
	syl.SetText(text)
	return nil
}

// remove deletes element and facsimile zones nothing else refers to.
func (ed *editor) remove(id string) error {
	el, err := ed.find(id)
	if err != nil {
		return err
	}
	parent := el.Parent()
	if parent == nil {
		return fmt.Errorf("unable to remove root element %q", id)
	}

	zones := make(map[string]bool)
	var collect func(*etree.Element)
	collect = func(e *etree.Element) {
		if facs := mei.RefID(e.SelectAttrValue("facs", "")); facs != "" {
			zones[facs] = true
		}
		for _, ch := range e.ChildElements() {
			collect(ch)
		}
	}
	collect(el)
	parent.RemoveChild(el)

	if len(zones) == 0 {
		return nil
	}
	var stillUsed func(*etree.Element)
	stillUsed = func(e *etree.Element) {
		delete(zones, mei.RefID(e.SelectAttrValue("facs", "")))
		for _, ch := range e.ChildElements() {
			stillUsed(ch)
		}
	}
	stillUsed(ed.root)
	ids := index(ed.root)
	for _, zid := range slices.Sorted(maps.Keys(zones)) {
		if z := ids[zid]; z != nil && z.Tag == "zone" && z.Parent() != nil {
			z.Parent().RemoveChild(z)
		}
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (ed *editor) resizeRotate(a action.ResizeRotate) error {
	el, err := ed.find(a.ElementID)
	if err != nil {
		return err
	}
	facs := mei.RefID(el.SelectAttrValue("facs", ""))
	if facs == "" {
		return fmt.Errorf("element %q has no facsimile zone", a.ElementID)
	}
	zone, err := ed.find(facs)
	if err != nil {
		return err
	}
	zone.CreateAttr("ulx", formatCoord(a.Ulx))
	zone.CreateAttr("uly", formatCoord(a.Uly))
	zone.CreateAttr("lrx", formatCoord(a.Lrx))
	zone.CreateAttr("lry", formatCoord(a.Lry))
	if a.Rotate == 0 {
		zone.RemoveAttr("rotate")
	} else {
		zone.CreateAttr("rotate", formatCoord(a.Rotate))
	}
	return nil
}

func (ed *editor) toggleLigature(ids []string) error {
	if len(ids) != 2 {
		return fmt.Errorf("ligature needs two components, got %d", len(ids))
	}
	ncs := make([]*etree.Element, 0, 2)
	for _, id := range ids {
		el, err := ed.find(id)
		if err != nil {
			return err
		}
		if el.Tag != "nc" {
			return fmt.Errorf("%q is not a neume component", id)
		}
		ncs = append(ncs, el)
	}
	both := true
	for _, nc := range ncs {
		both = both && nc.SelectAttrValue("ligated", "") == "true"
	}
	for _, nc := range ncs {
		if both {
			nc.RemoveAttr("ligated")
		} else {
			nc.CreateAttr("ligated", "true")
		}
	}
	return nil
}
