package xmltk

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/beevik/etree"

	"neon/action"
)

// containers maps group type to the tags of grouped elements and their
// container.
var containers = map[action.GroupType]struct{ child, parent string }{
	action.GroupNeume: {child: "neume", parent: "syllable"},
	action.GroupNC:    {child: "nc", parent: "neume"},
}

func (ed *editor) resolveGroup(gt action.GroupType, ids []string) ([]*etree.Element, string, error) {
	c, ok := containers[gt]
	if !ok {
		return nil, "", fmt.Errorf("unknown group type %q", gt)
	}
	els := make([]*etree.Element, 0, len(ids))
	for _, id := range ids {
		el, err := ed.find(id)
		if err != nil {
			return nil, "", err
		}
		if el.Tag != c.child {
			// ungroup selection contains syl and other children, skip them
			continue
		}
		if p := el.Parent(); p == nil || p.Tag != c.parent {
			return nil, "", fmt.Errorf("%s %q is not inside %s", el.Tag, id, c.parent)
		}
		els = append(els, el)
	}
	pos := order(ed.root)
	slices.SortStableFunc(els, func(a, b *etree.Element) int {
		return cmp.Compare(pos[a], pos[b])
	})
	return els, c.child, nil
}

func countTag(el *etree.Element, tag string) int {
	return len(el.SelectElements(tag))
}

// group moves elements into the container of the first one (in document
// order) and drops containers left without grouped children.
func (ed *editor) group(gt action.GroupType, ids []string) error {
	els, child, err := ed.resolveGroup(gt, ids)
	if err != nil {
		return err
	}
	if len(els) < 2 {
		return fmt.Errorf("nothing to group: %d %s element(s)", len(els), child)
	}
	target := els[0].Parent()
	for _, el := range els[1:] {
		from := el.Parent()
		if from == target {
			continue
		}
		from.RemoveChild(el)
		target.AddChild(el)
		if countTag(from, child) == 0 && from.Parent() != nil {
			from.Parent().RemoveChild(from)
		}
	}
	ed.created = target.SelectAttrValue("xml:id", "")
	return nil
}

// ungroup leaves the first child of every container in place and moves
// each of the following ones into its own new container inserted right
// after the previous.
func (ed *editor) ungroup(gt action.GroupType, ids []string) error {
	els, child, err := ed.resolveGroup(gt, ids)
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return fmt.Errorf("nothing to ungroup: no %s elements", child)
	}
	seen := make(map[*etree.Element]bool)
	for _, el := range els {
		parent := el.Parent()
		if seen[parent] {
			continue
		}
		seen[parent] = true

		children := parent.SelectElements(child)
		prev := parent
		for _, ch := range children[1:] {
			split := etree.NewElement(parent.Tag)
			split.Space = parent.Space
			split.CreateAttr("xml:id", ed.newID())
			grand := prev.Parent()
			grand.InsertChildAt(prev.Index()+1, split)
			parent.RemoveChild(ch)
			split.AddChild(ch)
			prev = split
		}
	}
	return nil
}
