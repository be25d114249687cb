package mei

import (
	"sort"

	"github.com/maruel/natural"

	"neon/utils/debug"
)

type treeWriter struct {
	*debug.TreeWriter
}

// String returns a readable tree of the snapshot. It exists solely for manual
// inspection during debugging and for debug reports.
func (d *Document) String() string {
	if d == nil || d.Root == nil {
		return "<nil Document>"
	}
	tw := treeWriter{debug.NewTreeWriter()}
	tw.Line(0, "Document elements=%d staves=%d syllables=%d neumes=%d ncs=%d",
		d.Len(), len(d.Staves()), len(d.Syllables()), len(d.Elements(KindNeume)), len(d.Elements(KindNC)))
	if d.HasSurface {
		tw.Line(1, "Surface lrx=%g lry=%g", d.Surface.Lrx, d.Surface.Lry)
	}
	tw.element(1, d.Root)

	if ids := d.ZoneIDs(); len(ids) > 0 {
		sort.Sort(natural.StringSlice(ids))
		tw.Line(0, "Zones: %d", len(ids))
		for _, id := range ids {
			z := d.zones[id]
			tw.Line(1, "Zone[%q] ulx=%g uly=%g lrx=%g lry=%g rotate=%g", id, z.Ulx, z.Uly, z.Lrx, z.Lry, z.Rotate)
		}
	}
	return tw.String()
}

func (tw treeWriter) element(depth int, el *Element) {
	if el.Kind == KindZone {
		return
	}
	switch {
	case el.Kind == KindOther:
		tw.Line(depth, "<%s> id=%q", el.Tag, el.ID)
	case el.Pos >= 0:
		tw.Line(depth, "%s[%d] id=%q staff=%d", el.Kind, el.Pos, el.ID, StaffPos(el))
	default:
		tw.Line(depth, "%s id=%q", el.Kind, el.ID)
	}
	if el.Kind != KindOther {
		tw.Attrs(depth+1, "attrs", el.Attrs)
	}
	if el.Kind == KindSyl {
		tw.TextBlock(depth+1, "text", el.Text)
	}
	for _, ch := range el.Children {
		tw.element(depth+1, ch)
	}
}
