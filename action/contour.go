package action

import (
	"maps"
	"slices"
	"strings"

	"neon/mei"
)

// Contours maps neume names to their contour: one letter per interval
// between consecutive components, "u" up, "d" down, "s" same pitch.
var Contours = map[string]string{
	"Punctum":             "",
	"Pes":                 "u",
	"Clivis":              "d",
	"Scandicus":           "uu",
	"ScandicusFlexus":     "uud",
	"ScandicusSubpunctis": "uudd",
	"Climacus":            "dd",
	"ClimacusResupinus":   "ddu",
	"Torculus":            "ud",
	"TorculusResupinus":   "udu",
	"Porrectus":           "du",
	"PorrectusFlexus":     "dud",
	"PorrectusSubpunctis": "dudd",
	"PesSubpunctis":       "udd",
	"Pressus":             "sd",
	"Distropha":           "s",
	"Tristropha":          "ss",
}

// ContourNames returns known neume names sorted.
func ContourNames() []string {
	return slices.Sorted(maps.Keys(Contours))
}

// ContourByName returns contour for a neume name.
func ContourByName(name string) (string, bool) {
	c, ok := Contours[name]
	return c, ok
}

// ContourOf computes contour of neume components. It fails when any
// component has no usable pitch.
func ContourOf(ncs []*mei.Element) (string, bool) {
	var b strings.Builder
	prev := 0
	for i, nc := range ncs {
		p, ok := nc.Pitch()
		if !ok {
			return "", false
		}
		if i > 0 {
			switch {
			case p > prev:
				b.WriteByte('u')
			case p < prev:
				b.WriteByte('d')
			default:
				b.WriteByte('s')
			}
		}
		prev = p
	}
	return b.String(), true
}

// NeumeName returns name of the neume with given components, false when
// contour is not recognized.
func NeumeName(ncs []*mei.Element) (string, bool) {
	if len(ncs) == 0 {
		return "", false
	}
	contour, ok := ContourOf(ncs)
	if !ok {
		return "", false
	}
	for name, c := range Contours {
		if c == contour {
			return name, true
		}
	}
	return "", false
}
