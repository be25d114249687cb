package action

import (
	"errors"
	"fmt"
)

// Kind names an atomic editing operation understood by the engine.
type Kind int

const (
	KindSet Kind = iota
	KindSetText
	KindSetLiquescent
	KindSetClef
	KindRemove
	KindChangeStaff
	KindChangeGroup
	KindDisplaceClefOctave
	KindMatchHeight
	KindResizeRotate
	KindInsertToSyllable
	KindMoveOutsideSyllable
	KindToggleLigature
	KindMerge
	KindGroup
	KindUngroup
	KindChain
)

// ErrUnknownAction is returned when decoding action of unknown kind.
var ErrUnknownAction = errors.New("unknown action")

var kindNames = map[Kind]string{
	KindSet:                 "set",
	KindSetText:             "setText",
	KindSetLiquescent:       "setLiquescent",
	KindSetClef:             "setClef",
	KindRemove:              "remove",
	KindChangeStaff:         "changeStaff",
	KindChangeGroup:         "changeGroup",
	KindDisplaceClefOctave:  "displaceClefOctave",
	KindMatchHeight:         "matchHeight",
	KindResizeRotate:        "resizeRotate",
	KindInsertToSyllable:    "insertToSyllable",
	KindMoveOutsideSyllable: "moveOutsideSyllable",
	KindToggleLigature:      "toggleLigature",
	KindMerge:               "merge",
	KindGroup:               "group",
	KindUngroup:             "ungroup",
	KindChain:               "chain",
}

var kindValues = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

// String implements the Stringer interface.
func (x Kind) String() string {
	if str, ok := kindNames[x]; ok {
		return str
	}
	return fmt.Sprintf("Kind(%d)", int(x))
}

// ParseKind converts wire name to Kind.
func ParseKind(name string) (Kind, error) {
	if x, ok := kindValues[name]; ok {
		return x, nil
	}
	return KindSet, fmt.Errorf("%s: %w", name, ErrUnknownAction)
}

// MarshalText implements the text marshaller method.
func (x Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[x]; !ok {
		return nil, fmt.Errorf("%s: %w", x, ErrUnknownAction)
	}
	return []byte(x.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (x *Kind) UnmarshalText(text []byte) error {
	k, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*x = k
	return nil
}

// GroupType selects level of hierarchy group and ungroup work on.
type GroupType string

const (
	GroupNeume GroupType = "neume"
	GroupNC    GroupType = "nc"
)

// Valid reports if group type is known.
func (g GroupType) Valid() bool {
	return g == GroupNeume || g == GroupNC
}
