package selection

import (
	"errors"
	"fmt"
)

// Mode is the selection mode chosen by the user in the presentation layer.
type Mode int

const (
	ModeDefault Mode = iota
	ModeStaff
	ModeSyllable
	ModeNeume
	ModeNc
	ModeBBox
	ModeLayerElement
)

// ErrUnsupportedMode is returned for selection modes the editor does not know.
var ErrUnsupportedMode = errors.New("unsupported selection mode")

var modeNames = map[Mode]string{
	ModeDefault:      "default",
	ModeStaff:        "selByStaff",
	ModeSyllable:     "selBySyllable",
	ModeNeume:        "selByNeume",
	ModeNc:           "selByNc",
	ModeBBox:         "selByBBox",
	ModeLayerElement: "selByLayerElement",
}

var modeValues = func() map[string]Mode {
	m := make(map[string]Mode, len(modeNames))
	for k, v := range modeNames {
		m[v] = k
	}
	return m
}()

// String implements the Stringer interface.
func (x Mode) String() string {
	if str, ok := modeNames[x]; ok {
		return str
	}
	return fmt.Sprintf("Mode(%d)", int(x))
}

// IsValid reports if value is one of the known modes.
func (x Mode) IsValid() bool {
	_, ok := modeNames[x]
	return ok
}

// ParseMode converts wire name to Mode.
func ParseMode(name string) (Mode, error) {
	if x, ok := modeValues[name]; ok {
		return x, nil
	}
	return ModeDefault, fmt.Errorf("%q: %w", name, ErrUnsupportedMode)
}

// MarshalText implements the text marshaller method.
func (x Mode) MarshalText() ([]byte, error) {
	if !x.IsValid() {
		return nil, fmt.Errorf("%s: %w", x, ErrUnsupportedMode)
	}
	return []byte(x.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (x *Mode) UnmarshalText(text []byte) error {
	m, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*x = m
	return nil
}

// Type is the discrete classification of a selection, it decides which
// options the presentation layer offers.
type Type int

const (
	TypeNone Type = iota
	TypeDefault
	TypeNoSyl
	TypeSingleSyllable
	TypeLinkable
	TypeMultiSyllable
	TypeSingleStaff
	TypeMultiStaff
	TypeSingleNeume
	TypeMultiNeume
	TypeSingleNc
	TypeMultiNc
	TypeLigature
	TypeBBox
	TypeLayerElement
)

var typeNames = map[Type]string{
	TypeNone:           "none",
	TypeDefault:        "default",
	TypeNoSyl:          "noSyl",
	TypeSingleSyllable: "singleSelect",
	TypeLinkable:       "linkableSelect",
	TypeMultiSyllable:  "multiSelect",
	TypeSingleStaff:    "singleStaff",
	TypeMultiStaff:     "multiStaff",
	TypeSingleNeume:    "singleNeume",
	TypeMultiNeume:     "multiNeume",
	TypeSingleNc:       "singleNc",
	TypeMultiNc:        "multiNc",
	TypeLigature:       "ligatureNc",
	TypeBBox:           "bbox",
	TypeLayerElement:   "layerElement",
}

// String implements the Stringer interface.
func (x Type) String() string {
	if str, ok := typeNames[x]; ok {
		return str
	}
	return fmt.Sprintf("Type(%d)", int(x))
}

// MarshalText implements the text marshaller method.
func (x Type) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}
