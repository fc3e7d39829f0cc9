package theme

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operator is the compositing operator a layer is painted with.
type Operator int

const (
	OpOver Operator = iota
	OpDestOver
	OpSource
	OpXor
	OpAdd
	OpDifference
	OpDarken
	OpColorDodge
	OpColorBurn
)

var operatorNames = []string{
	OpOver:       "over",
	OpDestOver:   "dest_over",
	OpSource:     "source",
	OpXor:        "xor",
	OpAdd:        "add",
	OpDifference: "difference",
	OpDarken:     "darken",
	OpColorDodge: "color_dodge",
	OpColorBurn:  "color_burn",
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *Operator) UnmarshalYAML(value *yaml.Node) error {
	i, err := lookupName(value, "operator", operatorNames)
	if err != nil {
		return err
	}
	*o = Operator(i)
	return nil
}

// BorderType selects how a border is drawn.
type BorderType int

const (
	BorderNone BorderType = iota
	BorderSolid
	// BorderTopLeft draws the top and left edges in TopColor.
	BorderTopLeft
	// BorderTopRight draws the top and right edges in TopColor.
	BorderTopRight
)

var borderNames = []string{
	BorderNone:     "none",
	BorderSolid:    "solid",
	BorderTopLeft:  "topleft",
	BorderTopRight: "topright",
}

func (b BorderType) String() string {
	if int(b) < len(borderNames) {
		return borderNames[b]
	}
	return fmt.Sprintf("BorderType(%d)", int(b))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BorderType) UnmarshalYAML(value *yaml.Node) error {
	i, err := lookupName(value, "border type", borderNames)
	if err != nil {
		return err
	}
	*b = BorderType(i)
	return nil
}

// Orientation is the direction a bar fills in.
type Orientation int

const (
	LeftRight Orientation = iota
	RightLeft
	BottomTop
	TopBottom
)

var orientationNames = []string{
	LeftRight: "left-right",
	RightLeft: "right-left",
	BottomTop: "bottom-top",
	TopBottom: "top-bottom",
}

func (o Orientation) String() string {
	if int(o) < len(orientationNames) {
		return orientationNames[o]
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// Vertical reports whether the bar grows along the y axis.
func (o Orientation) Vertical() bool {
	return o == BottomTop || o == TopBottom
}

// Inverted reports whether the bar grows from the far edge.
func (o Orientation) Inverted() bool {
	return o == RightLeft || o == BottomTop
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *Orientation) UnmarshalYAML(value *yaml.Node) error {
	i, err := lookupName(value, "orientation", orientationNames)
	if err != nil {
		return err
	}
	*o = Orientation(i)
	return nil
}

// FillRule decides which bar surface is scaled with the fraction.
type FillRule int

const (
	// FillEmpty keeps the full surface relative to the empty bar.
	FillEmpty FillRule = iota
	// FillFull stretches the full surface over the filled part only.
	FillFull
)

var fillNames = []string{
	FillEmpty: "empty",
	FillFull:  "full",
}

func (f FillRule) String() string {
	if int(f) < len(fillNames) {
		return fillNames[f]
	}
	return fmt.Sprintf("FillRule(%d)", int(f))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FillRule) UnmarshalYAML(value *yaml.Node) error {
	i, err := lookupName(value, "fill rule", fillNames)
	if err != nil {
		return err
	}
	*f = FillRule(i)
	return nil
}

// Align is the horizontal text alignment.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

var alignNames = []string{
	AlignLeft:   "left",
	AlignCenter: "center",
	AlignRight:  "right",
}

func (a Align) String() string {
	if int(a) < len(alignNames) {
		return alignNames[a]
	}
	return fmt.Sprintf("Align(%d)", int(a))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Align) UnmarshalYAML(value *yaml.Node) error {
	i, err := lookupName(value, "alignment", alignNames)
	if err != nil {
		return err
	}
	*a = Align(i)
	return nil
}

func lookupName(value *yaml.Node, what string, names []string) (int, error) {
	if value.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("%s must be a string", what)
	}
	s := strings.ToLower(strings.TrimSpace(value.Value))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q (want one of %s)", what, value.Value, strings.Join(names, ", "))
}
