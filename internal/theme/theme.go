package theme

import (
	"fmt"
	"strings"
	"time"
)

// Theme is a fully parsed popup theme.
type Theme struct {
	Name      string    // Theme name (file name without .yaml)
	Path      string    // Full path to the theme file (empty when embedded)
	ModTime   time.Time // Last modification time
	IsDefault bool      // True if this is the embedded default theme

	Padding    Padding `yaml:"padding"`
	Background Surface `yaml:"background"`
	Image      Image   `yaml:"image"`
	Bar        Bar     `yaml:"bar"`
	Text       Text    `yaml:"text"`

	custom bool
}

// Padding is the distance between the popup border and its elements.
type Padding struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Rect is the placement of an element inside the popup.
type Rect struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Visible reports whether the element has a drawable area.
func (r Rect) Visible() bool {
	return r.Width > 0 && r.Height > 0
}

// Image describes the picture element.
type Image struct {
	Rect    `yaml:",inline"`
	Picture Surface `yaml:"picture"`
}

// Bar describes the progress bar element.
type Bar struct {
	Rect        `yaml:",inline"`
	Orientation Orientation `yaml:"orientation"`
	Fill        FillRule    `yaml:"fill"`
	Empty       Surface     `yaml:"empty"`
	Full        Surface     `yaml:"full"`
}

// Text describes the message element.
type Text struct {
	Rect    `yaml:",inline"`
	Font    string  `yaml:"font"`
	Align   Align   `yaml:"align"`
	Color   Color   `yaml:"color"`
	Surface Surface `yaml:"surface"`
}

// Surface is a stack of paint layers with an optional border.
type Surface struct {
	Layers []Layer `yaml:"layers"`
	Border Border  `yaml:"border"`
	Radius Radius  `yaml:"radius"`
}

// Empty reports whether the surface paints nothing.
func (s Surface) Empty() bool {
	return len(s.Layers) == 0 && s.Border.Type == BorderNone
}

// LayerKind identifies the paint source of a layer.
type LayerKind int

const (
	LayerColor LayerKind = iota
	LayerLinear
	LayerRadial
	LayerPNG
)

func (k LayerKind) String() string {
	switch k {
	case LayerLinear:
		return "linear"
	case LayerRadial:
		return "radial"
	case LayerPNG:
		return "png"
	default:
		return "color"
	}
}

// Layer is one paint operation of a surface.
type Layer struct {
	Kind     LayerKind
	Color    Color
	Gradient Gradient
	PNG      string
	Operator Operator
}

// Gradient is a linear or radial color ramp. Linear gradients use
// (X0,Y0)-(X1,Y1); radial gradients additionally use R0 and R1.
type Gradient struct {
	X0    float64    `yaml:"x0"`
	Y0    float64    `yaml:"y0"`
	R0    float64    `yaml:"r0"`
	X1    float64    `yaml:"x1"`
	Y1    float64    `yaml:"y1"`
	R1    float64    `yaml:"r1"`
	Stops []ColorStop `yaml:"stops"`
}

// ColorStop is a position on a gradient between 0 and 1.
type ColorStop struct {
	Offset float64 `yaml:"offset"`
	Color  Color   `yaml:"color"`
}

// Border describes a surface outline.
type Border struct {
	Type     BorderType `yaml:"type"`
	Width    int        `yaml:"width"`
	Color    Color      `yaml:"color"`
	TopColor Color      `yaml:"topcolor"`
}

// Radius holds the corner radii in clockwise order from top-left.
type Radius struct {
	TopLeft     int `yaml:"tl"`
	TopRight    int `yaml:"tr"`
	BottomRight int `yaml:"br"`
	BottomLeft  int `yaml:"bl"`
}

// CustomDimensions reports whether the theme places its elements at fixed
// coordinates instead of using the automatic layout.
func (t *Theme) CustomDimensions() bool {
	return t.custom
}

// HasImage reports whether the theme draws an image element.
func (t *Theme) HasImage() bool { return t.Image.Visible() }

// HasBar reports whether the theme draws a bar element.
func (t *Theme) HasBar() bool { return t.Bar.Visible() }

// HasText reports whether the theme reserves room for text. Auto-layout
// themes always do; the height then follows the text.
func (t *Theme) HasText() bool {
	if t.custom {
		return t.Text.Visible()
	}
	return true
}

// Clone returns a deep copy that callers may lay out without affecting
// the cached theme.
func (t *Theme) Clone() *Theme {
	c := *t
	c.Background = t.Background.clone()
	c.Image.Picture = t.Image.Picture.clone()
	c.Bar.Empty = t.Bar.Empty.clone()
	c.Bar.Full = t.Bar.Full.clone()
	c.Text.Surface = t.Text.Surface.clone()
	return &c
}

func (s Surface) clone() Surface {
	out := s
	if s.Layers != nil {
		out.Layers = make([]Layer, len(s.Layers))
		for i, l := range s.Layers {
			l.Gradient.Stops = append([]ColorStop(nil), l.Gradient.Stops...)
			out.Layers[i] = l
		}
	}
	return out
}

// String implements fmt.Stringer.
func (t *Theme) String() string {
	var parts []string
	if t.HasImage() {
		parts = append(parts, fmt.Sprintf("image=%dx%d", t.Image.Width, t.Image.Height))
	}
	if t.HasBar() {
		parts = append(parts, fmt.Sprintf("bar=%dx%d", t.Bar.Width, t.Bar.Height))
	}
	mode := "auto"
	if t.custom {
		mode = "custom"
	}
	return fmt.Sprintf("%s(%s %s)", t.Name, mode, strings.Join(parts, " "))
}
