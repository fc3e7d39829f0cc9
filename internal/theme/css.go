package theme

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// CSS class names shared with the GTK backend.
const (
	ClassImage = "thor-image"
	ClassBar   = "thor-bar"
	ClassText  = "thor-text"
)

// CSS renders the surfaces of t as GTK CSS scoped to the given class.
//
// Layers are listed top-most first, as CSS stacks background images.
func (t *Theme) CSS(class string) string {
	var b strings.Builder
	sel := "." + class

	rule(&b, sel, surfaceDecls(t.Background))
	rule(&b, sel+" ."+ClassImage, surfaceDecls(t.Image.Picture))

	bar := sel + " progressbar." + ClassBar
	sizeDecl := "min-height"
	if t.Bar.Orientation.Vertical() {
		sizeDecl = "min-width"
	}
	thickness := t.Bar.Height
	if t.Bar.Orientation.Vertical() {
		thickness = t.Bar.Width
	}
	rule(&b, bar+" trough", append(surfaceDecls(t.Bar.Empty), fmt.Sprintf("%s: %dpx", sizeDecl, thickness)))
	rule(&b, bar+" progress", append(t.barFullDecls(), fmt.Sprintf("%s: %dpx", sizeDecl, thickness)))

	text := surfaceDecls(t.Text.Surface)
	text = append(text, "color: "+t.Text.Color.CSS())
	rule(&b, sel+" ."+ClassText, text)

	return b.String()
}

// barFullDecls paints the filled part of the bar. With FillEmpty the layers
// are sized to the whole bar and anchored at the edge the bar grows from, so
// filling reveals them; with FillFull they stretch over the filled part.
func (t *Theme) barFullDecls() []string {
	if t.Bar.Fill == FillFull {
		return surfaceDecls(t.Bar.Full)
	}
	decls := sizedSurfaceDecls(t.Bar.Full, fmt.Sprintf("%dpx %dpx", t.Bar.Width, t.Bar.Height))
	if len(t.Bar.Full.Layers) > 0 && t.Bar.Orientation.Inverted() {
		decls = append(decls, "background-position: right bottom")
	}
	return decls
}

func rule(b *strings.Builder, selector string, decls []string) {
	if len(decls) == 0 {
		return
	}
	b.WriteString(selector)
	b.WriteString(" {\n")
	for _, d := range decls {
		b.WriteString("  ")
		b.WriteString(d)
		b.WriteString(";\n")
	}
	b.WriteString("}\n")
}

func surfaceDecls(s Surface) []string {
	return sizedSurfaceDecls(s, "100% 100%")
}

// sizedSurfaceDecls is surfaceDecls with every layer drawn at size.
func sizedSurfaceDecls(s Surface, size string) []string {
	var decls []string

	if len(s.Layers) > 0 {
		images := make([]string, 0, len(s.Layers))
		blends := make([]string, 0, len(s.Layers))
		sizes := make([]string, 0, len(s.Layers))
		for _, l := range slices.Backward(s.Layers) {
			images = append(images, layerImage(l))
			blends = append(blends, blendMode(l.Operator))
			sizes = append(sizes, size)
		}
		decls = append(decls,
			"background-image: "+strings.Join(images, ", "),
			"background-size: "+strings.Join(sizes, ", "),
			"background-blend-mode: "+strings.Join(blends, ", "),
		)
	}

	switch s.Border.Type {
	case BorderSolid:
		decls = append(decls, fmt.Sprintf("border: %dpx solid %s", s.Border.Width, s.Border.Color.CSS()))
	case BorderTopLeft:
		decls = append(decls,
			fmt.Sprintf("border: %dpx solid", s.Border.Width),
			fmt.Sprintf("border-color: %[1]s %[2]s %[2]s %[1]s", s.Border.TopColor.CSS(), s.Border.Color.CSS()))
	case BorderTopRight:
		decls = append(decls,
			fmt.Sprintf("border: %dpx solid", s.Border.Width),
			fmt.Sprintf("border-color: %[1]s %[1]s %[2]s %[2]s", s.Border.TopColor.CSS(), s.Border.Color.CSS()))
	}

	if r := s.Radius; r != (Radius{}) {
		decls = append(decls, fmt.Sprintf("border-radius: %dpx %dpx %dpx %dpx",
			r.TopLeft, r.TopRight, r.BottomRight, r.BottomLeft))
	}
	return decls
}

func layerImage(l Layer) string {
	switch l.Kind {
	case LayerLinear:
		g := l.Gradient
		angle := math.Atan2(g.X1-g.X0, -(g.Y1 - g.Y0)) * 180 / math.Pi
		return fmt.Sprintf("linear-gradient(%sdeg, %s)", formatFloat(angle), stops(g.Stops))
	case LayerRadial:
		g := l.Gradient
		return fmt.Sprintf("radial-gradient(circle at %s%% %s%%, %s)",
			formatFloat(g.X1*100), formatFloat(g.Y1*100), stops(g.Stops))
	case LayerPNG:
		u := url.URL{Scheme: "file", Path: l.PNG}
		return fmt.Sprintf("url(%q)", u.String())
	default:
		c := l.Color.CSS()
		return fmt.Sprintf("linear-gradient(%s, %s)", c, c)
	}
}

func stops(s []ColorStop) string {
	parts := make([]string, len(s))
	for i, stop := range s {
		parts[i] = fmt.Sprintf("%s %s%%", stop.Color.CSS(), formatFloat(stop.Offset*100))
	}
	return strings.Join(parts, ", ")
}

// blendMode maps a compositing operator to the nearest CSS blend mode.
func blendMode(op Operator) string {
	switch op {
	case OpDarken:
		return "darken"
	case OpDifference:
		return "difference"
	case OpColorDodge:
		return "color-dodge"
	case OpColorBurn:
		return "color-burn"
	case OpAdd:
		return "screen"
	case OpXor:
		return "exclusion"
	default:
		return "normal"
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
