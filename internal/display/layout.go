package display

import (
	"github.com/jmylchreest/thor/internal/proto"
	"github.com/jmylchreest/thor/internal/theme"
)

const (
	// ElementGap separates stacked elements in the automatic layout.
	ElementGap = 20
	// DefaultTextWidth is the wrap width for OSD text.
	DefaultTextWidth = 400
)

// ImageSizer reports the pixel size of an image file.
type ImageSizer interface {
	ImageSize(path string) (width, height int, err error)
}

// BarFraction returns the filled fraction of a bar. ok is false when
// elements is 0 and no bar should be drawn.
func BarFraction(part, elements uint32) (fraction float64, ok bool) {
	if elements == 0 {
		return 0, false
	}
	f := float64(part) / float64(elements)
	if f > 1 {
		f = 1
	}
	return f, true
}

// layoutParams carries what the layout needs besides theme and message.
type layoutParams struct {
	kind      proto.Kind
	noteWidth int
	measure   func(lines []Line, font string, maxWidth int) (int, int)
	images    ImageSizer
}

// computeScene lays out msg with th. It returns ErrNothingToRender when
// no element would be visible.
func computeScene(th *theme.Theme, msg *proto.Message, p layoutParams) (*Scene, error) {
	sc, err := selectElements(th, msg, p.images)
	if err != nil {
		return nil, err
	}
	sc.Kind = p.kind

	if th.CustomDimensions() {
		customLayout(sc)
	} else {
		autoLayout(sc, th, p)
	}

	if sc.Image != nil {
		sc.Image.Fit = fitImage(sc.Image.Box, sc.Image.Path, p.images)
	}
	return sc, nil
}

// selectElements decides which elements of th msg shows, without placing
// them.
func selectElements(th *theme.Theme, msg *proto.Message, images ImageSizer) (*Scene, error) {
	sc := &Scene{Kind: msg.Kind(), Theme: th}

	if !msg.Flags.Has(proto.FlagNoImage) && th.HasImage() {
		if path := pickImage(msg.ImagePaths(), images); path != "" || !th.Image.Picture.Empty() {
			sc.Image = &ImageElement{Box: th.Image.Rect, Path: path}
		}
	}
	if !msg.Flags.Has(proto.FlagNoBar) && th.HasBar() {
		if f, ok := BarFraction(msg.BarPart, msg.BarElements); ok {
			sc.Bar = &BarElement{Box: th.Bar.Rect, Fraction: f}
		}
	}
	if lines := ParseMarkup(msg.Body()); !blank(lines) && th.HasText() {
		sc.Text = &TextElement{Box: th.Text.Rect, Lines: lines}
	}

	if sc.Image == nil && sc.Bar == nil && sc.Text == nil {
		return nil, ErrNothingToRender
	}
	return sc, nil
}

// customLayout keeps the theme coordinates and sizes the window to the
// furthest element edge.
func customLayout(sc *Scene) {
	grow := func(r theme.Rect) {
		sc.Width = max(sc.Width, r.X+r.Width)
		sc.Height = max(sc.Height, r.Y+r.Height)
	}
	if sc.Image != nil {
		grow(sc.Image.Box)
	}
	if sc.Bar != nil {
		grow(sc.Bar.Box)
	}
	if sc.Text != nil {
		grow(sc.Text.Box)
	}
}

// autoLayout stacks image, bar and text from the top, centred horizontally.
func autoLayout(sc *Scene, th *theme.Theme, p layoutParams) {
	pad := th.Padding
	w, h := 0, pad.Y
	next := func() {
		if h > pad.Y {
			h += ElementGap
		}
	}

	if sc.Image != nil {
		sc.Image.Box.Y = h
		w = sc.Image.Box.Width
		h += sc.Image.Box.Height
	}
	if sc.Bar != nil {
		next()
		sc.Bar.Box.Y = h
		w = max(w, sc.Bar.Box.Width)
		h += sc.Bar.Box.Height
	}
	if sc.Text != nil {
		next()
		limit := DefaultTextWidth
		if p.kind == proto.KindNote {
			limit = p.noteWidth - 2*pad.X
		}
		limit = max(limit, w, 1)
		textW, textH := p.measure(sc.Text.Lines, th.Text.Font, limit)
		sc.Text.Box = theme.Rect{Y: h, Height: textH}
		w = max(w, min(textW, limit))
		h += textH
	}

	w += 2 * pad.X
	h += pad.Y
	if p.kind == proto.KindNote {
		w = max(w, p.noteWidth)
	}
	sc.Width, sc.Height = w, h

	center := func(r *theme.Rect) { r.X = (w - r.Width) / 2 }
	if sc.Image != nil {
		center(&sc.Image.Box)
	}
	if sc.Bar != nil {
		center(&sc.Bar.Box)
	}
	if sc.Text != nil {
		sc.Text.Box.X = pad.X
		sc.Text.Box.Width = w - 2*pad.X
	}
}

// pickImage returns the first path with a known size, or the first path.
func pickImage(paths []string, images ImageSizer) string {
	if len(paths) == 0 {
		return ""
	}
	if images != nil {
		for _, p := range paths {
			if _, _, err := images.ImageSize(p); err == nil {
				return p
			}
		}
	}
	return paths[0]
}

// fitImage scales the image at path into box preserving its aspect ratio.
// Unknown sizes fill the box.
func fitImage(box theme.Rect, path string, images ImageSizer) theme.Rect {
	if path == "" || images == nil {
		return box
	}
	iw, ih, err := images.ImageSize(path)
	if err != nil || iw <= 0 || ih <= 0 {
		return box
	}

	w, h := box.Width, ih*box.Width/iw
	if h > box.Height {
		h = box.Height
		w = iw * box.Height / ih
	}
	return theme.Rect{
		X:      box.X + (box.Width-w)/2,
		Y:      box.Y + (box.Height-h)/2,
		Width:  w,
		Height: h,
	}
}
