package theme

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for theme problems.
var (
	ErrUnknownKey  = errors.New("unknown key")
	ErrNotMapping  = errors.New("expected a mapping")
	ErrBadLayer    = errors.New("layer needs exactly one of color, linear, radial or png")
	ErrNotFound    = errors.New("theme not found")
	ErrEmptyTheme  = errors.New("theme document is empty")
	ErrNegativeDim = errors.New("dimension must not be negative")
)

// ParseError describes one problem in a theme file. The offending value is
// skipped and the rest of the theme still applies.
type ParseError struct {
	Theme string
	Line  int
	Key   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("theme %s: line %d: %s: %v", e.Theme, e.Line, e.Key, e.Err)
	}
	return fmt.Sprintf("theme %s: %s: %v", e.Theme, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse parses a theme document.
//
// Every malformed value is reported and skipped, so a theme with a typo in
// one color still loads. A nil theme is returned only when data is not a
// YAML mapping at all.
func Parse(name string, data []byte) (*Theme, []error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []error{&ParseError{Theme: name, Key: "(document)", Err: err}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, []error{&ParseError{Theme: name, Key: "(document)", Err: ErrEmptyTheme}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, []error{&ParseError{Theme: name, Line: root.Line, Key: "(document)", Err: ErrNotMapping}}
	}

	p := &parser{theme: newBaseTheme(name)}
	p.mapping(root, "", map[string]func(*yaml.Node, string){
		"padding": func(n *yaml.Node, key string) {
			p.fields(n, key, map[string]any{"x": &p.theme.Padding.X, "y": &p.theme.Padding.Y})
		},
		"background": func(n *yaml.Node, key string) { p.surface(n, key, &p.theme.Background) },
		"image":      func(n *yaml.Node, key string) { p.image(n, key) },
		"bar":        func(n *yaml.Node, key string) { p.bar(n, key) },
		"text":       func(n *yaml.Node, key string) { p.text(n, key) },
	})

	sort.SliceStable(p.problems, func(i, j int) bool {
		return lineOf(p.problems[i]) < lineOf(p.problems[j])
	})
	return p.theme, p.problems
}

// newBaseTheme returns the values every theme starts from.
func newBaseTheme(name string) *Theme {
	t := &Theme{Name: name}
	t.Text.Font = "Sans 12"
	t.Text.Align = AlignCenter
	t.Text.Color = 0xffffffff
	return t
}

type parser struct {
	theme    *Theme
	problems []error
}

func (p *parser) fail(n *yaml.Node, key string, err error) {
	p.problems = append(p.problems, &ParseError{Theme: p.theme.Name, Line: n.Line, Key: key, Err: err})
}

// mapping walks a mapping node and dispatches each key to its handler.
func (p *parser) mapping(n *yaml.Node, prefix string, handlers map[string]func(*yaml.Node, string)) {
	if n.Kind != yaml.MappingNode {
		p.fail(n, trimKey(prefix), ErrNotMapping)
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		key := prefix + k.Value
		h, ok := handlers[k.Value]
		if !ok {
			p.fail(k, key, ErrUnknownKey)
			continue
		}
		h(v, key)
	}
}

// fields decodes scalar fields one by one into their targets.
func (p *parser) fields(n *yaml.Node, prefix string, targets map[string]any) {
	p.mapping(n, prefix+".", p.scalarHandlers(targets))
}

// decode decodes v into target, leaving target untouched on error.
func (p *parser) decode(v *yaml.Node, key string, target any) bool {
	if err := v.Decode(target); err != nil {
		p.fail(v, key, err)
		return false
	}
	if ip, ok := target.(*int); ok && *ip < 0 {
		p.fail(v, key, ErrNegativeDim)
		*ip = 0
		return false
	}
	return true
}

// rect adds the placement fields of r to targets.
func rect(r *Rect, targets map[string]any) map[string]any {
	targets["x"] = &r.X
	targets["y"] = &r.Y
	targets["width"] = &r.Width
	targets["height"] = &r.Height
	return targets
}

// positioned marks the theme as custom when an element sets x or y.
func (p *parser) positioned(n *yaml.Node) {
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := n.Content[i].Value; k == "x" || k == "y" {
			p.theme.custom = true
		}
	}
}

func (p *parser) image(n *yaml.Node, key string) {
	img := &p.theme.Image
	p.positioned(n)
	handlers := p.scalarHandlers(rect(&img.Rect, map[string]any{}))
	handlers["picture"] = func(v *yaml.Node, k string) { p.surface(v, k, &img.Picture) }
	p.mapping(n, key+".", handlers)
}

func (p *parser) bar(n *yaml.Node, key string) {
	bar := &p.theme.Bar
	p.positioned(n)
	handlers := p.scalarHandlers(rect(&bar.Rect, map[string]any{
		"orientation": &bar.Orientation,
		"fill":        &bar.Fill,
	}))
	handlers["empty"] = func(v *yaml.Node, k string) { p.surface(v, k, &bar.Empty) }
	handlers["full"] = func(v *yaml.Node, k string) { p.surface(v, k, &bar.Full) }
	p.mapping(n, key+".", handlers)
}

func (p *parser) text(n *yaml.Node, key string) {
	text := &p.theme.Text
	p.positioned(n)
	handlers := p.scalarHandlers(rect(&text.Rect, map[string]any{
		"font":  &text.Font,
		"align": &text.Align,
		"color": &text.Color,
	}))
	handlers["surface"] = func(v *yaml.Node, k string) { p.surface(v, k, &text.Surface) }
	p.mapping(n, key+".", handlers)
}

func (p *parser) scalarHandlers(targets map[string]any) map[string]func(*yaml.Node, string) {
	handlers := make(map[string]func(*yaml.Node, string), len(targets))
	for name, target := range targets {
		handlers[name] = func(v *yaml.Node, key string) { p.decode(v, key, target) }
	}
	return handlers
}

func (p *parser) surface(n *yaml.Node, key string, s *Surface) {
	p.mapping(n, key+".", map[string]func(*yaml.Node, string){
		"layers": func(v *yaml.Node, k string) {
			if v.Kind != yaml.SequenceNode {
				p.fail(v, k, errors.New("expected a list of layers"))
				return
			}
			for i, item := range v.Content {
				if l, ok := p.layer(item, fmt.Sprintf("%s[%d]", k, i)); ok {
					s.Layers = append(s.Layers, l)
				}
			}
		},
		"border": func(v *yaml.Node, k string) {
			p.fields(v, k, map[string]any{
				"type":     &s.Border.Type,
				"width":    &s.Border.Width,
				"color":    &s.Border.Color,
				"topcolor": &s.Border.TopColor,
			})
			if s.Border.Type != BorderNone && s.Border.Width == 0 {
				s.Border.Width = 1
			}
		},
		"radius": func(v *yaml.Node, k string) {
			// A single number sets all four corners.
			if v.Kind == yaml.ScalarNode {
				var r int
				if p.decode(v, k, &r) {
					s.Radius = Radius{r, r, r, r}
				}
				return
			}
			p.fields(v, k, map[string]any{
				"tl": &s.Radius.TopLeft,
				"tr": &s.Radius.TopRight,
				"br": &s.Radius.BottomRight,
				"bl": &s.Radius.BottomLeft,
			})
		},
	})
}

func (p *parser) layer(n *yaml.Node, key string) (Layer, bool) {
	var l Layer
	if n.Kind != yaml.MappingNode {
		p.fail(n, key, ErrNotMapping)
		return l, false
	}

	sources := 0
	ok := true
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		sub := key + "." + k.Value
		switch k.Value {
		case "operator":
			ok = p.decode(v, sub, &l.Operator) && ok
		case "color":
			sources++
			l.Kind = LayerColor
			ok = p.decode(v, sub, &l.Color) && ok
		case "linear", "radial":
			sources++
			l.Kind = LayerLinear
			if k.Value == "radial" {
				l.Kind = LayerRadial
			}
			ok = p.decode(v, sub, &l.Gradient) && ok
			if len(l.Gradient.Stops) < 2 {
				p.fail(v, sub, errors.New("gradient needs at least two stops"))
				ok = false
			}
		case "png":
			sources++
			l.Kind = LayerPNG
			ok = p.decode(v, sub, &l.PNG) && ok
		default:
			p.fail(k, sub, ErrUnknownKey)
			ok = false
		}
	}
	if sources != 1 {
		p.fail(n, key, ErrBadLayer)
		return l, false
	}
	return l, ok
}

func trimKey(prefix string) string {
	if n := len(prefix); n > 0 && prefix[n-1] == '.' {
		return prefix[:n-1]
	}
	return prefix
}

func lineOf(err error) int {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}
