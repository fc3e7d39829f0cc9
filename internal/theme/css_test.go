package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTheme_CSS(t *testing.T) {
	css := NewDefaultTheme().CSS("thor-osd")

	assert.Contains(t, css, ".thor-osd {")
	assert.Contains(t, css, "border-radius: 12px 12px 12px 12px")
	assert.Contains(t, css, ".thor-osd progressbar.thor-bar trough {")
	assert.Contains(t, css, "min-height: 8px")
	assert.Contains(t, css, "linear-gradient(90deg, rgba(82, 148, 226, 1.000) 0%, rgba(127, 180, 255, 1.000) 100%)")
	assert.Contains(t, css, ".thor-osd .thor-text {")
}

func TestSurfaceDecls_LayerOrderAndBorders(t *testing.T) {
	s := Surface{
		Layers: []Layer{
			{Kind: LayerColor, Color: 0xff000000},
			{Kind: LayerPNG, PNG: "/tmp/x.png", Operator: OpDarken},
		},
		Border: Border{Type: BorderTopLeft, Width: 2, Color: 0xff000000, TopColor: 0xffffffff},
	}
	decls := surfaceDecls(s)

	assert.Contains(t, decls, `background-image: url("file:///tmp/x.png"), linear-gradient(rgba(0, 0, 0, 1.000), rgba(0, 0, 0, 1.000))`)
	assert.Contains(t, decls, "background-blend-mode: darken, normal")
	assert.Contains(t, decls, "border-color: rgba(255, 255, 255, 1.000) rgba(0, 0, 0, 1.000) rgba(0, 0, 0, 1.000) rgba(255, 255, 255, 1.000)")
	assert.Empty(t, surfaceDecls(Surface{}))
}

func TestTheme_CSSBarFillRule(t *testing.T) {
	th := NewDefaultTheme()
	th.Bar.Width, th.Bar.Height = 200, 8
	th.Bar.Full = Surface{Layers: []Layer{{Kind: LayerColor, Color: 0xff00ff00}}}

	th.Bar.Fill = FillFull
	full := th.CSS("thor-osd")
	assert.Contains(t, full, "background-size: 100% 100%")
	assert.NotContains(t, full, "background-size: 200px 8px")

	th.Bar.Fill = FillEmpty
	empty := th.CSS("thor-osd")
	assert.Contains(t, empty, "background-size: 200px 8px")
	assert.NotContains(t, empty, "background-position")
	assert.NotEqual(t, full, empty)

	th.Bar.Orientation = RightLeft
	assert.Contains(t, th.CSS("thor-osd"), "background-position: right bottom")
}
