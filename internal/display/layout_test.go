package display

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/thor/internal/proto"
	"github.com/jmylchreest/thor/internal/theme"
)

type fakeSizer map[string][2]int

func (f fakeSizer) ImageSize(path string) (int, int, error) {
	s, ok := f[path]
	if !ok {
		return 0, 0, errors.New("unknown image")
	}
	return s[0], s[1], nil
}

func mustTheme(t *testing.T, doc string) *theme.Theme {
	t.Helper()
	th, problems := theme.Parse("test", []byte(doc))
	require.NotNil(t, th)
	require.Empty(t, problems)
	return th
}

func headlessParams(kind proto.Kind, images ImageSizer) layoutParams {
	h := NewHeadless(1920, 1080, nil)
	return layoutParams{kind: kind, noteWidth: 300, measure: h.MeasureText, images: images}
}

func TestBarFraction(t *testing.T) {
	f, ok := BarFraction(0, 0)
	assert.False(t, ok)
	assert.Zero(t, f)

	f, ok = BarFraction(3, 2)
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)

	f, ok = BarFraction(1, 4)
	assert.True(t, ok)
	assert.Equal(t, 0.25, f)
}

func TestComputeScene_AutoLayout(t *testing.T) {
	th := mustTheme(t, `
padding: {x: 20, y: 20}
image: {width: 96, height: 96}
bar: {width: 200, height: 8}
`)
	msg := proto.NewMessage(0, "Volume", "/missing.png", "/img.png")
	msg.SetBar(3, 4)

	sc, err := computeScene(th, msg, headlessParams(proto.KindOSD, fakeSizer{"/img.png": {200, 100}}))
	require.NoError(t, err)

	assert.Equal(t, 240, sc.Width)
	assert.Equal(t, 200, sc.Height)

	require.NotNil(t, sc.Image)
	assert.Equal(t, "/img.png", sc.Image.Path)
	assert.Equal(t, theme.Rect{X: 72, Y: 20, Width: 96, Height: 96}, sc.Image.Box)
	assert.Equal(t, theme.Rect{X: 72, Y: 44, Width: 96, Height: 48}, sc.Image.Fit)

	require.NotNil(t, sc.Bar)
	assert.Equal(t, theme.Rect{X: 20, Y: 136, Width: 200, Height: 8}, sc.Bar.Box)
	assert.Equal(t, 0.75, sc.Bar.Fraction)

	require.NotNil(t, sc.Text)
	assert.Equal(t, theme.Rect{X: 20, Y: 164, Width: 200, Height: HeadlessLineHeight}, sc.Text.Box)
}

func TestComputeScene_NoteUsesNoteWidth(t *testing.T) {
	th := mustTheme(t, `padding: {x: 10, y: 10}`)
	sc, err := computeScene(th, proto.NewMessage(proto.FlagIsNote, "hi\nthere"), headlessParams(proto.KindNote, nil))
	require.NoError(t, err)

	assert.Equal(t, 300, sc.Width)
	assert.Equal(t, 10+2*HeadlessLineHeight+10, sc.Height)
	assert.Equal(t, 280, sc.Text.Box.Width)
}

func TestComputeScene_CustomDimensions(t *testing.T) {
	th := mustTheme(t, `
image: {x: 5, y: 5, width: 50, height: 50}
bar: {x: 60, y: 25, width: 150, height: 10}
`)
	msg := proto.NewMessage(proto.FlagNoImage, "")
	msg.SetBar(1, 2)

	sc, err := computeScene(th, msg, headlessParams(proto.KindOSD, nil))
	require.NoError(t, err)
	assert.Nil(t, sc.Image)
	assert.Nil(t, sc.Text)
	assert.Equal(t, theme.Rect{X: 60, Y: 25, Width: 150, Height: 10}, sc.Bar.Box)
	assert.Equal(t, 210, sc.Width)
	assert.Equal(t, 35, sc.Height)
}

func TestComputeScene_NothingToRender(t *testing.T) {
	th := theme.NewDefaultTheme()

	tests := []struct {
		name string
		msg  *proto.Message
	}{
		{"suppressed and empty", proto.NewMessage(proto.FlagNoImage|proto.FlagNoBar, "", "/a.png")},
		{"zero elements bar and no image", proto.NewMessage(0, "   ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := computeScene(th, tt.msg, headlessParams(proto.KindOSD, nil))
			assert.ErrorIs(t, err, ErrNothingToRender)
		})
	}
}

func TestFitImage_UnknownSizeFillsBox(t *testing.T) {
	box := theme.Rect{X: 1, Y: 2, Width: 30, Height: 40}
	assert.Equal(t, box, fitImage(box, "/nope", fakeSizer{}))
	assert.Equal(t, box, fitImage(box, "", nil))

	tall := fitImage(box, "/tall", fakeSizer{"/tall": {10, 80}})
	assert.Equal(t, theme.Rect{X: 13, Y: 2, Width: 5, Height: 40}, tall)
}
