package gtkui

import (
	"strings"

	"github.com/diamondburned/gotk4/pkg/glib/v2"

	"github.com/jmylchreest/thor/internal/display"
)

// pangoMarkup renders parsed lines as Pango markup in the given font.
// Text is escaped, so only the styles ParseMarkup recognised survive.
func pangoMarkup(lines []display.Line, font string) string {
	var b strings.Builder
	b.WriteString(`<span font_desc="`)
	b.WriteString(glib.MarkupEscapeText(font, -1))
	b.WriteString(`">`)
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, span := range line {
			open, end := styleTags(span.Style)
			b.WriteString(open)
			b.WriteString(glib.MarkupEscapeText(span.Text, -1))
			b.WriteString(end)
		}
	}
	b.WriteString("</span>")
	return b.String()
}

func styleTags(s display.Style) (open, end string) {
	var o, c []string
	if s&display.Bold != 0 {
		o, c = append(o, "<b>"), append([]string{"</b>"}, c...)
	}
	if s&display.Italic != 0 {
		o, c = append(o, "<i>"), append([]string{"</i>"}, c...)
	}
	if s&display.Underline != 0 {
		o, c = append(o, "<u>"), append([]string{"</u>"}, c...)
	}
	return strings.Join(o, ""), strings.Join(c, "")
}
