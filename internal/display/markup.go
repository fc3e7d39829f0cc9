package display

import "strings"

// Style is a set of inline text attributes.
type Style uint8

const (
	Bold Style = 1 << iota
	Italic
	Underline
)

// Span is a run of text with one style.
type Span struct {
	Text  string
	Style Style
}

// Line is one rendered line of text.
type Line []Span

// Text returns the line without styling.
func (l Line) Text() string {
	var b strings.Builder
	for _, s := range l {
		b.WriteString(s.Text)
	}
	return b.String()
}

var markupTags = map[string]struct {
	style Style
	open  bool
}{
	"<b>":  {Bold, true},
	"</b>": {Bold, false},
	"<i>":  {Italic, true},
	"</i>": {Italic, false},
	"<u>":  {Underline, true},
	"</u>": {Underline, false},
}

// ParseMarkup splits message text into styled lines.
//
// <b>, <i> and <u> toggle bold, italic and underline. A newline or the two
// characters \n start a new line. A backslash makes the following '<', '\'
// or newline literal; an escaped newline joins the two lines. Any other
// '<' or backslash is kept as written.
func ParseMarkup(s string) []Line {
	var (
		lines []Line
		line  Line
		buf   strings.Builder
		style Style
	)
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		if n := len(line); n > 0 && line[n-1].Style == style {
			line[n-1].Text += buf.String()
		} else {
			line = append(line, Span{Text: buf.String(), Style: style})
		}
		buf.Reset()
	}
	breakLine := func() {
		flush()
		lines = append(lines, line)
		line = nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			switch s[i+1] {
			case '<', '\\':
				buf.WriteByte(s[i+1])
				i++
			case '\n':
				i++
			case 'n':
				breakLine()
				i++
			default:
				buf.WriteByte(c)
			}
		case c == '\n':
			breakLine()
		case c == '<':
			end := strings.IndexByte(s[i:], '>')
			if end < 0 {
				buf.WriteByte(c)
				continue
			}
			tag, ok := markupTags[s[i:i+end+1]]
			if !ok {
				buf.WriteByte(c)
				continue
			}
			flush()
			if tag.open {
				style |= tag.style
			} else {
				style &^= tag.style
			}
			i += end
		default:
			buf.WriteByte(c)
		}
	}
	flush()
	if len(line) > 0 || len(lines) > 0 {
		lines = append(lines, line)
	}
	return lines
}

// PlainText joins lines without styling.
func PlainText(lines []Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text()
	}
	return strings.Join(parts, "\n")
}

// blank reports whether lines contain no visible characters.
func blank(lines []Line) bool {
	for _, l := range lines {
		if strings.TrimSpace(l.Text()) != "" {
			return false
		}
	}
	return true
}
