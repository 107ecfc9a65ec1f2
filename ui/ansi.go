package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v3"
	"github.com/gdamore/tcell/v3/color"
	"github.com/leaanthony/go-ansi-parser"
	"github.com/rs/zerolog/log"
)

// DrawBytesMultiline renders child output that may carry ANSI colour codes.
// When the output is taller than the screen the most recent lines win.
func DrawBytesMultiline(s tcell.Screen, start_x, start_y int, style tcell.Style, buffer []byte) {
	parsed, err := ansi.Parse(string(buffer), ansi.WithIgnoreInvalidCodes())
	if err != nil {
		log.Error().Err(err).Msg("failed to parse ANSI")
		return
	}
	max_x, _ := s.Size()
	lines := fitToWidth(max_x-start_x, parsed)
	drawStyledText(s, start_x, start_y, style, lines)
}

func drawStyledText(s tcell.Screen, x_start, y_start int, base tcell.Style, lines [][]*ansi.StyledText) {
	_, y_max := s.Size()
	rows := y_max - y_start
	if rows <= 0 {
		return
	}
	first := max(len(lines)-rows, 0)
	for y_offset, line := range lines[first:] {
		x := x_start
		y := y_start + y_offset
		for _, seg := range line {
			style := convertStyle(base, seg)
			for _, r := range seg.Label {
				s.SetContent(x, y, r, nil, style)
				x++
			}
		}
	}
}

// fitToWidth splits parsed segments into lines on newlines and wraps lines
// longer than width runes. Styling is carried over to every piece.
func fitToWidth(width int, parsed []*ansi.StyledText) [][]*ansi.StyledText {
	if width <= 0 {
		width = 1
	}
	lines := make([][]*ansi.StyledText, 0)
	current := make([]*ansi.StyledText, 0)
	label := strings.Builder{}
	col := 0
	piece := func(section *ansi.StyledText) {
		if label.Len() == 0 {
			return
		}
		current = append(current, &ansi.StyledText{
			Label:      label.String(),
			FgCol:      section.FgCol,
			BgCol:      section.BgCol,
			Style:      section.Style,
			ColourMode: section.ColourMode,
			Offset:     section.Offset,
			Len:        label.Len(),
		})
		label.Reset()
	}
	breakLine := func(section *ansi.StyledText) {
		piece(section)
		lines = append(lines, current)
		current = make([]*ansi.StyledText, 0)
		col = 0
	}
	for _, section := range parsed {
		for _, r := range section.Label {
			if r == '\n' {
				breakLine(section)
				continue
			}
			if col >= width {
				breakLine(section)
			}
			label.WriteRune(r)
			col++
		}
		piece(section)
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}
	log.Debug().Int("len.lines", len(lines)).Int("len.parsed", len(parsed)).Msg("fit to width")
	return lines
}

func StripColorCodes(buf []byte) string {
	result, err := ansi.Cleanse(string(buf), ansi.WithIgnoreInvalidCodes())
	if err != nil {
		return fmt.Sprintf("Failed to strip color codes: %v", err)
	}
	return result
}
func convertStyle(style tcell.Style, t *ansi.StyledText) tcell.Style {
	if t == nil {
		return style
	}
	if t.FgCol != nil {
		style = style.Foreground(convertStyleColor(t.FgCol))
	}
	if t.BgCol != nil {
		style = style.Background(convertStyleColor(t.BgCol))
	}
	if t.Blinking() {
		style = style.Blink(true)
	}
	if t.Bold() {
		style = style.Bold(true)
	}
	if t.Faint() {
		style = style.Dim(true)
	}
	if t.Italic() {
		style = style.Italic(true)
	}
	if t.Strikethrough() {
		style = style.StrikeThrough(true)
	}
	if t.Underlined() {
		style = style.Underline(true)
	}
	return style
}

// convertStyleColor prefers the named colour so the terminal palette applies.
func convertStyleColor(c *ansi.Col) color.Color {
	result := color.GetColor(strings.ToLower(c.Name))
	if result.Valid() {
		return result
	}
	return color.NewRGBColor(
		int32(c.Rgb.R),
		int32(c.Rgb.G),
		int32(c.Rgb.B),
	)
}
