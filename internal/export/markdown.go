package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/treykane/cli-notation/internal/score"
)

// Markdown renders the project as a Markdown document: one section per page
// with its header, a notes table and the annotations.
func Markdown(p score.Project) []byte {
	var b bytes.Buffer
	title := strings.TrimSpace(p.Name)
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "# %s\n\n", escape(title))
	fmt.Fprintf(&b, "Mode: %s, %d page(s)\n", p.Mode, len(p.Pages))

	for i, page := range p.Pages {
		writePage(&b, i, page)
	}
	return b.Bytes()
}

func writePage(b *bytes.Buffer, i int, page score.Page) {
	heading := page.Title
	if heading == "" {
		heading = fmt.Sprintf("Page %d", i+1)
	}
	fmt.Fprintf(b, "\n## %s\n\n", escape(heading))
	fmt.Fprintf(b, "Time %s, key %s, tempo %d\n", page.Meta.TimeSignature, page.Meta.Key, page.Meta.Tempo)

	c := page.Content
	if c.IsEmpty() {
		b.WriteString("\n_Empty page._\n")
		return
	}

	if len(c.Notes) > 0 {
		lyrics := make(map[string]string, len(c.Lyrics))
		for _, l := range c.Lyrics {
			lyrics[l.NoteID] = strings.TrimSpace(lyrics[l.NoteID] + " " + l.Text)
		}
		b.WriteString("\n| # | Symbol | Octave | Line | X | Lyric |\n")
		b.WriteString("|---|--------|--------|------|---|-------|\n")
		for n, note := range c.Notes {
			name := note.Symbol.Name
			if note.Flipped {
				name += " (flipped)"
			}
			fmt.Fprintf(b, "| %d | %s | %d | %d | %g | %s |\n",
				n+1, escape(name), note.Octave, note.Stave+1, note.X, escape(lyrics[note.ID]))
		}
	}

	if len(c.Texts) > 0 {
		b.WriteString("\n### Text\n\n")
		for _, t := range c.Texts {
			fmt.Fprintf(b, "- %s at (%g, %g)\n", styled(t), t.X, t.Y)
		}
	}
	if len(c.Articulations) > 0 {
		b.WriteString("\n### Articulations\n\n")
		for _, a := range c.Articulations {
			if a.Extensible {
				fmt.Fprintf(b, "- %s at (%g, %g), %gx%g\n", a.Glyph, a.X, a.Y, a.Width, a.Height)
				continue
			}
			fmt.Fprintf(b, "- %s at (%g, %g)\n", a.Glyph, a.X, a.Y)
		}
	}
	if len(c.Highlights) > 0 {
		b.WriteString("\n### Highlights\n\n")
		for _, h := range c.Highlights {
			fmt.Fprintf(b, "- %s at (%g, %g), %gx%g, opacity %.2f\n", h.Color, h.X, h.Y, h.Width, h.Height, h.Opacity)
		}
	}
}

func styled(t score.TextElement) string {
	text := escape(t.Text)
	if t.Bold {
		text = "**" + text + "**"
	}
	if t.Italic {
		text = "_" + text + "_"
	}
	if t.Underline {
		text += " (underlined)"
	}
	return text
}

var escaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "#", `\#`, "\n", " ")

func escape(s string) string {
	return escaper.Replace(s)
}
