package export

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

var (
	rendererMu    sync.Mutex
	rendererCache = map[int]*glamour.TermRenderer{}
)

// Render draws Markdown for a terminal of the given width.
func Render(md []byte, width int) (string, error) {
	r, err := renderer(width)
	if err != nil {
		return "", err
	}
	rendererMu.Lock()
	defer rendererMu.Unlock()
	return r.Render(string(md))
}

func renderer(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = 80
	}
	rendererMu.Lock()
	defer rendererMu.Unlock()
	if r, ok := rendererCache[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		styleOption(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	rendererCache[width] = r
	return r, nil
}

// styleOption reads NOTATION_GLAMOUR_STYLE, then GLAMOUR_STYLE, defaulting
// to "dark". "auto" queries the terminal background.
func styleOption() glamour.TermRendererOption {
	style := strings.ToLower(strings.TrimSpace(os.Getenv("NOTATION_GLAMOUR_STYLE")))
	if style == "" {
		style = strings.ToLower(strings.TrimSpace(os.Getenv("GLAMOUR_STYLE")))
	}
	switch style {
	case "auto":
		return glamour.WithAutoStyle()
	case "dark", "light", "notty":
		return glamour.WithStandardStyle(style)
	default:
		return glamour.WithStandardStyle("dark")
	}
}
