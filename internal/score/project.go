package score

import "fmt"

// Mode selects the layout and catalog used by a project.
type Mode string

const (
	ModeGeneral Mode = "general"
	ModeDNR     Mode = "dnr"
)

// ParseMode accepts the mode names used in config and the HTTP API.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeGeneral, "":
		return ModeGeneral, nil
	case ModeDNR:
		return ModeDNR, nil
	default:
		return "", fmt.Errorf("unknown mode %q", value)
	}
}

// Meta is the musical header of a page. New pages inherit the project's.
type Meta struct {
	TimeSignature string `json:"time_signature"`
	Key           string `json:"key"`
	Tempo         int    `json:"tempo"`
}

// DefaultMeta is used when neither config nor project supplies one.
var DefaultMeta = Meta{TimeSignature: "4/4", Key: "C", Tempo: 120}

// Page is the authoritative state of one page: what rendering and export
// read. Its Content is written by reconciliation from the history engine.
type Page struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Meta    Meta    `json:"meta"`
	Content Content `json:"content"`
}

// Project is an ordered list of pages plus the defaults new pages inherit.
type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Mode     Mode   `json:"mode"`
	Defaults Meta   `json:"defaults"`
	Pages    []Page `json:"pages"`
}

// Clone deep-copies the project including every page's content.
func (p Project) Clone() Project {
	out := p
	out.Pages = make([]Page, len(p.Pages))
	for i, page := range p.Pages {
		page.Content = page.Content.Clone()
		out.Pages[i] = page
	}
	return out
}
