// Package catalog is the read-only notation catalog: which symbol a typed
// key or MIDI note stands for, per layout mode, and which articulation
// glyphs exist.
//
// The stock catalog is embedded YAML; a file given in config replaces it.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/treykane/cli-notation/internal/score"
)

//go:embed catalog.yaml
var stockYAML []byte

// entry is one symbol as written in the YAML file.
type entry struct {
	ID    string `yaml:"id"`
	Key   string `yaml:"key"`
	Name  string `yaml:"name"`
	Image string `yaml:"image"`
	MIDI  []int  `yaml:"midi"`
}

// Articulation describes an articulation glyph.
type Articulation struct {
	Glyph      string `yaml:"glyph" json:"glyph"`
	Name       string `yaml:"name" json:"name"`
	Extensible bool   `yaml:"extensible" json:"extensible"`
}

type file struct {
	General       []entry        `yaml:"general"`
	DNR           []entry        `yaml:"dnr"`
	Articulations []Articulation `yaml:"articulations"`
}

type modeTable struct {
	byKey map[string]score.SymbolRef
	byPC  map[int]score.SymbolRef
	keys  []string
}

// Catalog is immutable after Load.
type Catalog struct {
	modes         map[score.Mode]modeTable
	articulations []Articulation
}

// Stock returns the embedded catalog.
func Stock() *Catalog {
	c, err := Parse(stockYAML)
	if err != nil {
		panic("catalog: embedded catalog is invalid: " + err.Error())
	}
	return c
}

// Load reads a catalog file. An empty path yields the stock catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Stock(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	general, err := buildTable(f.General)
	if err != nil {
		return nil, fmt.Errorf("general: %w", err)
	}
	dnr, err := buildTable(f.DNR)
	if err != nil {
		return nil, fmt.Errorf("dnr: %w", err)
	}
	return &Catalog{
		modes: map[score.Mode]modeTable{
			score.ModeGeneral: general,
			score.ModeDNR:     dnr,
		},
		articulations: f.Articulations,
	}, nil
}

func buildTable(entries []entry) (modeTable, error) {
	t := modeTable{
		byKey: make(map[string]score.SymbolRef, len(entries)),
		byPC:  make(map[int]score.SymbolRef),
	}
	for _, e := range entries {
		if e.ID == "" || e.Key == "" {
			return t, fmt.Errorf("symbol %q needs both id and key", e.Name)
		}
		if _, dup := t.byKey[e.Key]; dup {
			return t, fmt.Errorf("key %q mapped twice", e.Key)
		}
		ref := score.SymbolRef{ID: e.ID, Key: e.Key, Name: e.Name, Image: e.Image}
		t.byKey[e.Key] = ref
		t.keys = append(t.keys, e.Key)
		for _, pc := range e.MIDI {
			if pc < 0 || pc > 11 {
				return t, fmt.Errorf("symbol %q: pitch class %d out of range", e.ID, pc)
			}
			t.byPC[pc] = ref
		}
	}
	sort.Strings(t.keys)
	return t, nil
}

// LookupByKey maps a typed key to a symbol in the given mode.
func (c *Catalog) LookupByKey(mode score.Mode, key string) (score.SymbolRef, bool) {
	ref, ok := c.modes[mode].byKey[key]
	return ref, ok
}

// LookupByMIDI maps a MIDI note number to a symbol and its octave
// (MIDI 60 is middle C, octave 4).
func (c *Catalog) LookupByMIDI(mode score.Mode, note int) (score.SymbolRef, int, bool) {
	if note < 0 || note > 127 {
		return score.SymbolRef{}, 0, false
	}
	ref, ok := c.modes[mode].byPC[note%12]
	if !ok {
		return score.SymbolRef{}, 0, false
	}
	return ref, note/12 - 1, true
}

// Keys lists the mapped keys of a mode in sorted order.
func (c *Catalog) Keys(mode score.Mode) []string {
	return append([]string(nil), c.modes[mode].keys...)
}

// Articulation looks up a glyph.
func (c *Catalog) Articulation(glyph string) (Articulation, bool) {
	for _, a := range c.articulations {
		if a.Glyph == glyph {
			return a, true
		}
	}
	return Articulation{}, false
}

// Articulations lists every glyph in file order.
func (c *Catalog) Articulations() []Articulation {
	return append([]Articulation(nil), c.articulations...)
}
