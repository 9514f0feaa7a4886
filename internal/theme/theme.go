// Package theme holds the fixed set of terminal palettes and the store that
// tracks, persists and applies the active one.
package theme

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Palette maps the terminal's color roles to hex colors.
type Palette struct {
	Background string `toml:"background"`
	Foreground string `toml:"foreground"`
	Cursor     string `toml:"cursor"`
	Selection  string `toml:"selection"`
	Black      string `toml:"black"`
	Red        string `toml:"red"`
	Green      string `toml:"green"`
	Yellow     string `toml:"yellow"`
	Blue       string `toml:"blue"`
	Magenta    string `toml:"magenta"`
	Cyan       string `toml:"cyan"`
	White      string `toml:"white"`
}

// Roles are the four semantic colors the surrounding chrome is drawn with.
type Roles struct {
	PrimaryBG     string `toml:"primary_bg"`
	SecondaryBG   string `toml:"secondary_bg"`
	TextPrimary   string `toml:"text_primary"`
	TextSecondary string `toml:"text_secondary"`
}

// Theme is one named palette.
type Theme struct {
	Name    string  `toml:"name"`
	Palette Palette `toml:"palette"`
	Roles   Roles   `toml:"roles"`
}

//go:embed themes.toml
var themesTOML string

var builtin = mustParse(themesTOML)

func mustParse(doc string) []Theme {
	themes, err := parse(doc)
	if err != nil {
		panic(err)
	}
	return themes
}

func parse(doc string) ([]Theme, error) {
	var file struct {
		Theme []Theme `toml:"theme"`
	}
	if _, err := toml.Decode(doc, &file); err != nil {
		return nil, fmt.Errorf("parse themes: %w", err)
	}
	if len(file.Theme) == 0 {
		return nil, fmt.Errorf("parse themes: no themes defined")
	}
	seen := make(map[string]bool, len(file.Theme))
	for _, t := range file.Theme {
		if t.Name == "" || seen[t.Name] {
			return nil, fmt.Errorf("parse themes: missing or duplicate name %q", t.Name)
		}
		seen[t.Name] = true
	}
	return file.Theme, nil
}

// Names returns the theme names in cycle order.
func Names() []string {
	names := make([]string, len(builtin))
	for i, t := range builtin {
		names[i] = t.Name
	}
	return names
}

// Lookup returns the named theme.
func Lookup(name string) (Theme, bool) {
	for _, t := range builtin {
		if t.Name == name {
			return t, true
		}
	}
	return Theme{}, false
}

// Next returns the theme after name in cycle order. Unknown names start the
// cycle from the beginning.
func Next(name string) Theme {
	for i, t := range builtin {
		if t.Name == name {
			return builtin[(i+1)%len(builtin)]
		}
	}
	return builtin[0]
}
