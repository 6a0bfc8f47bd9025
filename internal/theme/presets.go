// ABOUTME: Embedded catalog of named theme presets
// ABOUTME: Parsed once from presets.toml and offered on the admin theme panel

package theme

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

//go:embed presets.toml
var presetsTOML []byte

// Preset is a named palette from the embedded catalog.
type Preset struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
	Theme
}

type presetCatalog struct {
	Presets []Preset `toml:"presets"`
}

var presets []Preset

func init() {
	var catalog presetCatalog
	if err := toml.Unmarshal(presetsTOML, &catalog); err != nil {
		panic(fmt.Sprintf("theme: parsing embedded presets.toml: %v", err))
	}
	presets = catalog.Presets
}

// Presets returns the embedded preset catalog in file order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// PresetByID returns the preset with the given id, or false.
func PresetByID(id string) (Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}
