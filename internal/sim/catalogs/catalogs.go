package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrUnknownItem = errors.New("unknown item")

type Catalogs struct {
	Items     ItemCatalog
	Locations LocationCatalog
}

type ItemCatalog struct {
	Defs          map[string]ItemDef
	Palette       []string
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind string   `json:"kind"` // "fish","trash","object"
	Fish *FishDef `json:"fish,omitempty"`
}

// IsFish reports whether the item carries fish data. Items without it are
// the "non-fish" catches (trash, treasure, objects).
func (d ItemDef) IsFish() bool { return d.Fish != nil }

type FishDef struct {
	Difficulty      int      `json:"difficulty"`
	TimeRanges      [][2]int `json:"time_ranges"`
	Weather         string   `json:"weather"` // "sunny","rainy","both"
	MaxDepth        int      `json:"max_depth"`
	SpawnMultiplier float64  `json:"spawn_multiplier"`
	DepthMultiplier float64  `json:"depth_multiplier"`
	MinLevel        int      `json:"min_level"`
	TutorialCatch   bool     `json:"tutorial_catch,omitempty"`
}

type LocationCatalog struct {
	ByID   map[string]LocationDef
	Digest string
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadLocations(filepath.Join(configDir, "locations"), &c.Locations); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)
	if err := validate(itemsSchema, "items.json", raw); err != nil {
		return err
	}

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if !IsQualified(d.ID) {
			return fmt.Errorf("items.json: item id %q is not qualified", d.ID)
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadLocations(dir string, out *LocationCatalog) error {
	out.ByID = map[string]LocationDef{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		name := filepath.Base(p)
		if err := validate(locationSchema, "location "+name, b); err != nil {
			return err
		}
		var loc LocationDef
		if err := json.Unmarshal(b, &loc); err != nil {
			return fmt.Errorf("location %s: %w", name, err)
		}
		if _, dup := out.ByID[loc.ID]; dup {
			return fmt.Errorf("location %s: duplicate id %q", name, loc.ID)
		}
		if err := loc.check(); err != nil {
			return fmt.Errorf("location %s: %w", name, err)
		}
		out.ByID[loc.ID] = loc
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

// Location returns the location definition, or false if it is unknown.
func (c *Catalogs) Location(id string) (LocationDef, bool) {
	loc, ok := c.Locations.ByID[id]
	return loc, ok
}

// LocationIDs returns all location ids sorted.
func (c *Catalogs) LocationIDs() []string {
	ids := make([]string, 0, len(c.Locations.ByID))
	for id := range c.Locations.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Digests returns the content digests keyed by catalog name.
func (c *Catalogs) Digests() map[string]string {
	return map[string]string{
		"items":        c.Items.DefsDigest,
		"item_palette": c.Items.PaletteDigest,
		"locations":    c.Locations.Digest,
	}
}
