package indexdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/tuning"
)

type catalogRow struct {
	Name   string
	Digest string
	JSON   []byte
}

// catalogRows lists the catalogs the engine actually runs with: the raw
// items.json, the item palette, each location (canonical JSON) and the
// applied tuning.
func catalogRows(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) []catalogRow {
	var rows []catalogRow
	if cats != nil {
		if configDir != "" {
			if b, err := os.ReadFile(filepath.Join(configDir, "items.json")); err == nil {
				rows = append(rows, catalogRow{Name: "items_defs", Digest: cats.Items.DefsDigest, JSON: b})
			}
		}
		if b, err := json.Marshal(cats.Items.Palette); err == nil {
			rows = append(rows, catalogRow{Name: "items_palette", Digest: cats.Items.PaletteDigest, JSON: b})
		}
		for _, id := range cats.LocationIDs() {
			def, _ := cats.Location(id)
			b, err := json.Marshal(def)
			if err != nil {
				continue
			}
			rows = append(rows, catalogRow{Name: "location:" + id, Digest: digest(b), JSON: b})
		}
	}
	if b, err := json.Marshal(tune); err == nil {
		rows = append(rows, catalogRow{Name: "tuning", Digest: digest(b), JSON: b})
	}
	return rows
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
