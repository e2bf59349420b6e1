package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"catchodds.dev/internal/oddsproto"
	"catchodds.dev/internal/persistence/indexdb"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/tuning"
)

func seedIndex(t *testing.T, path string) {
	t.Helper()
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	configDir := filepath.Join("..", "..", "configs")
	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs(configDir, cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	for tick := uint64(1); tick <= 3; tick++ {
		idx.RecordOdds(oddsproto.OddsMsg{
			Tick:       tick,
			Location:   "Town",
			Date:       "Y1 spring 1",
			TimeOfDay:  900,
			Weather:    "sun",
			Cumulative: 0.5,
			Converged:  tick == 3,
			Entries:    []oddsproto.OddsEntry{{ID: "Town_Carp", DisplayName: "Carp", HookChancePercent: float64(tick), Samples: int(tick) * 100}},
			Blocked:    []oddsproto.BlockedEntry{{ID: "Town_Catfish", Reasons: []string{"requires_rain"}}},
		})
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		rows = append(rows, m)
	}
	return rows
}

func TestRunQuery(t *testing.T) {
	data := t.TempDir()
	path := resolveDB(data, "s1", "")
	seedIndex(t, path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := runQuery(db, &buf, "odds", queryArgs{Location: "Town", Limit: 2}); err != nil {
		t.Fatalf("odds: %v", err)
	}
	rows := decodeLines(t, buf.String())
	if len(rows) != 2 || rows[0]["tick"].(float64) != 3 || rows[0]["converged"] != true {
		t.Fatalf("odds rows=%v", rows)
	}

	buf.Reset()
	if err := runQuery(db, &buf, "entries", queryArgs{Location: "Town", Entry: "Town_Carp"}); err != nil {
		t.Fatalf("entries: %v", err)
	}
	rows = decodeLines(t, buf.String())
	if len(rows) != 3 || rows[0]["hook_chance_percent"].(float64) != 3 {
		t.Fatalf("entries rows=%v", rows)
	}

	buf.Reset()
	if err := runQuery(db, &buf, "blocked", queryArgs{}); err != nil {
		t.Fatalf("blocked: %v", err)
	}
	rows = decodeLines(t, buf.String())
	if len(rows) != 1 || rows[0]["tick"].(float64) != 3 || rows[0]["entry_id"] != "Town_Catfish" {
		t.Fatalf("blocked rows=%v", rows)
	}

	buf.Reset()
	if err := runQuery(db, &buf, "catalogs", queryArgs{}); err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if !strings.Contains(buf.String(), `"name":"items_defs"`) {
		t.Fatalf("catalogs output=%s", buf.String())
	}

	if err := runQuery(db, &buf, "entries", queryArgs{Location: "Town"}); err == nil {
		t.Fatalf("expected missing -entry error")
	}
	if err := runQuery(db, &buf, "agents", queryArgs{}); err == nil || !strings.HasPrefix(err.Error(), "unknown query") {
		t.Fatalf("err=%v", err)
	}
}

func TestSessionLine(t *testing.T) {
	base := filepath.Join(t.TempDir(), "sessions")
	if err := os.MkdirAll(filepath.Join(base, "s1", "passes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := sessionLine(base, "s1"); got != "s1 traces=0 index=false" {
		t.Fatalf("line=%q", got)
	}
	if got := resolveDB("d", "", ""); got != "" {
		t.Fatalf("resolveDB=%q want empty", got)
	}
	if got := resolveDB("d", "s1", " x.sqlite "); got != "x.sqlite" {
		t.Fatalf("resolveDB=%q", got)
	}
}

func TestBuildControl(t *testing.T) {
	msg, err := buildControl("move", 0, "", "Sewer", 3, 4, 0, "", "")
	if err != nil {
		t.Fatalf("buildControl: %v", err)
	}
	if msg.Op != oddsproto.OpMove || msg.Location != "Sewer" || msg.Tile == nil || msg.Tile.X != 3 {
		t.Fatalf("msg=%+v", msg)
	}
	msg, _ = buildControl("MOVE", 0, "", "Town", -1, -1, 0, "", "")
	if msg.Tile != nil {
		t.Fatalf("tile=%+v want nil", msg.Tile)
	}
	if _, err := buildControl(" ", 0, "", "", 0, 0, 0, "", ""); err == nil {
		t.Fatalf("expected missing op error")
	}
}
