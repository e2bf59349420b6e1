package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"catchodds.dev/internal/persistence/indexdb"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/host"
	"catchodds.dev/internal/sim/runtime"
	"catchodds.dev/internal/sim/tuning"
)

func TestOpenOddsIndex_Backends(t *testing.T) {
	dir := t.TempDir()

	idx, err := openOddsIndex(dir, "s1", true, nil)
	if err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}

	t.Setenv("CATCHODDS_INDEX_BACKEND", "off")
	if idx, err := openOddsIndex(dir, "s1", false, nil); err != nil || idx != nil {
		t.Fatalf("off: idx=%v err=%v", idx, err)
	}

	t.Setenv("CATCHODDS_INDEX_BACKEND", "")
	idx, err = openOddsIndex(dir, "s1", false, nil)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if _, ok := idx.(*indexdb.SQLiteIndex); !ok {
		t.Fatalf("default backend=%T want *indexdb.SQLiteIndex", idx)
	}
	_ = idx.Close()
	if _, err := os.Stat(filepath.Join(dir, "index", "odds.sqlite")); err != nil {
		t.Fatalf("expected sqlite file: %v", err)
	}

	t.Setenv("CATCHODDS_INDEX_BACKEND", "d1")
	t.Setenv("CATCHODDS_INDEX_D1_INGEST_URL", "")
	if _, err := openOddsIndex(dir, "s1", false, nil); err == nil {
		t.Fatalf("expected error for d1 without ingest url")
	}
	t.Setenv("CATCHODDS_INDEX_D1_INGEST_URL", "http://127.0.0.1:1/ingest")
	idx, err = openOddsIndex(dir, "s1", false, nil)
	if err != nil {
		t.Fatalf("d1: %v", err)
	}
	if _, ok := idx.(*indexdb.D1Index); !ok {
		t.Fatalf("backend=%T want *indexdb.D1Index", idx)
	}
	_ = idx.Close()

	t.Setenv("CATCHODDS_INDEX_BACKEND", "postgres")
	if _, err := openOddsIndex(dir, "s1", false, nil); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CATCHODDS_TEST_BOOL", "yes")
	if !envBool("CATCHODDS_TEST_BOOL", true) {
		t.Fatalf("unparseable bool should fall back to default")
	}
	t.Setenv("CATCHODDS_TEST_BOOL", "1")
	if !envBool("CATCHODDS_TEST_BOOL", false) {
		t.Fatalf("envBool(1)=false")
	}
	t.Setenv("CATCHODDS_TEST_INT", "-4")
	if got := envInt("CATCHODDS_TEST_INT", 7); got != 7 {
		t.Fatalf("envInt=%d want 7", got)
	}
	t.Setenv("CATCHODDS_TEST_INT", "250")
	if got := envInt("CATCHODDS_TEST_INT", 7); got != 250 {
		t.Fatalf("envInt=%d want 250", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	configDir := filepath.Join("..", "..", "configs")
	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	scen, err := host.LoadScenario(filepath.Join(configDir, "scenario.yaml"))
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	tune := tuning.Defaults()
	tune.Simulation.TickRateHz = 50
	tune.Simulation.TilesPerTick = 4
	loop := runtime.New(runtime.Config{Tuning: tune, Seed: 3}, cats, scen, nil)

	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "odds.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	loop.SetOddsIndex(idx)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
		_ = idx.Close()
	}()

	deadline := time.Now().Add(5 * time.Second)
	for loop.CurrentTick() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	rec := httptest.NewRecorder()
	metricsHandler(loop, idx, "s1")(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{
		`catchodds_tick{session="s1"}`,
		`catchodds_cumulative_chance{session="s1",location="Town"}`,
		`catchodds_converged{session="s1",location="Town"}`,
		`catchodds_index_queue_depth{session="s1"}`,
		"# TYPE catchodds_index_dropped_total counter",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}
