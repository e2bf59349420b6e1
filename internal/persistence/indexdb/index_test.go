package indexdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"catchodds.dev/internal/oddsproto"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/tuning"
)

func sampleOdds(tick uint64, pct float64) oddsproto.OddsMsg {
	return oddsproto.OddsMsg{
		Type:            "ODDS",
		ProtocolVersion: oddsproto.Version,
		Tick:            tick,
		Location:        "Town",
		Date:            "Y1 spring 1",
		TimeOfDay:       900,
		Weather:         "sun",
		Cumulative:      1,
		Entries: []oddsproto.OddsEntry{
			{ID: "Town_Carp", DisplayName: "Carp", HookChancePercent: pct, Samples: int(tick)},
			{ID: "Default_Trash", DisplayName: "Trash", HookChancePercent: 100 - pct, OnlyNonFish: true},
		},
		Blocked: []oddsproto.BlockedEntry{{ID: "Town_Catfish", Reasons: []string{"requires_rain"}}},
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan oddsproto.OddsMsg, 1)}
	s.RecordOdds(sampleOdds(1, 10))
	s.RecordOdds(sampleOdds(2, 10))

	st := s.Stats()
	if st.DropOddsTotal != 1 {
		t.Fatalf("DropOddsTotal=%d want=1", st.DropOddsTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RecordsOddsAndCatalogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "odds.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	configDir := filepath.Join("..", "..", "..", "configs")
	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs(configDir, cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	for i := uint64(1); i <= 3; i++ {
		idx.RecordOdds(sampleOdds(i*10, float64(i)*10))
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	d, ok, err := idx.CatalogDigest(ctx, "items_defs")
	if err != nil || !ok || d != cats.Items.DefsDigest {
		t.Fatalf("items digest=%q ok=%v err=%v", d, ok, err)
	}
	if _, ok, _ := idx.CatalogDigest(ctx, "location:Sewer"); !ok {
		t.Fatalf("expected per-location catalog row")
	}

	latest, ok, err := idx.LatestOdds(ctx, "Town")
	if err != nil || !ok {
		t.Fatalf("LatestOdds ok=%v err=%v", ok, err)
	}
	if latest.Tick != 30 || len(latest.Entries) != 2 || latest.Blocked[0].Reasons[0] != "requires_rain" {
		t.Fatalf("latest=%+v", latest)
	}
	if _, ok, _ := idx.LatestOdds(ctx, "Sewer"); ok {
		t.Fatalf("expected no odds for Sewer")
	}

	hist, err := idx.EntryHistory(ctx, "Town", "Town_Carp", 2)
	if err != nil {
		t.Fatalf("EntryHistory: %v", err)
	}
	if len(hist) != 2 || hist[0].Tick != 30 || hist[1].HookChancePercent != 20 || hist[0].Weather != "sun" {
		t.Fatalf("hist=%+v", hist)
	}
}

func TestD1Index_RetainsBatchOnFlushFailure(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	applied := 0
	kinds := map[string]int{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		thisReq := reqCount
		mu.Unlock()

		if thisReq <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("x-catchodds-index-token") != "secret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var body struct {
			Events []d1Event `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		applied += len(body.Events)
		for _, ev := range body.Events {
			kinds[ev.Kind]++
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx, err := OpenD1(D1Config{
		Endpoint:      srv.URL,
		Token:         "secret",
		SessionID:     "s1",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OpenD1: %v", err)
	}
	defer func() { _ = idx.Close() }()

	idx.RecordOdds(sampleOdds(123, 50))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := applied >= 1
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	finalApplied, finalReqCount, odds := applied, reqCount, kinds["odds"]
	mu.Unlock()
	if finalApplied < 1 || odds != 1 {
		t.Fatalf("expected retained batch to be eventually delivered; applied=%d reqCount=%d", finalApplied, finalReqCount)
	}
	st := idx.Stats()
	if st.FlushFailTotal == 0 {
		t.Fatalf("expected flush failures to be recorded, got 0")
	}
	if st.QueueDroppedTotal != 0 {
		t.Fatalf("unexpected queue drops: %d", st.QueueDroppedTotal)
	}
}

func TestOpenD1_RequiresEndpointAndSession(t *testing.T) {
	if _, err := OpenD1(D1Config{SessionID: "s"}); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := OpenD1(D1Config{Endpoint: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected session id error")
	}
}
