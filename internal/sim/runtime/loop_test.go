package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"catchodds.dev/internal/oddsproto"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/host"
	"catchodds.dev/internal/sim/tuning"
)

type recordingPasses struct{ entries []PassEntry }

func (r *recordingPasses) WritePass(e PassEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

type recordingIndex struct{ msgs []oddsproto.OddsMsg }

func (r *recordingIndex) RecordOdds(m oddsproto.OddsMsg) { r.msgs = append(r.msgs, m) }

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	dir := filepath.Join("..", "..", "..", "configs")
	cat, err := catalogs.Load(dir)
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	scen, err := host.LoadScenario(filepath.Join(dir, "scenario.yaml"))
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	tune := tuning.Defaults()
	tune.Simulation.TickRateHz = 50
	tune.Simulation.TilesPerTick = 4
	return New(Config{Tuning: tune, Seed: 7, IndexEvery: 3}, cat, scen, nil)
}

func TestStepOnce_PublishesOddsAndTrace(t *testing.T) {
	l := newTestLoop(t)
	passes := &recordingPasses{}
	index := &recordingIndex{}
	l.SetPassLogger(passes)
	l.SetOddsIndex(index)

	out := make(chan []byte, 1)
	l.handleJoin(JoinRequest{SessionID: "O1", Out: out})

	var last oddsproto.OddsMsg
	for i := 0; i < 6; i++ {
		msg, err := l.StepOnce()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		last = msg
	}
	if last.Tick != 6 || last.Location != "Town" || last.Casts != 4 {
		t.Fatalf("last=%+v", last)
	}
	if len(last.Entries) == 0 {
		t.Fatalf("expected catchable entries")
	}
	if len(passes.entries) != 6 || passes.entries[5].Tick != 6 {
		t.Fatalf("passes=%d", len(passes.entries))
	}
	if len(index.msgs) != 2 || index.msgs[0].Tick != 3 || index.msgs[1].Tick != 6 {
		t.Fatalf("index=%d", len(index.msgs))
	}

	// The client buffer holds one message; it must be the newest.
	var got oddsproto.OddsMsg
	if err := json.Unmarshal(<-out, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != "ODDS" || got.Tick != 6 || got.Blocked != nil {
		t.Fatalf("got=%+v", got)
	}
}

func TestPublish_FollowsSubscribedLocation(t *testing.T) {
	l := newTestLoop(t)
	out := make(chan []byte, 1)
	l.handleJoin(JoinRequest{SessionID: "O1", Out: out})
	l.handleSubscribe(SubscribeRequest{SessionID: "O1", Location: "Sewer", IncludeBlocked: true})
	if _, err := l.StepOnce(); err != nil {
		t.Fatalf("step: %v", err)
	}
	var got oddsproto.OddsMsg
	if err := json.Unmarshal(<-out, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Location != "Sewer" {
		t.Fatalf("location=%q want Sewer", got.Location)
	}

	// Unknown locations are ignored.
	l.handleSubscribe(SubscribeRequest{SessionID: "O1", Location: "Moon"})
	if l.clients["O1"].location != "Sewer" {
		t.Fatalf("location=%q", l.clients["O1"].location)
	}
	l.handleLeave("O1")
	if len(l.clients) != 0 {
		t.Fatalf("clients=%d", len(l.clients))
	}
}

func TestApplyControl(t *testing.T) {
	l := newTestLoop(t)

	if err := l.applyControl(oddsproto.ControlMsg{Op: oddsproto.OpSetTime, TimeOfDay: 2575}); err == nil {
		t.Fatalf("expected invalid time to be rejected")
	}
	if l.scen.TimeOfDay != 900 {
		t.Fatalf("time=%d want 900", l.scen.TimeOfDay)
	}
	if err := l.applyControl(oddsproto.ControlMsg{Op: oddsproto.OpSetTime, TimeOfDay: 1930}); err != nil {
		t.Fatalf("set time: %v", err)
	}
	if err := l.applyControl(oddsproto.ControlMsg{Op: "set_weather", Weather: " Rain "}); err != nil || l.scen.Weather != "rain" {
		t.Fatalf("weather=%q err=%v", l.scen.Weather, err)
	}
	err := l.applyControl(oddsproto.ControlMsg{Op: oddsproto.OpMove, Location: "Moon"})
	if !errors.Is(err, ErrUnknownLocation) {
		t.Fatalf("err=%v want ErrUnknownLocation", err)
	}
	if err := l.applyControl(oddsproto.ControlMsg{Op: oddsproto.OpMove, Location: "Sewer", Tile: &oddsproto.Tile{X: 2, Y: 1}}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if l.scen.Player.Location != "Sewer" || l.scen.Player.Tile.X != 2 {
		t.Fatalf("player=%+v", l.scen.Player)
	}
	if err := l.applyControl(oddsproto.ControlMsg{Op: oddsproto.OpAdvanceDays, Days: 28}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if l.scen.Date.Season != "summer" || l.scen.Date.Day != 1 {
		t.Fatalf("date=%+v", l.scen.Date)
	}
	if err := l.applyControl(oddsproto.ControlMsg{Op: "JUMP"}); !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("err=%v want ErrUnknownOp", err)
	}
}

func TestEquipResetsStatistics(t *testing.T) {
	l := newTestLoop(t)
	for i := 0; i < 3; i++ {
		if _, err := l.StepOnce(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	sampled := 0
	for _, e := range l.sess.Location("Town").Entries() {
		sampled += e.ActualHookChance.Count()
	}
	if sampled == 0 {
		t.Fatalf("expected samples before equip")
	}

	if err := l.applyControl(oddsproto.ControlMsg{Op: oddsproto.OpEquip, Rod: "fiberglass"}); err != nil {
		t.Fatalf("equip: %v", err)
	}
	for _, e := range l.sess.Location("Town").Entries() {
		if n := e.ActualHookChance.Count(); n != 0 {
			t.Fatalf("%s samples=%d want 0", e.ID, n)
		}
	}
	if l.sess.Location("Town").Queued() == 0 {
		t.Fatalf("expected a queued recompute after reset")
	}
}

func TestRun_ServesRequests(t *testing.T) {
	l := newTestLoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	qctx, qcancel := context.WithTimeout(ctx, 2*time.Second)
	defer qcancel()

	if err := l.Control(qctx, oddsproto.ControlMsg{Op: oddsproto.OpSetWeather, Weather: "storm"}); err != nil {
		t.Fatalf("control: %v", err)
	}
	st, err := l.RequestStatus(qctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Weather != "storm" || st.TickRateHz != 50 || len(st.Locations) != 3 {
		t.Fatalf("status=%+v", st)
	}
	if _, err := l.RequestOdds(qctx, "Moon"); !errors.Is(err, ErrUnknownLocation) {
		t.Fatalf("err=%v want ErrUnknownLocation", err)
	}
	odds, err := l.RequestOdds(qctx, "")
	if err != nil || odds.Location != "Town" {
		t.Fatalf("odds=%+v err=%v", odds, err)
	}

	l.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}
}
