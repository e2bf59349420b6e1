package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	persistlog "catchodds.dev/internal/persistence/log"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/host"
	"catchodds.dev/internal/sim/runtime"
	"catchodds.dev/internal/sim/tuning"
	"catchodds.dev/internal/transport/odds"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		seed         = flag.Int64("seed", 1337, "simulation seed")
		configDir    = flag.String("configs", "./configs", "config directory")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		scenarioPath = flag.String("scenario", "", "path to scenario.yaml (default: <configs>/scenario.yaml)")
		sessionID    = flag.String("session", "", "session id recorded with indexed odds (default: random)")
		disableDB    = flag.Bool("disable_db", false, "disable odds indexing (odds history + catalog digests)")
		disableTrace = flag.Bool("disable_trace", false, "disable the compressed pass trace")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	sp := strings.TrimSpace(*scenarioPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "scenario.yaml")
	}
	scen, err := host.LoadScenario(sp)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}
	if _, ok := cats.Location(scen.Player.Location); !ok {
		logger.Fatalf("scenario: player.location %q is not in the catalogs", scen.Player.Location)
	}

	sid := strings.TrimSpace(*sessionID)
	if sid == "" {
		sid = uuid.NewString()
	}
	sessionDir := filepath.Join(*dataDir, "sessions", sid)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	// Optional: read-model index backend (does not affect the simulation).
	idx, err := openOddsIndex(sessionDir, sid, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	engineLog := log.New(os.Stdout, "[fishing] ", log.LstdFlags|log.Lmicroseconds)
	loop := runtime.New(runtime.Config{Tuning: tune, Seed: *seed}, cats, scen, engineLog)
	if idx != nil {
		loop.SetOddsIndex(idx)
	}
	if !*disableTrace {
		passLog := persistlog.NewPassLogger(sessionDir)
		defer passLog.Close()
		loop.SetPassLogger(passLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("loop stopped: %v", err)
		}
	}()

	var history odds.History
	if h, ok := idx.(odds.History); ok {
		history = h
	}
	r := odds.NewServer(loop, history, logger).Router()
	r.Get("/metrics", metricsHandler(loop, idx, sid))
	if envBool("CATCHODDS_ENABLE_PPROF_HTTP", false) {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("session=%s location=%s date=%s listening on %s", sid, scen.Player.Location, scen.Today(), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	// Index and trace are closed by the deferred calls once the loop has stopped writing.
	cancel()
	<-loopDone
}

func metricsHandler(loop *runtime.Loop, idx oddsIndex, sid string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, err := loop.RequestStatus(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		cur, err := loop.RequestOdds(ctx, "")
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}

		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(rw, "# HELP catchodds_tick Current simulation tick.\n")
		fmt.Fprintf(rw, "# TYPE catchodds_tick gauge\n")
		fmt.Fprintf(rw, "catchodds_tick{session=%q} %d\n", sid, st.Tick)

		fmt.Fprintf(rw, "# HELP catchodds_subscribers Connected feed clients.\n")
		fmt.Fprintf(rw, "# TYPE catchodds_subscribers gauge\n")
		fmt.Fprintf(rw, "catchodds_subscribers{session=%q} %d\n", sid, st.Subscribers)

		fmt.Fprintf(rw, "# HELP catchodds_cumulative_chance Cumulative chance to hook anything at the player's location.\n")
		fmt.Fprintf(rw, "# TYPE catchodds_cumulative_chance gauge\n")
		fmt.Fprintf(rw, "catchodds_cumulative_chance{session=%q,location=%q} %.6f\n", sid, cur.Location, cur.Cumulative)

		converged := 0
		if cur.Converged {
			converged = 1
		}
		fmt.Fprintf(rw, "# HELP catchodds_converged Whether the location's odds have converged.\n")
		fmt.Fprintf(rw, "# TYPE catchodds_converged gauge\n")
		fmt.Fprintf(rw, "catchodds_converged{session=%q,location=%q} %d\n", sid, cur.Location, converged)

		fmt.Fprintf(rw, "# HELP catchodds_entry_hook_chance Hook chance per catchable entry (percent).\n")
		fmt.Fprintf(rw, "# TYPE catchodds_entry_hook_chance gauge\n")
		for _, e := range cur.Entries {
			fmt.Fprintf(rw, "catchodds_entry_hook_chance{session=%q,location=%q,entry=%q} %.4f\n", sid, cur.Location, e.ID, e.HookChancePercent)
		}

		writeIndexMetrics(rw, idx, sid)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
