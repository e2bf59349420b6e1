package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"catchodds.dev/internal/persistence/indexdb"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/runtime"
	"catchodds.dev/internal/sim/tuning"
)

type oddsIndex interface {
	runtime.OddsIndex
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
}

func openOddsIndex(dataDir, sessionID string, disableDB bool, logger *log.Logger) (oddsIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CATCHODDS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "odds.sqlite"))
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("CATCHODDS_INDEX_D1_INGEST_URL"))
		if endpoint == "" {
			return nil, fmt.Errorf("CATCHODDS_INDEX_BACKEND=d1 but CATCHODDS_INDEX_D1_INGEST_URL is empty")
		}
		return indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(os.Getenv("CATCHODDS_INDEX_D1_TOKEN")),
			SessionID:     sessionID,
			BatchSize:     envInt("CATCHODDS_INDEX_D1_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("CATCHODDS_INDEX_D1_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported CATCHODDS_INDEX_BACKEND: %s", backend)
	}
}

func writeIndexMetrics(rw http.ResponseWriter, idx oddsIndex, sid string) {
	var depth int
	var dropped, failed uint64
	switch s := idx.(type) {
	case *indexdb.SQLiteIndex:
		st := s.Stats()
		depth, dropped, failed = st.QueueDepth, st.DropOddsTotal, st.WriteFailTotal
	case *indexdb.D1Index:
		st := s.Stats()
		depth, dropped, failed = st.QueueDepth, st.QueueDroppedTotal, st.FlushFailTotal
	default:
		return
	}
	fmt.Fprintf(rw, "# HELP catchodds_index_queue_depth Odds index write queue depth.\n")
	fmt.Fprintf(rw, "# TYPE catchodds_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "catchodds_index_queue_depth{session=%q} %d\n", sid, depth)

	fmt.Fprintf(rw, "# HELP catchodds_index_dropped_total Odds records dropped because the index fell behind.\n")
	fmt.Fprintf(rw, "# TYPE catchodds_index_dropped_total counter\n")
	fmt.Fprintf(rw, "catchodds_index_dropped_total{session=%q} %d\n", sid, dropped)

	fmt.Fprintf(rw, "# HELP catchodds_index_fail_total Failed index writes or flushes.\n")
	fmt.Fprintf(rw, "# TYPE catchodds_index_fail_total counter\n")
	fmt.Fprintf(rw, "catchodds_index_fail_total{session=%q} %d\n", sid, failed)
}
