package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"catchodds.dev/internal/oddsproto"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/tuning"
)

// SQLiteIndex is a write-behind read-model of published odds. The
// simulation never waits on it: records are queued and dropped when the
// writer falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan oddsproto.OddsMsg
	wg   sync.WaitGroup
	once sync.Once

	closed    atomic.Bool
	dropOdds  atomic.Uint64
	writeErrs atomic.Uint64
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropOddsTotal  uint64 `json:"drop_odds_total"`
	WriteFailTotal uint64 `json:"write_fail_total"`
}

// HistoryPoint is one recorded hook chance of an entry.
type HistoryPoint struct {
	Tick              uint64  `json:"tick"`
	Date              string  `json:"date"`
	TimeOfDay         int     `json:"time_of_day"`
	Weather           string  `json:"weather"`
	HookChancePercent float64 `json:"hook_chance_percent"`
	Samples           int     `json:"samples"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan oddsproto.OddsMsg, 4096)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS odds (
			tick INTEGER NOT NULL,
			location TEXT NOT NULL,
			date TEXT NOT NULL,
			time_of_day INTEGER NOT NULL,
			weather TEXT NOT NULL,
			cumulative REAL NOT NULL,
			converged INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (location, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS odds_entries (
			tick INTEGER NOT NULL,
			location TEXT NOT NULL,
			entry_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			hook_chance REAL NOT NULL,
			samples INTEGER NOT NULL,
			only_non_fish INTEGER NOT NULL,
			PRIMARY KEY (location, entry_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS blocked_entries (
			tick INTEGER NOT NULL,
			location TEXT NOT NULL,
			entry_id TEXT NOT NULL,
			reasons TEXT NOT NULL,
			next_date TEXT,
			PRIMARY KEY (location, entry_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordOdds(msg oddsproto.OddsMsg) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- msg:
	default:
		// The pass trace remains the source of truth.
		s.dropOdds.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropOddsTotal:  s.dropOdds.Load(),
		WriteFailTotal: s.writeErrs.Load(),
	}
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range catalogRows(configDir, cats, tune) {
		if r.Digest == "" || len(r.JSON) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.Name, r.Digest, string(r.JSON), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigest returns the stored digest of a catalog row.
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, bool, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name=?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return d, true, nil
}

// LatestOdds returns the newest recorded odds of a location.
func (s *SQLiteIndex) LatestOdds(ctx context.Context, location string) (oddsproto.OddsMsg, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT raw_json FROM odds WHERE location=? ORDER BY tick DESC LIMIT 1`, location).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return oddsproto.OddsMsg{}, false, nil
	}
	if err != nil {
		return oddsproto.OddsMsg{}, false, err
	}
	var msg oddsproto.OddsMsg
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return oddsproto.OddsMsg{}, false, fmt.Errorf("odds %s: %w", location, err)
	}
	return msg, true, nil
}

// EntryHistory returns up to limit recorded hook chances of one entry,
// newest first.
func (s *SQLiteIndex) EntryHistory(ctx context.Context, location, entryID string, limit int) ([]HistoryPoint, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.tick, o.date, o.time_of_day, o.weather, e.hook_chance, e.samples
		FROM odds_entries e JOIN odds o ON o.location = e.location AND o.tick = e.tick
		WHERE e.location=? AND e.entry_id=?
		ORDER BY e.tick DESC LIMIT ?`, location, entryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		var tick int64
		if err := rows.Scan(&tick, &p.Date, &p.TimeOfDay, &p.Weather, &p.HookChancePercent, &p.Samples); err != nil {
			return nil, err
		}
		p.Tick = uint64(tick)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertOdds, _ := s.db.Prepare(`INSERT OR REPLACE INTO odds(tick,location,date,time_of_day,weather,cumulative,converged,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertEntry, _ := s.db.Prepare(`INSERT OR REPLACE INTO odds_entries(tick,location,entry_id,display_name,hook_chance,samples,only_non_fish) VALUES(?,?,?,?,?,?,?)`)
	insertBlocked, _ := s.db.Prepare(`INSERT OR REPLACE INTO blocked_entries(tick,location,entry_id,reasons,next_date) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertOdds, insertEntry, insertBlocked} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()
	if insertOdds == nil || insertEntry == nil || insertBlocked == nil {
		for range s.ch {
			s.writeErrs.Add(1)
		}
		return
	}

	var (
		tx            *sql.Tx
		pending       int
		lastCommit    = time.Now()
		commitEvery   = 64
		commitMaxWait = 2 * time.Second
	)
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrs.Add(1)
		}
		tx, pending, lastCommit = nil, 0, time.Now()
	}

	for msg := range s.ch {
		if tx == nil {
			txx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				s.writeErrs.Add(1)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			tx = txx
		}
		if err := writeOdds(tx, insertOdds, insertEntry, insertBlocked, msg); err != nil {
			s.writeErrs.Add(1)
			_ = tx.Rollback()
			tx, pending = nil, 0
			continue
		}
		pending++
		if pending >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}

func writeOdds(tx *sql.Tx, insertOdds, insertEntry, insertBlocked *sql.Stmt, msg oddsproto.OddsMsg) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	tick := int64(msg.Tick)
	if _, err := tx.Stmt(insertOdds).Exec(tick, msg.Location, msg.Date, msg.TimeOfDay, msg.Weather,
		msg.Cumulative, boolInt(msg.Converged), string(raw)); err != nil {
		return err
	}
	for _, e := range msg.Entries {
		if _, err := tx.Stmt(insertEntry).Exec(tick, msg.Location, e.ID, e.DisplayName,
			e.HookChancePercent, e.Samples, boolInt(e.OnlyNonFish)); err != nil {
			return err
		}
	}
	for _, b := range msg.Blocked {
		reasons, _ := json.Marshal(b.Reasons)
		if _, err := tx.Stmt(insertBlocked).Exec(tick, msg.Location, b.ID, string(reasons), b.NextDate); err != nil {
			return err
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
