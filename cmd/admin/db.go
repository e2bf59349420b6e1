package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

const dbUsage = "usage: admin db [-data ./data] [-session SID|-db PATH] [-location L] [-entry ID] [-limit N] odds|entries|blocked|catalogs"

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	sessionID := fs.String("session", "", "session id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	location := fs.String("location", "", "location filter")
	entryID := fs.String("entry", "", "entry id (entries)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "odds"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := resolveDB(*dataDir, *sessionID, *dbPath)
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing -session or -db")
		os.Exit(2)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, os.Stdout, q, queryArgs{Location: *location, Entry: *entryID, Limit: *limit}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") || strings.HasPrefix(err.Error(), "missing") {
			fmt.Fprintln(os.Stderr, dbUsage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type queryArgs struct {
	Location string
	Entry    string
	Limit    int
}

func runQuery(db *sql.DB, w io.Writer, q string, a queryArgs) error {
	if a.Limit <= 0 {
		a.Limit = 20
	}
	loc := strings.TrimSpace(a.Location)

	switch q {
	case "odds":
		rows, err := db.Query(`SELECT tick,location,date,time_of_day,weather,cumulative,converged FROM odds
			WHERE (?='' OR location=?) ORDER BY tick DESC LIMIT ?`, loc, loc, a.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick       int64   `json:"tick"`
				Location   string  `json:"location"`
				Date       string  `json:"date"`
				TimeOfDay  int     `json:"time_of_day"`
				Weather    string  `json:"weather"`
				Cumulative float64 `json:"cumulative"`
				Converged  bool    `json:"converged"`
			}
			if err := rows.Scan(&r.Tick, &r.Location, &r.Date, &r.TimeOfDay, &r.Weather, &r.Cumulative, &r.Converged); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()

	case "entries":
		if loc == "" || strings.TrimSpace(a.Entry) == "" {
			return fmt.Errorf("missing -location or -entry")
		}
		rows, err := db.Query(`SELECT tick,display_name,hook_chance,samples,only_non_fish FROM odds_entries
			WHERE location=? AND entry_id=? ORDER BY tick DESC LIMIT ?`, loc, a.Entry, a.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick        int64   `json:"tick"`
				EntryID     string  `json:"entry_id"`
				DisplayName string  `json:"display_name"`
				HookChance  float64 `json:"hook_chance_percent"`
				Samples     int     `json:"samples"`
				OnlyNonFish bool    `json:"only_non_fish"`
			}
			if err := rows.Scan(&r.Tick, &r.DisplayName, &r.HookChance, &r.Samples, &r.OnlyNonFish); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.EntryID = a.Entry
			printJSON(w, r)
		}
		return rows.Err()

	case "blocked":
		rows, err := db.Query(`SELECT o.tick,o.location,o.entry_id,o.reasons,o.next_date FROM blocked_entries o
			WHERE (?='' OR o.location=?) AND o.tick=(SELECT MAX(b.tick) FROM blocked_entries b WHERE b.location=o.location)
			ORDER BY o.location,o.entry_id LIMIT ?`, loc, loc, a.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r struct {
					Tick     int64    `json:"tick"`
					Location string   `json:"location"`
					EntryID  string   `json:"entry_id"`
					Reasons  []string `json:"reasons"`
					NextDate string   `json:"next_date,omitempty"`
				}
				reasons string
				next    sql.NullString
			)
			if err := rows.Scan(&r.Tick, &r.Location, &r.EntryID, &reasons, &next); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = json.Unmarshal([]byte(reasons), &r.Reasons)
			r.NextDate = next.String
			printJSON(w, r)
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query: %s", q)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
