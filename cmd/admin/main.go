package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "catchodds.dev/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "status":
			statusCmd(os.Args[2:])
			return
		case "control":
			controlCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints one line per recorded session: id, trace file count, whether an index exists.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "sessions")
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	rows := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rows = append(rows, sessionLine(base, e.Name()))
	}
	sort.Strings(rows)
	for _, r := range rows {
		fmt.Println(r)
	}
}

func sessionLine(base, sid string) string {
	dir := filepath.Join(base, sid)
	traces, _ := persistlog.ListTraceFiles(filepath.Join(dir, "passes"), "passes")
	_, err := os.Stat(indexPath(base, sid))
	return fmt.Sprintf("%s traces=%d index=%t", sid, len(traces), err == nil)
}

func indexPath(sessionsDir, sid string) string {
	return filepath.Join(sessionsDir, sid, "index", "odds.sqlite")
}

func resolveDB(dataDir, sid, db string) string {
	if p := strings.TrimSpace(db); p != "" {
		return p
	}
	if strings.TrimSpace(sid) == "" {
		return ""
	}
	return indexPath(filepath.Join(dataDir, "sessions"), sid)
}
