package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	persistlog "catchodds.dev/internal/persistence/log"
	"catchodds.dev/internal/sim/runtime"
)

func main() {
	var (
		dir      = flag.String("passes", "", "directory containing passes-*.jsonl.zst (e.g. data/sessions/<id>/passes)")
		location = flag.String("location", "", "only summarise this location (optional)")
		fromTick = flag.Uint64("from_tick", 0, "first tick to include (optional)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to include (optional)")
		top      = flag.Int("top", 10, "catches to list per location")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "missing -passes")
		os.Exit(2)
	}
	files, err := persistlog.ListTraceFiles(*dir, "passes")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list passes:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no pass files found in", *dir)
		os.Exit(1)
	}

	s := newSummary(filter{location: *location, from: *fromTick, to: *toTick})
	for _, path := range files {
		if err := persistlog.ReadPasses(path, s.add); err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}
	s.print(os.Stdout, *top)
}

type filter struct {
	location string
	from, to uint64
}

type locationSummary struct {
	passes        int
	casts         int
	failures      int
	countChanges  int
	caught        map[string]int
	firstTick     uint64
	lastTick      uint64
	lastCum       float64
	convergedTick uint64
}

type summary struct {
	f        filter
	byLoc    map[string]*locationSummary
	lastTick uint64
	outOfSeq int
}

func newSummary(f filter) *summary {
	return &summary{f: f, byLoc: map[string]*locationSummary{}}
}

func (s *summary) add(e runtime.PassEntry) error {
	if e.Tick < s.f.from || (s.f.to != 0 && e.Tick > s.f.to) {
		return nil
	}
	if s.f.location != "" && e.Location != s.f.location {
		return nil
	}
	if e.Tick <= s.lastTick {
		s.outOfSeq++
	}
	s.lastTick = e.Tick

	ls := s.byLoc[e.Location]
	if ls == nil {
		ls = &locationSummary{caught: map[string]int{}, firstTick: e.Tick}
		s.byLoc[e.Location] = ls
	}
	ls.passes++
	ls.casts += e.Casts
	ls.failures += e.Failures
	if e.CountChanged {
		ls.countChanges++
		ls.convergedTick = 0
	}
	for id, n := range e.Caught {
		ls.caught[id] += n
	}
	ls.lastTick = e.Tick
	ls.lastCum = e.Cumulative
	if e.Converged && ls.convergedTick == 0 {
		ls.convergedTick = e.Tick
	}
	return nil
}

func (s *summary) print(w io.Writer, top int) {
	locs := make([]string, 0, len(s.byLoc))
	for id := range s.byLoc {
		locs = append(locs, id)
	}
	sort.Strings(locs)
	if len(locs) == 0 {
		fmt.Fprintln(w, "no passes matched")
		return
	}
	for _, id := range locs {
		ls := s.byLoc[id]
		fmt.Fprintf(w, "%s: ticks=%d..%d passes=%d casts=%d failures=%d eligible_changes=%d cumulative=%.4f",
			id, ls.firstTick, ls.lastTick, ls.passes, ls.casts, ls.failures, ls.countChanges, ls.lastCum)
		if ls.convergedTick != 0 {
			fmt.Fprintf(w, " converged_at=%d", ls.convergedTick)
		}
		fmt.Fprintln(w)
		for _, c := range topCatches(ls.caught, top) {
			fmt.Fprintf(w, "  %-24s %6d  %6.2f%%\n", c.id, c.n, 100*float64(c.n)/float64(max(1, ls.casts)))
		}
	}
	if s.outOfSeq > 0 {
		fmt.Fprintf(w, "warning: %d passes out of tick order (trace from several runs?)\n", s.outOfSeq)
	}
}

type catch struct {
	id string
	n  int
}

func topCatches(m map[string]int, n int) []catch {
	out := make([]catch, 0, len(m))
	for id, c := range m {
		out = append(out, catch{id, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].id < out[j].id
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
