package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/gorilla/websocket"

	"catchodds.dev/internal/oddsproto"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/feed", "feed url")
		location = flag.String("location", "", "location to watch (default: follow the player)")
		blocked  = flag.Bool("blocked", false, "include blocked entries")
		every    = flag.Uint64("every", 10, "log odds every N ticks")
		wander   = flag.Bool("wander", false, "periodically change weather and time of day (loopback servers only)")
		seed     = flag.Int64("seed", 1, "wander seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := oddsproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: oddsproto.Version,
		Location:        *location,
		IncludeBlocked:  *blocked,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{conn: conn, log: logger, every: max(1, *every), wander: *wander, rng: rand.New(rand.NewSource(*seed))}
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			continue
		}
		switch head.Type {
		case "ODDS":
			var odds oddsproto.OddsMsg
			if err := json.Unmarshal(msg, &odds); err != nil {
				continue
			}
			b.handleOdds(&odds)
		case "ACK":
			var ack oddsproto.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			if !ack.OK {
				logger.Printf("ACK op=%s code=%s err=%s", ack.Op, ack.Code, ack.Error)
			}
		}
	}
}

type bot struct {
	conn   *websocket.Conn
	log    *log.Logger
	every  uint64
	wander bool
	rng    *rand.Rand
	last   uint64
}

var weathers = []string{"sun", "rain", "wind", "storm", "snow", "green_rain"}

func (b *bot) handleOdds(odds *oddsproto.OddsMsg) {
	if odds.Tick/b.every != b.last/b.every || b.last == 0 {
		b.log.Print(summarize(odds, 3))
	}
	b.last = odds.Tick

	// Once converged, nudge the scenario somewhere else.
	if b.wander && odds.Converged {
		ctl := oddsproto.ControlMsg{Type: "CONTROL", ProtocolVersion: oddsproto.Version}
		if b.rng.Intn(2) == 0 {
			ctl.Op = oddsproto.OpSetWeather
			ctl.Weather = weathers[b.rng.Intn(len(weathers))]
		} else {
			ctl.Op = oddsproto.OpSetTime
			ctl.TimeOfDay = 100*(6+b.rng.Intn(20)) + 10*b.rng.Intn(6)
		}
		_ = b.conn.WriteJSON(ctl)
	}
}

func summarize(odds *oddsproto.OddsMsg, top int) string {
	entries := append([]oddsproto.OddsEntry(nil), odds.Entries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].HookChancePercent > entries[j].HookChancePercent })
	if len(entries) > top {
		entries = entries[:top]
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s=%.1f%%", e.DisplayName, e.HookChancePercent))
	}
	s := fmt.Sprintf("tick=%d %s %s %04d %s cum=%.3f converged=%t %s",
		odds.Tick, odds.Location, odds.Date, odds.TimeOfDay, odds.Weather, odds.Cumulative, odds.Converged, strings.Join(parts, " "))
	if n := len(odds.Blocked); n > 0 {
		s += fmt.Sprintf(" blocked=%d", n)
	}
	return s
}
