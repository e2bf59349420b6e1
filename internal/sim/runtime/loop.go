package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"catchodds.dev/internal/oddsproto"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/fishing"
	"catchodds.dev/internal/sim/host"
	"catchodds.dev/internal/sim/tuning"
)

// PassLogger receives one entry per simulation pass.
type PassLogger interface {
	WritePass(entry PassEntry) error
}

// OddsIndex receives published odds for the read-model.
type OddsIndex interface {
	RecordOdds(msg oddsproto.OddsMsg)
}

type PassEntry struct {
	Tick         uint64         `json:"tick"`
	Location     string         `json:"location"`
	Date         string         `json:"date"`
	TimeOfDay    int            `json:"time_of_day"`
	Weather      string         `json:"weather"`
	Casts        int            `json:"casts"`
	Failures     int            `json:"failures,omitempty"`
	Caught       map[string]int `json:"caught,omitempty"`
	CountChanged bool           `json:"count_changed,omitempty"`
	Cumulative   float64        `json:"cumulative"`
	Converged    bool           `json:"converged"`
}

type Config struct {
	Tuning tuning.Tuning
	Seed   int64
	// IndexEvery records odds to the index every N ticks; <= 0 means once a
	// second.
	IndexEvery int
}

// Loop owns a fishing session and the scenario it runs against. All state
// is touched from the Run goroutine only; transports talk to it through
// channels.
type Loop struct {
	cfg  Config
	cat  *catalogs.Catalogs
	sess *fishing.Session
	scen host.Scenario
	log  *log.Logger

	tick atomic.Uint64

	passLog PassLogger
	index   OddsIndex

	control   chan controlReq
	query     chan queryReq
	join      chan JoinRequest
	subscribe chan SubscribeRequest
	leave     chan string
	stop      chan struct{}

	clients map[string]*client
	logged  map[string]bool
}

func New(cfg Config, cat *catalogs.Catalogs, scen host.Scenario, logger *log.Logger) *Loop {
	if cfg.Tuning == (tuning.Tuning{}) {
		cfg.Tuning = tuning.Defaults()
	}
	if cfg.IndexEvery <= 0 {
		cfg.IndexEvery = max(1, cfg.Tuning.Simulation.TickRateHz)
	}
	return &Loop{
		cfg:  cfg,
		cat:  cat,
		sess: host.NewSession(cat, cfg.Tuning, logger, cfg.Seed),
		scen: scen,
		log:  logger,

		control:   make(chan controlReq, 64),
		query:     make(chan queryReq, 64),
		join:      make(chan JoinRequest, 64),
		subscribe: make(chan SubscribeRequest, 256),
		leave:     make(chan string, 64),
		stop:      make(chan struct{}),

		clients: map[string]*client{},
		logged:  map[string]bool{},
	}
}

func (l *Loop) SetPassLogger(p PassLogger) { l.passLog = p }
func (l *Loop) SetOddsIndex(i OddsIndex)   { l.index = i }

func (l *Loop) Join() chan<- JoinRequest           { return l.join }
func (l *Loop) Subscribe() chan<- SubscribeRequest { return l.subscribe }
func (l *Loop) Leave() chan<- string               { return l.leave }

func (l *Loop) CurrentTick() uint64 { return l.tick.Load() }
func (l *Loop) TickRateHz() int     { return l.cfg.Tuning.Simulation.TickRateHz }

func (l *Loop) printf(format string, args ...any) {
	if l.log != nil {
		l.log.Printf(format, args...)
	}
}

func (l *Loop) logOnce(key, msg string) {
	if l.logged[key] {
		return
	}
	l.logged[key] = true
	l.printf("%s", msg)
}

func (l *Loop) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(max(1, l.cfg.Tuning.Simulation.TickRateHz))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer l.sess.Teardown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case req := <-l.join:
			l.handleJoin(req)
		case req := <-l.subscribe:
			l.handleSubscribe(req)
		case id := <-l.leave:
			l.handleLeave(id)
		case req := <-l.control:
			l.handleControl(req)
		case req := <-l.query:
			l.handleQuery(req)
		case <-ticker.C:
			l.step()
		}
	}
}

func (l *Loop) Stop() { close(l.stop) }

// StepOnce runs one pass synchronously. Only for use when Run is not
// running (tests, offline tools).
func (l *Loop) StepOnce() (oddsproto.OddsMsg, error) {
	return l.step()
}

func (l *Loop) step() (oddsproto.OddsMsg, error) {
	tick := l.tick.Add(1)
	snap, err := l.scen.Snapshot(l.cat)
	if err != nil {
		l.logOnce("snapshot:"+err.Error(), fmt.Sprintf("tick %d: %v", tick, err))
		return oddsproto.OddsMsg{}, err
	}
	res, err := l.sess.SimulateCasts(snap)
	if err != nil {
		l.logOnce("simulate:"+err.Error(), fmt.Sprintf("tick %d: simulate %s: %v", tick, snap.Location, err))
		return oddsproto.OddsMsg{}, err
	}
	cumulative := l.sess.Recompute(snap.Location)
	converged := l.sess.Converged(snap.Location)

	msg := l.oddsMsg(snap.Location, true)
	msg.Casts = res.Casts
	msg.Failures = res.Failures
	msg.Cumulative = cumulative
	msg.Converged = converged

	if l.passLog != nil {
		if err := l.passLog.WritePass(PassEntry{
			Tick:         tick,
			Location:     snap.Location,
			Date:         msg.Date,
			TimeOfDay:    msg.TimeOfDay,
			Weather:      msg.Weather,
			Casts:        res.Casts,
			Failures:     res.Failures,
			Caught:       res.Caught,
			CountChanged: res.CountChanged,
			Cumulative:   cumulative,
			Converged:    converged,
		}); err != nil {
			l.logOnce("passlog", fmt.Sprintf("pass log write failed: %v", err))
		}
	}
	if l.index != nil && tick%uint64(l.cfg.IndexEvery) == 0 {
		l.index.RecordOdds(msg)
	}
	l.publish(msg)
	return msg, nil
}

// oddsMsg builds the feed message for a location from the session's current
// statistics. Cumulative and convergence come from the last recompute.
func (l *Loop) oddsMsg(location string, blocked bool) oddsproto.OddsMsg {
	msg := oddsproto.OddsMsg{
		Type:            "ODDS",
		ProtocolVersion: oddsproto.Version,
		Tick:            l.tick.Load(),
		Location:        location,
		Date:            l.scen.Today().String(),
		TimeOfDay:       l.scen.TimeOfDay,
		Weather:         l.scen.Weather,
		Entries:         []oddsproto.OddsEntry{},
	}
	msg.Cumulative, _ = l.sess.Location(location).LastCumulative()
	msg.Converged = l.sess.Converged(location)
	for _, r := range l.sess.Odds(location) {
		msg.Entries = append(msg.Entries, oddsproto.OddsEntry{
			ID:                r.ID,
			DisplayName:       r.DisplayName,
			HookChancePercent: r.HookChancePercent,
			OnlyNonFish:       r.OnlyNonFish,
			Samples:           r.Samples,
			LastDayThisSeason: r.LastDayThisSeason,
		})
	}
	if blocked {
		for _, r := range l.sess.Blocked(location) {
			msg.Blocked = append(msg.Blocked, oddsproto.BlockedEntry{
				ID:          r.ID,
				DisplayName: r.DisplayName,
				Reasons:     r.Reasons,
				Requirement: r.Requirement,
				NextDate:    r.NextDate,
			})
		}
	}
	return msg
}

func (l *Loop) publish(current oddsproto.OddsMsg) {
	if len(l.clients) == 0 {
		return
	}
	encoded := map[string][]byte{}
	for _, c := range l.clients {
		location := c.location
		if location == "" {
			location = current.Location
		}
		key := fmt.Sprintf("%s|%t", location, c.includeBlocked)
		b, ok := encoded[key]
		if !ok {
			msg := current
			if location != current.Location {
				msg = l.oddsMsg(location, c.includeBlocked)
			} else if !c.includeBlocked {
				msg.Blocked = nil
			}
			var err error
			if b, err = json.Marshal(msg); err != nil {
				l.logOnce("marshal", fmt.Sprintf("marshal odds: %v", err))
				continue
			}
			encoded[key] = b
		}
		sendLatest(c.out, b)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
