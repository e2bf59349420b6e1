package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"catchodds.dev/internal/oddsproto"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/fishing"
	"catchodds.dev/internal/sim/host"
)

var (
	ErrUnknownLocation = errors.New("unknown location")
	ErrUnknownOp       = errors.New("unknown control op")
)

// JoinRequest registers a feed client. Out receives encoded OddsMsg values;
// only the newest update is kept when the client falls behind.
type JoinRequest struct {
	SessionID      string
	Location       string
	IncludeBlocked bool
	Out            chan []byte
}

type SubscribeRequest struct {
	SessionID      string
	Location       string
	IncludeBlocked bool
}

type client struct {
	location       string
	includeBlocked bool
	out            chan []byte
}

func (l *Loop) handleJoin(req JoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if req.Location != "" {
		if _, ok := l.cat.Location(req.Location); !ok {
			req.Location = ""
		}
	}
	l.clients[req.SessionID] = &client{location: req.Location, includeBlocked: req.IncludeBlocked, out: req.Out}
	l.printf("feed client %s joined (location=%q)", req.SessionID, req.Location)
}

func (l *Loop) handleSubscribe(req SubscribeRequest) {
	c := l.clients[req.SessionID]
	if c == nil {
		return
	}
	if req.Location != "" {
		if _, ok := l.cat.Location(req.Location); !ok {
			return
		}
	}
	c.location = req.Location
	c.includeBlocked = req.IncludeBlocked
}

func (l *Loop) handleLeave(id string) {
	if _, ok := l.clients[id]; !ok {
		return
	}
	delete(l.clients, id)
	l.printf("feed client %s left", id)
}

type controlReq struct {
	Msg  oddsproto.ControlMsg
	Resp chan error
}

// Control applies a game-state change on the loop goroutine.
func (l *Loop) Control(ctx context.Context, msg oddsproto.ControlMsg) error {
	req := controlReq{Msg: msg, Resp: make(chan error, 1)}
	select {
	case l.control <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.Resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) handleControl(req controlReq) {
	err := l.applyControl(req.Msg)
	if err != nil {
		l.printf("control %s rejected: %v", req.Msg.Op, err)
	}
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- err:
	default:
	}
}

// applyControl edits a copy of the scenario and keeps it only if it still
// validates.
func (l *Loop) applyControl(msg oddsproto.ControlMsg) error {
	next := l.scen
	resetStats := false

	switch strings.ToUpper(strings.TrimSpace(msg.Op)) {
	case oddsproto.OpSetTime:
		next.TimeOfDay = msg.TimeOfDay
	case oddsproto.OpSetWeather:
		next.Weather = strings.ToLower(strings.TrimSpace(msg.Weather))
	case oddsproto.OpMove:
		if msg.Location != "" {
			if _, ok := l.cat.Location(msg.Location); !ok {
				return fmt.Errorf("%q: %w", msg.Location, ErrUnknownLocation)
			}
			next.Player.Location = msg.Location
		}
		if msg.Tile != nil {
			next.Player.Tile = fishing.Point{X: msg.Tile.X, Y: msg.Tile.Y}
		}
	case oddsproto.OpAdvanceDays:
		if msg.Days <= 0 {
			return fmt.Errorf("days must be > 0")
		}
		next.AdvanceDays(msg.Days)
	case oddsproto.OpEquip:
		next.Player.Rod = strings.ToLower(strings.TrimSpace(msg.Rod))
		next.Player.Bait = strings.TrimSpace(msg.Bait)
		resetStats = next.Player.Rod != l.scen.Player.Rod || next.Player.Bait != l.scen.Player.Bait
	case oddsproto.OpResetStats:
		resetStats = true
	case oddsproto.OpRecomputeNow:
		l.sess.QueueRecompute(l.scen.Player.Location)
		return nil
	default:
		return fmt.Errorf("%q: %w", msg.Op, ErrUnknownOp)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	l.scen = next
	if resetStats {
		l.sess.ResetStatistics()
	}
	return nil
}

type queryKind int

const (
	queryOdds queryKind = iota + 1
	queryStatus
	queryScenario
)

type queryReq struct {
	Kind     queryKind
	Location string
	Resp     chan queryResp
}

type queryResp struct {
	Odds     oddsproto.OddsMsg
	Status   oddsproto.StatusResponse
	Scenario host.Scenario
	Err      error
}

func (l *Loop) request(ctx context.Context, req queryReq) (queryResp, error) {
	req.Resp = make(chan queryResp, 1)
	select {
	case l.query <- req:
	case <-ctx.Done():
		return queryResp{}, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp, resp.Err
	case <-ctx.Done():
		return queryResp{}, ctx.Err()
	}
}

// RequestOdds returns the current odds of a location, blocked entries
// included. An empty location means the player's location.
func (l *Loop) RequestOdds(ctx context.Context, location string) (oddsproto.OddsMsg, error) {
	resp, err := l.request(ctx, queryReq{Kind: queryOdds, Location: location})
	return resp.Odds, err
}

func (l *Loop) RequestStatus(ctx context.Context) (oddsproto.StatusResponse, error) {
	resp, err := l.request(ctx, queryReq{Kind: queryStatus})
	return resp.Status, err
}

func (l *Loop) RequestScenario(ctx context.Context) (host.Scenario, error) {
	resp, err := l.request(ctx, queryReq{Kind: queryScenario})
	return resp.Scenario, err
}

func (l *Loop) handleQuery(req queryReq) {
	var resp queryResp
	defer func() {
		if req.Resp == nil {
			return
		}
		select {
		case req.Resp <- resp:
		default:
		}
	}()

	switch req.Kind {
	case queryOdds:
		location := req.Location
		if location == "" {
			location = l.scen.Player.Location
		}
		if _, ok := l.cat.Location(location); !ok {
			resp.Err = fmt.Errorf("%q: %w", location, ErrUnknownLocation)
			return
		}
		resp.Odds = l.oddsMsg(location, true)
	case queryStatus:
		resp.Status = l.status()
	case queryScenario:
		resp.Scenario = l.scen
		caught := make(map[string]int, len(l.scen.Player.FishCaught))
		for k, v := range l.scen.Player.FishCaught {
			caught[k] = v
		}
		resp.Scenario.Player.FishCaught = caught
	}
}

func (l *Loop) status() oddsproto.StatusResponse {
	return oddsproto.StatusResponse{
		ProtocolVersion: oddsproto.Version,
		Tick:            l.tick.Load(),
		TickRateHz:      l.TickRateHz(),
		Date:            l.scen.Today().String(),
		TimeOfDay:       l.scen.TimeOfDay,
		Weather:         l.scen.Weather,
		Location:        l.scen.Player.Location,
		Locations:       l.cat.LocationIDs(),
		CatalogDigests:  l.cat.Digests(),
		Subscribers:     len(l.clients),
	}
}

// Catalogs exposes the loaded catalogs; they are immutable after load.
func (l *Loop) Catalogs() *catalogs.Catalogs { return l.cat }
