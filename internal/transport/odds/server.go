package odds

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"catchodds.dev/internal/oddsproto"
	"catchodds.dev/internal/persistence/indexdb"
	"catchodds.dev/internal/sim/runtime"
)

// Engine is the part of the runtime loop the transport talks to.
type Engine interface {
	Join() chan<- runtime.JoinRequest
	Subscribe() chan<- runtime.SubscribeRequest
	Leave() chan<- string
	Control(ctx context.Context, msg oddsproto.ControlMsg) error
	RequestOdds(ctx context.Context, location string) (oddsproto.OddsMsg, error)
	RequestStatus(ctx context.Context) (oddsproto.StatusResponse, error)
}

// History serves recorded odds; nil when the index is disabled.
type History interface {
	EntryHistory(ctx context.Context, location, entryID string, limit int) ([]indexdb.HistoryPoint, error)
}

type Server struct {
	engine  Engine
	history History
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(e Engine, h History, logger *log.Logger) *Server {
	return &Server{
		engine:  e,
		history: h,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// Router mounts the HTTP API and the live feed.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/odds", s.handleOdds)
		r.Get("/odds/{location}", s.handleOdds)
		r.Get("/odds/{location}/blocked", s.handleBlocked)
		r.Get("/odds/{location}/history/{entry}", s.handleHistory)
		r.With(loopbackOnly).Post("/control", s.handleControl)
		r.Get("/feed", s.handleFeed)
	})
	return r
}

func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	st, err := s.engine.RequestStatus(r.Context())
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, st)
}

func (s *Server) handleOdds(rw http.ResponseWriter, r *http.Request) {
	msg, err := s.engine.RequestOdds(r.Context(), chi.URLParam(r, "location"))
	if err != nil {
		writeError(rw, err)
		return
	}
	if v := r.URL.Query().Get("blocked"); v == "0" || v == "false" {
		msg.Blocked = nil
	}
	writeJSON(rw, http.StatusOK, msg)
}

func (s *Server) handleBlocked(rw http.ResponseWriter, r *http.Request) {
	msg, err := s.engine.RequestOdds(r.Context(), chi.URLParam(r, "location"))
	if err != nil {
		writeError(rw, err)
		return
	}
	blocked := msg.Blocked
	if blocked == nil {
		blocked = []oddsproto.BlockedEntry{}
	}
	writeJSON(rw, http.StatusOK, blocked)
}

func (s *Server) handleHistory(rw http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(rw, "history disabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	points, err := s.history.EntryHistory(r.Context(), chi.URLParam(r, "location"), chi.URLParam(r, "entry"), limit)
	if err != nil {
		writeError(rw, err)
		return
	}
	if points == nil {
		points = []indexdb.HistoryPoint{}
	}
	writeJSON(rw, http.StatusOK, points)
}

func (s *Server) handleControl(rw http.ResponseWriter, r *http.Request) {
	var msg oddsproto.ControlMsg
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 16*1024)).Decode(&msg); err != nil {
		http.Error(rw, "bad control message", http.StatusBadRequest)
		return
	}
	ack := s.control(r.Context(), msg)
	status := http.StatusOK
	if !ack.OK {
		status = http.StatusBadRequest
	}
	writeJSON(rw, status, ack)
}

func (s *Server) control(ctx context.Context, msg oddsproto.ControlMsg) oddsproto.AckMsg {
	ack := oddsproto.AckMsg{Type: "ACK", ProtocolVersion: oddsproto.Version, Op: msg.Op, OK: true}
	if err := s.engine.Control(ctx, msg); err != nil {
		ack.OK = false
		ack.Code = errorCode(err)
		ack.Error = err.Error()
	}
	return ack
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, runtime.ErrUnknownLocation):
		return oddsproto.ErrUnknownLocation
	case errors.Is(err, runtime.ErrUnknownOp):
		return oddsproto.ErrUnknownOp
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return oddsproto.ErrBusy
	default:
		return oddsproto.ErrBadRequest
	}
}

func (s *Server) handleFeed(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.printf("feed upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	// Handshake: must send SUBSCRIBE first.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	sub, ok := parseSubscribe(raw)
	if !ok {
		closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
		return
	}

	sid := uuid.NewString()
	out := make(chan []byte, 4)
	select {
	case s.engine.Join() <- runtime.JoinRequest{SessionID: sid, Location: sub.Location, IncludeBlocked: sub.IncludeBlocked, Out: out}:
	default:
		closeWith(conn, websocket.CloseTryAgainLater, "server busy")
		return
	}
	defer func() {
		select {
		case s.engine.Leave() <- sid:
		default:
			// Loop is stopping; nothing else to do.
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine. Control acks share the connection with odds updates.
	acks := make(chan oddsproto.AckMsg, 4)
	writeErr := make(chan error, 1)
	go func() {
		for {
			var b []byte
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case b = <-out:
			case ack := <-acks:
				b, _ = json.Marshal(ack)
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				writeErr <- err
				return
			}
		}
	}()

	// Reader loop: SUBSCRIBE updates and, from loopback peers, CONTROL.
	local := isLoopbackRemote(r.RemoteAddr)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var head struct {
			Type            string `json:"type"`
			ProtocolVersion string `json:"protocol_version"`
		}
		if err := json.Unmarshal(raw, &head); err != nil || head.ProtocolVersion != oddsproto.Version {
			continue
		}
		switch head.Type {
		case "SUBSCRIBE":
			sub, ok := parseSubscribe(raw)
			if !ok {
				continue
			}
			select {
			case s.engine.Subscribe() <- runtime.SubscribeRequest{SessionID: sid, Location: sub.Location, IncludeBlocked: sub.IncludeBlocked}:
			default:
				// Drop updates under load; the client may resend.
			}
		case "CONTROL":
			var msg oddsproto.ControlMsg
			if err := json.Unmarshal(raw, &msg); err != nil {
				select {
				case acks <- oddsproto.AckMsg{Type: "ACK", ProtocolVersion: oddsproto.Version, Code: oddsproto.ErrProtoBadRequest, Error: err.Error()}:
				default:
				}
				continue
			}
			ack := oddsproto.AckMsg{Type: "ACK", ProtocolVersion: oddsproto.Version, Op: msg.Op, Code: oddsproto.ErrNoPermission, Error: "forbidden"}
			if local {
				cctx, ccancel := context.WithTimeout(ctx, 2*time.Second)
				ack = s.control(cctx, msg)
				ccancel()
			}
			select {
			case acks <- ack:
			default:
			}
		}
	}

	cancel()
	closeWith(conn, websocket.CloseNormalClosure, "bye")

	// Best-effort wait for the writer to stop so it doesn't outlive conn.
	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
}

func parseSubscribe(raw []byte) (oddsproto.SubscribeMsg, bool) {
	var sub oddsproto.SubscribeMsg
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != oddsproto.Version {
		return sub, false
	}
	sub.Location = strings.TrimSpace(sub.Location)
	return sub, true
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runtime.ErrUnknownLocation):
		http.Error(rw, err.Error(), http.StatusNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(rw, "engine busy", http.StatusServiceUnavailable)
	default:
		http.Error(rw, err.Error(), http.StatusInternalServerError)
	}
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
