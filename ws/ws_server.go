// Package ws exposes the staking client to browser front ends as JSON-RPC
// over a websocket, and pushes lifecycle and notification updates to them.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AlexNa-Holdings/web3stake/bus"
	"github.com/AlexNa-Holdings/web3stake/core"
	"github.com/AlexNa-Holdings/web3stake/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const WEB3STAKE_PORT = 9324

type ConContext struct {
	Agent      string
	Connection *websocket.Conn
	SM         *subManger
	wmu        sync.Mutex
}

type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"` // Params as a slice of interface{}
}

type BroadcastParams struct {
	Subscription string `json:"subscription,omitempty"`
	Result       any    `json:"result,omitempty"`
}

type RPCBroadcast struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  BroadcastParams `json:"params"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Result  interface{} `json:"result"`
	Error   *RPCError   `json:"error,omitempty"`
}

var ErrInvalidParams = errors.New("invalid params")

type Server struct {
	App     *core.App
	Port    int
	Origins []string // allowed browser origins, empty = any

	mu          sync.Mutex
	connections []*ConContext
	server      *http.Server
	start_once  sync.Once
	busCh       chan *bus.Message
}

func New(app *core.App, port int, origins []string) *Server {
	if port == 0 {
		port = WEB3STAKE_PORT
	}
	return &Server{
		App:     app,
		Port:    port,
		Origins: origins,
	}
}

// Handler serves /ws and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.web3Handler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// ListenAndServe starts broadcasting and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	s.StartBroadcast()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              ":" + strconv.Itoa(s.Port),
		Handler:           s.Handler(),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Hour,
		ReadHeaderTimeout: 5 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	log.Info().Msgf("ws server listening on port %d", s.Port)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		log.Error().Err(err).Msgf("WS server failed to start on port %d", s.Port)
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	ch := s.busCh
	s.busCh = nil
	s.mu.Unlock()

	if ch != nil {
		bus.Unsubscribe(ch)
	}
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// StartBroadcast forwards lifecycle, notification and snapshot bus messages
// to subscribed connections.
func (s *Server) StartBroadcast() {
	s.start_once.Do(func() {
		ch := bus.Subscribe("tx", "ui")
		s.mu.Lock()
		s.busCh = ch
		s.mu.Unlock()
		go s.loop(ch)
	})
}

func (s *Server) loop(ch chan *bus.Message) {
	for msg := range ch {
		switch msg.Topic {
		case "tx":
			if msg.Type == "lifecycle" {
				s.broadcast(EventLifecycle, msg.Data)
			}
		case "ui":
			switch msg.Type {
			case "notify", "notify-warning", "notify-error":
				s.broadcast(EventNotify, msg.Data)
			case "snapshot":
				s.broadcast(EventSnapshot, msg.Data)
			}
		}
	}
}

func (s *Server) broadcast(event string, data any) {
	s.mu.Lock()
	conns := append([]*ConContext(nil), s.connections...)
	s.mu.Unlock()

	for _, conn := range conns {
		conn.notify(event, data)
	}
}

func (s *Server) addConnection(conn *ConContext) {
	s.mu.Lock()
	s.connections = append(s.connections, conn)
	s.mu.Unlock()
}

func (s *Server) removeConnection(conn *ConContext) {
	s.mu.Lock()
	for i, c := range s.connections {
		if c == conn {
			s.connections = append(s.connections[:i], s.connections[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	log.Debug().Msgf("CheckOrigin: %s", origin)

	if len(s.Origins) == 0 || origin == "" {
		return true
	}
	for _, o := range s.Origins {
		if strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	log.Warn().Msgf("ws: connection from %s refused", origin)
	return false
}

func extractVersion(ua string, marker string) string {
	start := strings.Index(ua, marker)
	if start == -1 {
		return "Unknown"
	}

	start += len(marker)
	end := strings.IndexAny(ua[start:], " ;)")
	if end == -1 {
		end = len(ua)
	} else {
		end += start
	}

	return ua[start:end]
}

func getBrowser(ua string) (string, string) {
	switch {
	case strings.Contains(ua, "OPR"):
		return "Opera", extractVersion(ua, "OPR/")
	case strings.Contains(ua, "Edg"):
		return "Edge", extractVersion(ua, "Edg/")
	case strings.Contains(ua, "Chrome"):
		if strings.Contains(ua, "Brave") || strings.Contains(ua, "brave") {
			return "Brave", extractVersion(ua, "Chrome/")
		}
		return "Chrome", extractVersion(ua, "Chrome/")
	case strings.Contains(ua, "Safari"):
		return "Safari", extractVersion(ua, "Version/")
	case strings.Contains(ua, "Firefox"):
		return "Firefox", extractVersion(ua, "Firefox/")
	}
	return "Unknown", "Unknown"
}

func (s *Server) web3Handler(w http.ResponseWriter, r *http.Request) {
	ua := r.Header.Get("User-Agent")
	browser, version := getBrowser(ua)
	log.Debug().Msgf("ws: connection from %s %s", browser, version)

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}
	defer conn.Close()

	ctx := &ConContext{
		Agent:      ua,
		Connection: conn,
		SM:         newSubManager(),
	}
	s.addConnection(ctx)
	defer s.removeConnection(ctx)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Msgf("Read error: %v", err)
			break
		}

		log.Debug().Msgf("ws-> %v", string(msg))

		if msgType != websocket.TextMessage {
			log.Trace().Msgf("Received non-text message: %d", msgType)
			break
		}

		var rpcReq RPCRequest
		err = json.Unmarshal(msg, &rpcReq)
		if err != nil {
			log.Error().Msgf("JSON parse error: %v", err)
			ctx.send(&RPCResponse{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: -32700, Message: "Parse error"},
			})
			continue
		}

		response := &RPCResponse{
			JSONRPC: "2.0",
			ID:      rpcReq.ID,
		}

		switch {
		case strings.HasPrefix(rpcReq.Method, "stake_"):
			s.handleStakeMethod(r.Context(), rpcReq, ctx, response)
		default:
			log.Error().Msgf("Unknown method: %v", rpcReq.Method)
			response.Error = &RPCError{
				Code:    -32601,
				Message: "Method not found",
			}
		}

		ctx.send(response)
	}
}

func (con *ConContext) send(data any) {
	respBytes, err := json.Marshal(data)
	if err != nil {
		log.Error().Msgf("JSON marshal error: %v", err)
		return
	}

	log.Debug().Msgf("ws<- %v", string(respBytes))

	con.wmu.Lock()
	defer con.wmu.Unlock()
	err = con.Connection.WriteMessage(websocket.TextMessage, respBytes)
	if err != nil {
		log.Error().Msgf("Write error: %v", err)
	}
}

// notify sends data to every subscription of the connection to event.
func (con *ConContext) notify(event string, data any) {
	for _, sub := range con.SM.getSubsForEvent(event) {
		con.send(&RPCBroadcast{
			JSONRPC: "2.0",
			Method:  "stake_subscription",
			Params: BroadcastParams{
				Subscription: sub.id,
				Result: map[string]any{
					"event": event,
					"data":  data,
				},
			},
		})
	}
}
