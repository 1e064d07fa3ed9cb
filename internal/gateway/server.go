// Package gateway admits WebSocket connections: it verifies the signed
// credential presented at handshake, attaches the decoded identity to
// the connection for its whole lifetime, and bridges client events into
// the broker. Rejection happens before the upgrade completes, so a bad
// credential never creates partial state.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"

	"github.com/meetwire/lounge/internal/auth"
	"github.com/meetwire/lounge/internal/broker"
	"github.com/meetwire/lounge/internal/config"
	"github.com/meetwire/lounge/internal/proto"
)

var log = logging.Logger("gateway")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browsers connect from the event platform's own origin; cross-origin
	// misuse is fenced by the credential check, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	addr   string
	secret []byte
	brk    *broker.Broker
	srv    *http.Server
	done   chan struct{}
}

func New(cfg config.Config, brk *broker.Broker) *Server {
	return &Server{
		addr:   cfg.Addr,
		secret: []byte(cfg.Secret),
		brk:    brk,
		done:   make(chan struct{}),
	}
}

// Handler returns the HTTP handler, exposed separately so tests can
// mount it on an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully. The error return covers listen failures; serve errors
// after startup are logged.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		defer close(s.done)
		<-ctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shctx)
	}()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	log.Infow("listening", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("serve", "err", err)
		}
	}()

	return nil
}

// Done is closed once graceful shutdown has completed. Callers that
// started the server should wait on it before exiting, or in-flight
// connections are cut off mid-drain.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// handleWS authenticates and admits one connection, then runs its read
// loop until the socket dies or the client leaves. Teardown calls the
// broker unconditionally — it is idempotent and safe for users that were
// never registered.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ident, err := s.authenticate(r)
	if err != nil {
		log.Debugw("rejected connection", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnw("websocket upgrade", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newClient(conn)
	go c.writePump()
	log.Infow("admitted", "user", ident.ID, "conn", c.ID(), "available", ident.NetworkingAvailable)

	// Every admitted connection observes presence, whether or not the
	// user is listed in it.
	if ident.NetworkingAvailable {
		s.brk.Register(ident, c)
	} else {
		s.brk.Attach(c)
	}

	s.readLoop(c, ident)

	s.brk.HandleDisconnect(ident.ID, c.ID())
	s.brk.Detach(c.ID())
	c.close()
	log.Infow("connection closed", "user", ident.ID, "conn", c.ID())
}

// authenticate extracts and verifies the signed credential. The token
// travels as a query parameter (the browser WebSocket API cannot set
// headers) with an Authorization: Bearer fallback for other clients.
func (s *Server) authenticate(r *http.Request) (auth.Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		return auth.Identity{}, errors.New("missing credential")
	}
	return auth.VerifyToken(token, s.secret)
}

func (s *Server) readLoop(c *client, ident auth.Identity) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.dispatch(c, ident, data)
	}
}

// dispatch routes one client message to the broker. Malformed input is
// logged and dropped — one connection's bad payload must never take the
// server down.
func (s *Server) dispatch(c *client, ident auth.Identity, data []byte) {
	var env proto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debugw("malformed envelope", "user", ident.ID, "err", err)
		return
	}

	switch env.Event {
	case proto.EventCallRequest:
		var p proto.CallTarget
		if !decode(env.Data, &p, ident.ID, env.Event) {
			return
		}
		s.brk.RequestCall(c, ident.ID, p.ToUserID)

	case proto.EventCallAccept:
		var p proto.CallTarget
		if !decode(env.Data, &p, ident.ID, env.Event) {
			return
		}
		s.brk.AcceptCall(c, ident.ID, p.ToUserID)

	case proto.EventCallReject:
		var p proto.CallTarget
		if !decode(env.Data, &p, ident.ID, env.Event) {
			return
		}
		s.brk.RejectCall(ident.ID, p.ToUserID)

	case proto.EventSignal:
		var p proto.SignalIn
		if !decode(env.Data, &p, ident.ID, env.Event) {
			return
		}
		s.brk.RelaySignal(ident.ID, p.ToUserID, p.Signal)

	case proto.EventEndCall:
		var p proto.CallTarget
		if !decode(env.Data, &p, ident.ID, env.Event) {
			return
		}
		s.brk.EndCall(ident.ID, p.ToUserID)

	case proto.EventNetworkingDisabled:
		s.brk.DisableNetworking(ident.ID)

	default:
		log.Debugw("unknown event", "user", ident.ID, "event", env.Event)
	}
}

func decode(raw json.RawMessage, into any, userID, event string) bool {
	if err := json.Unmarshal(raw, into); err != nil {
		log.Debugw("malformed payload", "user", userID, "event", event, "err", err)
		return false
	}
	return true
}
