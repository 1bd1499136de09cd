package usbctl

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
	"github.com/keysas-fr/keysas-io/pkg/log"
	"github.com/keysas-fr/keysas-io/pkg/verify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server accepts WebSocket connections on the push-only device-state
// endpoint (spec §6). Each accepted connection gets its own udev monitor
// and its own Controller (spec §5: "one thread per WebSocket client owns
// one udev monitor and one event loop; there is no cross-client shared
// state") — a second client never observes a first client's device-state
// history, it starts fresh.
type Server struct {
	CA        *verify.CACertificates
	SasIn     string
	SasOut    string
	YubikeyOn bool
	Auth      AuthOracle
}

// ServeHTTP upgrades the connection and spawns its dedicated Controller.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket upgrade failed: %s", err)
		return
	}
	log.Info("received a new websocket handshake")
	go s.serveConnection(conn)
}

// serveConnection owns conn for its whole lifetime: a fresh udev event
// source and Controller are created just for this client and torn down
// when it disconnects.
func (s *Server) serveConnection(conn *websocket.Conn) {
	defer conn.Close()

	source, err := NewUdevEventSource()
	if err != nil {
		log.Errorf("opening udev monitor for new client failed: %s", err)
		return
	}
	defer source.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go drainUntilClosed(conn, cancel)

	ctrl := NewController(Config{
		CA:        s.CA,
		SasIn:     s.SasIn,
		SasOut:    s.SasOut,
		YubikeyOn: s.YubikeyOn,
		Auth:      s.Auth,
		Publisher: &connPublisher{conn: conn},
	})
	if err := ctrl.Run(ctx, source); err != nil {
		log.Errorf("client event loop stopped: %s", err)
	}
}

// drainUntilClosed discards client frames (the protocol is push-only,
// clients are never expected to send anything) until the connection
// closes, then cancels ctx so the owning Controller's Run loop returns.
func drainUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// connPublisher pushes Snapshot frames to the single WebSocket connection
// it owns.
type connPublisher struct {
	conn *websocket.Conn
}

func (p *connPublisher) Publish(snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return kerrors.New(kerrors.IoFatal, "usbctl.connPublisher.Publish.marshal", err)
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return kerrors.New(kerrors.IoTransient, "usbctl.connPublisher.Publish.write", err)
	}
	return nil
}

// ListenAndServe binds addr (spec §6: "127.0.0.1:3013") and serves the
// WebSocket endpoint until the listener is closed.
func ListenAndServe(addr string, s *Server) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	srv := &http.Server{Addr: addr, Handler: mux}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return kerrors.New(kerrors.ConfigFatal, "usbctl.ListenAndServe", err)
	}
	return nil
}
