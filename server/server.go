// Package server ingests PCM audio over websockets. Every connection is one
// capture session whose slices are stored and acknowledged to the client.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vcnkl/coalesce/capture"
	"github.com/vcnkl/coalesce/logger"
)

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

type Options struct {
	Addr      string
	ReadLimit int64
	Format    capture.Format
	TimeSlice time.Duration
	Sink      capture.Sink
	Clock     clockwork.Clock
	Logger    logger.Logger
}

type Server struct {
	opts     Options
	log      logger.Logger
	upgrader websocket.Upgrader
	http     *http.Server
	closing  atomic.Bool
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[*websocket.Conn]string
}

func New(opts Options) (*Server, error) {
	if err := opts.Format.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	s := &Server{
		opts:  opts,
		log:   opts.Logger.WithPrefix("server"),
		conns: make(map[*websocket.Conn]string),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Sessions reports the number of open connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.opts.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes every open
// session and waits for their trailing slices to be stored.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("listening", logger.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.closing.Store(true)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := s.http.Shutdown(shutdownCtx)
		s.closeConns()
		return err
	})

	err := g.Wait()
	s.wg.Wait()
	s.log.Info("server stopped")
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.Sessions(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.closing.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logger.Err(err))
		return
	}
	if s.opts.ReadLimit > 0 {
		conn.SetReadLimit(s.opts.ReadLimit)
	}

	s.wg.Add(1)
	defer s.wg.Done()

	c := &connection{server: s, conn: conn}
	session, err := capture.NewSession(s.opts.Format, capture.SessionOptions{
		TimeSlice: s.opts.TimeSlice,
		Sink:      capture.SinkFunc(c.store),
		Clock:     s.opts.Clock,
		Logger:    s.log,
	})
	if err != nil {
		s.log.Error("failed to open session", logger.Err(err))
		_ = conn.Close()
		return
	}
	c.session = session

	s.track(conn, session.ID())
	defer s.untrack(conn)

	c.serve()
}

func (s *Server) track(conn *websocket.Conn, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = id
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}
