package mockserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/logger"
)

const shutdownTimeout = 5 * time.Second

// Server is a gin-backed stream server for exercising clients: a pub/sub
// SSE endpoint and scripted workflow endpoints.
type Server struct {
	config Config
	engine *gin.Engine
	hub    *Hub
	relay  *Relay
	tokens *Tokens
	log    *logger.Logger
	seq    atomic.Uint64

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	hubDone  chan struct{}
}

// New creates a server with every route registered. Call Start to serve.
func New(cfg Config, log *logger.Logger) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("mockserver")

	if log.Enabled("debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: cfg,
		engine: gin.New(),
		hub:    NewHub(log),
		log:    log,
	}
	if cfg.Redis.Enabled() {
		s.relay = NewRelay(cfg.Redis, s.hub, log)
	}
	if cfg.TokenSecret != "" {
		tokens, err := NewTokens(cfg.TokenSecret, cfg.TokenTTL)
		if err != nil {
			return nil, err
		}
		s.tokens = tokens
	}
	s.engine.Use(recovery(log), requestID(), requestLogger(log))
	s.engine.GET("/health", s.health)
	s.engine.GET("/events/:channel", s.serveEvents)
	s.engine.POST("/broadcast/:channel", s.publish)
	s.engine.POST("/workflows/run", s.runWorkflow)
	s.engine.POST("/workflows/run/:id", s.runWorkflow)
	s.engine.POST("/chat-messages", s.chat)
	return s, nil
}

// Handler returns the root handler, for use with httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Tokens returns the token service, or nil without a TokenSecret.
func (s *Server) Tokens() *Tokens { return s.tokens }

// Hub returns the subscriber hub.
func (s *Server) Hub() *Hub { return s.hub }

// Publisher returns where broadcasts go: the relay when Redis is
// configured, otherwise the hub.
func (s *Server) Publisher() Publisher {
	if s.relay != nil {
		return s.relay
	}
	return s.hub
}

func (s *Server) nextID() string {
	return strconv.FormatUint(s.seq.Add(1), 10)
}

// Start starts the hub, binds the port and serves in the background. It
// returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		return nil
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mock server failed to bind %s: %w", addr, err)
	}

	s.hubDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		s.hub.Run()
	}(s.hubDone)
	if s.relay != nil {
		if err := s.relay.Start(ctx); err != nil {
			s.hub.Stop()
			<-s.hubDone
			_ = ln.Close()
			return err
		}
	}

	s.listener = ln
	s.http = &http.Server{
		Handler:           h2c.NewHandler(s.engine, &http2.Server{IdleTimeout: 120 * time.Second}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("mock server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}(s.http)

	s.log.Info("mock server listening", logger.Fields("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// URL returns the base http URL of the server.
func (s *Server) URL() string { return "http://" + s.Addr() }

// Stop closes every stream and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http == nil {
		return nil
	}

	if s.relay != nil {
		if err := s.relay.Close(); err != nil {
			s.log.Warn("relay close", logger.Fields(logger.FieldError, err.Error()))
		}
	}
	s.hub.Stop()
	<-s.hubDone

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(ctx)
	s.http, s.listener = nil, nil
	if err != nil {
		return fmt.Errorf("mock server shutdown: %w", err)
	}
	s.log.Info("mock server stopped")
	return nil
}

// Routes lists the registered routes sorted by path.
func (s *Server) Routes() []component.Route {
	info := s.engine.Routes()
	slices.SortFunc(info, func(a, b gin.RouteInfo) int {
		if a.Path != b.Path {
			if a.Path < b.Path {
				return -1
			}
			return 1
		}
		if a.Method < b.Method {
			return -1
		}
		if a.Method > b.Method {
			return 1
		}
		return 0
	})

	routes := make([]component.Route, 0, len(info))
	for _, r := range info {
		routes = append(routes, component.Route{Method: r.Method, Path: r.Path, Handler: shortHandler(r.Handler)})
	}
	return routes
}

// shortHandler trims "github.com/x/mockserver.(*Server).publish-fm" to "(*Server).publish".
func shortHandler(name string) string {
	name = name[strings.LastIndex(name, "/")+1:]
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
