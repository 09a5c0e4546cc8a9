package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/waveprint/mixid/internal/logger"
	"github.com/waveprint/mixid/internal/models"
)

// StatsProvider is the subset of the fingerprint store the monitor needs to
// answer GET /stats.
type StatsProvider interface {
	Stats() (models.Stats, error)
}

// ProgressEvent is broadcast to websocket clients as indexing or mix
// analysis advances.
type ProgressEvent struct {
	Kind    string `json:"kind"` // "index" or "analyze"
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Matches int    `json:"matches,omitempty"`
}

// Server is an optional local HTTP server exposing engine introspection:
// GET /health, GET /stats, GET /metrics (Prometheus), and GET /ws/progress.
type Server struct {
	httpServer *http.Server
	hub        *Hub
	store      StatsProvider
}

// NewServer builds a monitor server listening on addr, reading stats from
// store and broadcasting progress through a shared Hub.
func NewServer(addr string, store StatsProvider) *Server {
	hub := NewHub()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws/progress", "/metrics"})))
	r.Use(otelgin.Middleware("mixid-monitor"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	r.GET("/stats", func(c *gin.Context) {
		stats, err := store.Stats()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws/progress", func(c *gin.Context) {
		conn, err := websocket.Accept(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
		defer hub.Unregister(conn)
		defer conn.CloseNow()

		// Block reading control frames until the client disconnects;
		// the monitor never expects inbound messages on this socket.
		for {
			if _, _, err := conn.Read(c.Request.Context()); err != nil {
				return
			}
		}
	})

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: r},
		hub:        hub,
		store:      store,
	}
}

// Broadcast publishes a progress event to every connected client. A nil
// Server is a no-op so callers can hold an optional *Server without checking.
func (s *Server) Broadcast(ctx context.Context, event ProgressEvent) {
	if s == nil {
		return
	}
	s.hub.Broadcast(ctx, event)
}

// Start runs the HTTP server in the background. Errors other than a clean
// shutdown are logged, not returned, since the monitor is always optional.
func (s *Server) Start() {
	if s == nil {
		return
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Warn("monitor server exited")
		}
	}()
}

// Shutdown gracefully stops the HTTP server and closes all websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}
