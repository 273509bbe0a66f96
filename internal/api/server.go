// Package api exposes the engine's state over HTTP for dashboards and a
// small control surface that re-enters the coordinator's normal buy/sell
// paths. It never mutates the ledger directly.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"swing-engine/internal/coordinator"
	"swing-engine/internal/events"
	"swing-engine/internal/ledger"
	"swing-engine/internal/monitor"
	"swing-engine/internal/risk"
	"swing-engine/internal/strategy"
)

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	Venue     string   `json:"venue"`
	Watchlist []string `json:"watchlist"`
	Version   string   `json:"version"`
}

// Server wires HTTP endpoints around the engine.
type Server struct {
	Router   *gin.Engine
	Bus      *events.Bus
	Ledger   *ledger.Manager
	Resolver *strategy.Resolver
	Risk     *risk.Manager
	Monitor  *monitor.Monitor
	Coord    *coordinator.Coordinator

	JWTSecret    string
	PasswordHash string
	Meta         SystemMeta
}

// NewServer builds the router with the standard middleware stack.
func NewServer(s *Server) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s.Router = r
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.POST("/auth/login", s.login)

		api.GET("/status", s.getStatus)
		api.GET("/positions", s.getPositions)
		api.GET("/trades", s.getTrades)
		api.GET("/config/:symbol", s.getConfig)
		api.GET("/risk/summary", s.getRiskSummary)

		// Control endpoints re-enter the coordinator's normal paths.
		control := api.Group("/")
		control.Use(AuthMiddleware(s.JWTSecret))
		{
			control.POST("/scan", s.postScan)
			control.POST("/positions/:symbol/close", s.postClose)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":          string(s.Coord.State()),
		"open_positions": s.Ledger.Count(),
		"max_positions":  s.Risk.MaxPositions(),
		"available":      s.Risk.AvailableCapital(),
		"venue":          s.Meta.Venue,
		"watchlist":      s.Meta.Watchlist,
		"version":        s.Meta.Version,
		"server_time":    time.Now().UTC(),
	})
}

func (s *Server) getPositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.Ledger.Positions()})
}

func (s *Server) getTrades(c *gin.Context) {
	trades, err := s.Ledger.Trades(c.Request.Context(), 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) getConfig(c *gin.Context) {
	symbol := c.Param("symbol")
	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"config": s.Resolver.Resolve(symbol),
	})
}

func (s *Server) getRiskSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.Monitor.Snapshot())
}

func (s *Server) postScan(c *gin.Context) {
	s.Coord.RequestScan()
	c.JSON(http.StatusAccepted, gin.H{"status": "scan requested"})
}

func (s *Server) postClose(c *gin.Context) {
	symbol := c.Param("symbol")
	if _, held := s.Ledger.Position(symbol); !held {
		c.JSON(http.StatusNotFound, gin.H{"error": "no open position on " + symbol})
		return
	}
	s.Coord.RequestClose(symbol)
	c.JSON(http.StatusAccepted, gin.H{"status": "close requested", "symbol": symbol})
}
