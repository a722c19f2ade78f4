// Package api is the HTTP control surface: panel reads and writes, travel
// requests, per-tick frames and a websocket frame feed. Handlers only ever
// read published snapshots; mutations go through the panel.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/internal/panel"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
)

// DefaultFeedRate is the websocket frame rate per connection.
const DefaultFeedRate = 20.0

// Option customises a Server.
type Option func(*Server)

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(c *observability.SimCollector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithLogger sets the base request logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithFeedRate caps websocket frames per second per connection.
func WithFeedRate(hz float64) Option {
	return func(s *Server) {
		if hz > 0 {
			s.feedRate = hz
		}
	}
}

// WithAllowedOrigins restricts CORS and websocket origins. An empty list
// allows every origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// Server serves the API for one scene.
type Server struct {
	scene    *scene.Scene
	metrics  *observability.SimCollector
	log      logging.Logger
	feedRate float64
	origins  []string

	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New builds the router for sc.
func New(sc *scene.Scene, opts ...Option) *Server {
	s := &Server{
		scene:    sc,
		log:      logging.Noop(),
		feedRate: DefaultFeedRate,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(RequestID(s.log))
	r.Use(Tracing())
	if s.metrics != nil {
		r.Use(Metrics(s.metrics))
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	r.GET("/healthz", s.healthz)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/bodies", s.listBodies)
		v1.GET("/bodies/:id", s.getBody)
		v1.GET("/panel", s.getPanel)
		v1.PATCH("/panel", s.patchPanel)
		v1.POST("/travel", s.postTravel)
		v1.POST("/animation", s.postAnimation)
		v1.GET("/frame", s.getFrame)
		v1.GET("/stars", s.getStars)
		v1.GET("/ws", s.feed)
	}
	return r
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(s.origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.origins
	}
	return cors.New(cfg)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(s.origins) == 0 || origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == origin {
			return true
		}
	}
	return false
}

func writeError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(ToHTTPStatus(err), gin.H{"error": err.Error()})
}

func (s *Server) healthz(c *gin.Context) {
	latest := s.scene.Engine.Latest()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"settled": s.scene.Registry.Settled(),
		"index":   latest.Index,
	})
}

func (s *Server) listBodies(c *gin.Context) {
	frames := make(map[string]core.BodyFrame)
	for _, b := range s.scene.Engine.Latest().Bodies {
		frames[b.ID] = b
	}
	statuses := s.scene.Statuses()
	out := make([]BodyDTO, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, bodyView(st, frames))
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "count": len(out)})
}

func (s *Server) getBody(c *gin.Context) {
	id := scene.BodyID(c.Param("id"))
	if !s.scene.Catalogue.Has(id) {
		writeError(c, fmt.Errorf("%w: body %q", ErrNotFound, id))
		return
	}
	frames := make(map[string]core.BodyFrame)
	for _, b := range s.scene.Engine.Latest().Bodies {
		frames[b.ID] = b
	}
	st, err := s.scene.Registry.Status(id)
	if err != nil && !errors.Is(err, kb.ErrBodyNotFound) {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bodyView(scene.BodyStatus{ID: id, Status: st}, frames)})
}

// bodyView prefers the published frame; bodies that are not ready yet
// report only their status.
func bodyView(st scene.BodyStatus, frames map[string]core.BodyFrame) BodyDTO {
	if f, ok := frames[st.ID]; ok {
		return toBody(f)
	}
	return BodyDTO{ID: st.ID, Status: st.Status.String()}
}

func (s *Server) getPanel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.scene.Panel.Values()})
}

func (s *Server) patchPanel(c *gin.Context) {
	var u panel.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		writeError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if err := s.scene.Panel.Apply(u); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.scene.Panel.Values()})
}

type travelRequest struct {
	Target string `json:"target"`
}

// postTravel arms a launch for the next tick. The outcome arrives as a
// launched, no_intercept or launch_rejected event on the frame feed.
func (s *Server) postTravel(c *gin.Context) {
	var req travelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	ship := s.scene.Engine.Latest().Ship
	switch {
	case ship == nil:
		writeError(c, fmt.Errorf("%w: ship not loaded", core.ErrNotReady))
		return
	case ship.State == model.StateTraveling:
		writeError(c, fmt.Errorf("%w: en route to %s", core.ErrAlreadyTraveling, ship.Target))
		return
	}
	target := req.Target
	if target == "" {
		target = s.scene.Panel.Values().Target
	}
	target = scene.BodyID(target)
	if target == ship.Body {
		writeError(c, fmt.Errorf("%w: %s", core.ErrSameBody, target))
		return
	}
	launch := true
	if err := s.scene.Panel.Apply(panel.Update{Target: &target, Launch: &launch}); err != nil {
		writeError(c, err)
		return
	}
	requestLogger(c, s.log).Info(c.Request.Context(), "travel requested",
		logging.String("from", ship.Body),
		logging.String("target", target),
	)
	c.JSON(http.StatusAccepted, gin.H{"data": s.scene.Panel.Values()})
}

type animationRequest struct {
	Enabled *bool `json:"enabled"`
}

// postAnimation sets the animation toggle, or flips it when no value is
// given.
func (s *Server) postAnimation(c *gin.Context) {
	var req animationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	enabled := !s.scene.Panel.Values().Animation
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	if err := s.scene.Panel.SetAnimation(enabled); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.scene.Panel.Values()})
}

func (s *Server) getFrame(c *gin.Context) {
	particles, _ := strconv.ParseBool(c.Query("particles"))
	c.JSON(http.StatusOK, gin.H{"data": toFrame(s.scene.Engine.Latest(), particles)})
}

func (s *Server) getStars(c *gin.Context) {
	stars := toStars(s.scene.Stars)
	c.JSON(http.StatusOK, gin.H{"data": stars, "count": len(stars)})
}

// feed streams frames over a websocket at most feedRate times a second,
// skipping ticks that have not advanced.
func (s *Server) feed(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer conn.Close()

	particles, _ := strconv.ParseBool(c.Query("particles"))
	ctx := c.Request.Context()
	log := requestLogger(c, s.log)

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(s.feedRate), 1)
	var (
		last uint64
		sent bool
	)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case <-closed:
			return
		default:
		}
		snap := s.scene.Engine.Latest()
		if sent && snap.Index == last {
			continue
		}
		last, sent = snap.Index, true
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(toFrame(snap, particles)); err != nil {
			log.Debug(ctx, "frame feed closed", logging.Err(err))
			return
		}
	}
}
