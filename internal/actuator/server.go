package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/report"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server serves facade adjustments over a websocket and exposes the
// recorded series over a small JSON API.
type Server struct {
	config   ServerConfig
	hub      *Hub
	recorder *report.Recorder
	status   StatusProvider
	fallback FallbackFunc
	logger   *zap.Logger
	router   *gin.Engine

	wsMu      sync.RWMutex
	wsClients map[uuid.UUID]*wsClient
}

type wsClient struct {
	id         uuid.UUID
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{} // closed by the read pump
	writerDone chan struct{} // closed by the write pump
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Recorder *report.Recorder
	Status   StatusProvider
	Fallback FallbackFunc
	Logger   *zap.Logger
}

// NewServer builds the router. A nil recorder serves empty series.
func NewServer(cfg ServerConfig, hub *Hub, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = report.NewRecorder(report.DefaultMaxRecords)
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:    cfg,
		hub:       hub,
		recorder:  opts.Recorder,
		status:    opts.Status,
		fallback:  opts.Fallback,
		logger:    opts.Logger,
		router:    gin.New(),
		wsClients: make(map[uuid.UUID]*wsClient),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	{
		api.GET("/facade_data", s.facadeData)
		api.GET("/energy_data", s.energyData)
		api.GET("/comfort_data", s.comfortData)
		api.GET("/current_status", s.currentStatus)
		api.GET("/rl_performance", s.rlPerformance)
	}
}

// Handler returns the router for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.wsMu.RLock()
	defer s.wsMu.RUnlock()
	return len(s.wsClients)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("actuator listening", zap.String("addr", s.config.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.closeClients()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// #region websocket
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		id:         uuid.New(),
		conn:       conn,
		send:       make(chan []byte, s.config.SendBuffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	var updates <-chan Adjustments
	if s.config.PushUpdates {
		updates = s.hub.Subscribe(client.id)
	}

	s.wsMu.Lock()
	s.wsClients[client.id] = client
	s.wsMu.Unlock()
	s.logger.Info("websocket client connected", zap.String("client", client.id.String()))

	go s.wsWritePump(client, updates)
	go s.wsReadPump(client)
}

func (s *Server) wsReadPump(client *wsClient) {
	defer func() {
		s.hub.Unsubscribe(client.id)
		s.wsMu.Lock()
		delete(s.wsClients, client.id)
		s.wsMu.Unlock()
		close(client.done)
		client.conn.Close()
		s.logger.Info("websocket client disconnected", zap.String("client", client.id.String()))
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleWSMessage(client, message)
	}
}

// wsWritePump owns all writes to the connection. On exit it closes the
// connection so the read pump unblocks and cleans up.
func (s *Server) wsWritePump(client *wsClient, updates <-chan Adjustments) {
	defer func() {
		close(client.writerDone)
		client.conn.Close()
	}()

	for {
		select {
		case message := <-client.send:
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case adj := <-updates:
			message, err := json.Marshal(Message{Type: MessageFacadeAdjustments, Data: adj})
			if err != nil {
				continue
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-client.done:
			return
		}
	}
}

func (s *Server) handleWSMessage(client *wsClient, message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		s.enqueue(client, Message{Type: MessageError, Data: ErrorData{Message: "malformed message"}})
		return
	}

	switch msg.Type {
	case MessageRequestAdjustments:
		adj, err := s.currentAdjustments()
		if err != nil {
			s.logger.Warn("no adjustments to serve", zap.Error(err))
			s.enqueue(client, Message{Type: MessageError, Data: ErrorData{Message: err.Error()}})
			return
		}
		s.enqueue(client, Message{Type: MessageFacadeAdjustments, Data: adj})
	default:
		s.enqueue(client, Message{Type: MessageError, Data: ErrorData{Message: "unknown message type: " + msg.Type}})
	}
}

// currentAdjustments prefers the last published action and falls back to
// on-demand inference.
func (s *Server) currentAdjustments() (Adjustments, error) {
	if a, _, ok := s.hub.Latest(); ok {
		return FromAction(a), nil
	}
	if s.fallback == nil {
		return Adjustments{}, ErrNoAdjustments
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.FallbackTimeout)
	defer cancel()
	a, err := s.fallback(ctx)
	if err != nil {
		return Adjustments{}, errors.Join(ErrNoAdjustments, err)
	}
	return FromAction(a.Clip()), nil
}

func (s *Server) enqueue(client *wsClient, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	case <-client.done:
	case <-client.writerDone:
	}
}

func (s *Server) closeClients() {
	s.wsMu.RLock()
	defer s.wsMu.RUnlock()
	for _, client := range s.wsClients {
		client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(time.Second))
	}
}

// #endregion websocket

// #region api
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) facadeData(c *gin.Context) {
	c.JSON(http.StatusOK, s.recorder.Facade())
}

func (s *Server) energyData(c *gin.Context) {
	c.JSON(http.StatusOK, s.recorder.Energy())
}

func (s *Server) comfortData(c *gin.Context) {
	c.JSON(http.StatusOK, s.recorder.Comfort())
}

// CurrentStatus is the latest facade state and evaluator reading.
type CurrentStatus struct {
	LastUpdate  *float64 `json:"last_update"`
	PanelCount  int      `json:"panel_count"`
	Rotation    *float64 `json:"rotation"`
	Depth       *float64 `json:"depth"`
	EnergyUse   *float64 `json:"energy_use"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Connected   int      `json:"connected_clients"`
}

func (s *Server) currentStatus(c *gin.Context) {
	out := CurrentStatus{Connected: s.Clients()}
	if f, ok := s.recorder.LatestFacade(); ok {
		out.LastUpdate = &f.Time
		out.PanelCount = f.PanelCount
		out.Rotation = &f.Rotation
		out.Depth = &f.Depth
	}
	if e, ok := s.recorder.LatestEnergy(); ok {
		out.EnergyUse = &e.EnergyUse
		out.Temperature = &e.Temperature
		out.Humidity = &e.Humidity
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) rlPerformance(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trainer not attached"})
		return
	}
	c.JSON(http.StatusOK, s.status.Status())
}

// #endregion api
