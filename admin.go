package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// AdminServer is the operational HTTP side-channel (§4.16): health,
// metrics, and session introspection, kept on its own port so it can be
// probed independently of the control-plane protocol.
type AdminServer struct {
	hub  *Hub
	echo *echo.Echo
}

func NewAdminServer(h *Hub) *AdminServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = adminErrorHandler

	s := &AdminServer{hub: h, echo: e}
	e.GET("/healthz", s.handleHealthz)
	e.GET("/metricsz", s.handleMetricsz)
	e.GET("/api/sessions", s.handleSessions)
	return s
}

// Run starts the admin HTTP server on addr and blocks until ctx is
// cancelled, then shuts it down gracefully.
func (s *AdminServer) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Printf("[admin] server error: %v", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		log.Printf("[admin] shutdown: %v", err)
	}
}

type healthzResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

func (s *AdminServer) handleHealthz(c echo.Context) error {
	dbStatus := "ok"
	status := http.StatusOK
	if err := s.hub.store.Ping(); err != nil {
		dbStatus = err.Error()
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, healthzResponse{Status: "ok", DB: dbStatus})
}

func (s *AdminServer) handleMetricsz(c echo.Context) error {
	return c.JSON(http.StatusOK, s.hub.metrics.Snapshot())
}

type sessionView struct {
	UserID   string `json:"user_id"`
	LastSeen int64  `json:"last_seen"`
}

func (s *AdminServer) handleSessions(c echo.Context) error {
	users := s.hub.registry.GetAllUsers()
	views := make([]sessionView, 0, len(users))
	for _, u := range users {
		views = append(views, sessionView{UserID: u})
	}
	return c.JSON(http.StatusOK, views)
}

func adminErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		c.JSON(code, map[string]string{"error": msg})
	}
}
