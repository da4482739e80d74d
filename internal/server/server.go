// Package server exposes the view manager over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rebeliceyang/lazygrid/internal/history"
	"github.com/rebeliceyang/lazygrid/internal/models"
)

// Views is the part of the view manager the HTTP layer drives
type Views interface {
	CreateTable(ctx context.Context, name string) (*models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	CreateColumn(ctx context.Context, tableID, name, typ string) (*models.Column, error)
	CreateRow(ctx context.Context, tableID string, values map[string]string) (*models.Row, error)
	UpdateCell(ctx context.Context, cellID, value string) (*models.Cell, error)
	SetFilterJSON(ctx context.Context, tableID, text string) error
	SetSort(ctx context.Context, tableID string, keys []models.SortKey) error
	ResetOrder(ctx context.Context, tableID string) error
	LoadView(ctx context.Context, tableID, search string) (*models.TableView, error)
	History(ctx context.Context, tableID string, limit int) ([]history.Entry, error)
	Ping(ctx context.Context) error
}

// Server holds the router and its dependencies
type Server struct {
	views  Views
	logger *slog.Logger
	router *gin.Engine
}

// New builds the router. mode is a gin mode: debug, release or test.
func New(views Views, mode string, logger *slog.Logger) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}

	s := &Server{views: views, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/health", s.Health)

	api := router.Group("/api")

	tables := api.Group("/tables")
	tables.GET("", s.ListTables)
	tables.POST("", s.CreateTable)
	tables.GET("/:id", s.GetTable)
	tables.PUT("/:id/filter", s.UpdateFilter)
	tables.POST("/:id/sort", s.SortTable)
	tables.POST("/:id/reset-order", s.ResetOrder)
	tables.POST("/:id/columns", s.CreateColumn)
	tables.POST("/:id/rows", s.CreateRow)
	tables.GET("/:id/history", s.History)

	api.PATCH("/cells/:id", s.UpdateCell)

	s.router = router
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
