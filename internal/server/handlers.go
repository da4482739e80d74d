package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rebeliceyang/lazygrid/internal/apperrors"
	"github.com/rebeliceyang/lazygrid/internal/models"
)

// CreateTableRequest represents a table creation request
type CreateTableRequest struct {
	Name string `json:"name"`
}

// CreateColumnRequest represents a column creation request
type CreateColumnRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CreateRowRequest represents a row creation request. Values are keyed by
// column name.
type CreateRowRequest struct {
	Values map[string]string `json:"values"`
}

// UpdateCellRequest represents a cell update request
type UpdateCellRequest struct {
	Value *string `json:"value"`
}

// SortRequest represents a sort request. No keys resets the order.
type SortRequest struct {
	Keys []models.SortKey `json:"keys"`
}

// Health reports whether the store is reachable
func (s *Server) Health(c *gin.Context) {
	if err := s.views.Ping(c.Request.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListTables lists all tables
func (s *Server) ListTables(c *gin.Context) {
	tables, err := s.views.ListTables(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

// CreateTable creates a new table
func (s *Server) CreateTable(c *gin.Context) {
	var req CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	table, err := s.views.CreateTable(c.Request.Context(), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, table)
}

// GetTable returns the table's filtered rows in their current order
func (s *Server) GetTable(c *gin.Context) {
	view, err := s.views.LoadView(c.Request.Context(), c.Param("id"), c.Query("search"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateFilter replaces the table's filter. The body is the filter tree.
func (s *Server) UpdateFilter(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tableID := c.Param("id")
	if err := s.views.SetFilterJSON(c.Request.Context(), tableID, string(body)); err != nil {
		s.fail(c, err)
		return
	}
	s.respondView(c, tableID)
}

// SortTable reorders the table's rows
func (s *Server) SortTable(c *gin.Context) {
	var req SortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tableID := c.Param("id")
	if err := s.views.SetSort(c.Request.Context(), tableID, req.Keys); err != nil {
		s.fail(c, err)
		return
	}
	s.respondView(c, tableID)
}

// ResetOrder restores insertion order
func (s *Server) ResetOrder(c *gin.Context) {
	tableID := c.Param("id")
	if err := s.views.ResetOrder(c.Request.Context(), tableID); err != nil {
		s.fail(c, err)
		return
	}
	s.respondView(c, tableID)
}

// CreateColumn adds a column to a table
func (s *Server) CreateColumn(c *gin.Context) {
	var req CreateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	col, err := s.views.CreateColumn(c.Request.Context(), c.Param("id"), req.Name, req.Type)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

// CreateRow appends a row to a table
func (s *Server) CreateRow(c *gin.Context) {
	var req CreateRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	row, err := s.views.CreateRow(c.Request.Context(), c.Param("id"), req.Values)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

// UpdateCell changes one cell's value
func (s *Server) UpdateCell(c *gin.Context) {
	var req UpdateCellRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}

	cell, err := s.views.UpdateCell(c.Request.Context(), c.Param("id"), *req.Value)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cell)
}

// History lists recent view changes of a table
func (s *Server) History(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := s.views.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) respondView(c *gin.Context, tableID string) {
	view, err := s.views.LoadView(c.Request.Context(), tableID, "")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if apperrors.IsRetryable(err) {
		c.Header("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
