package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/component"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/version"
)

// Backend is the table store served over HTTP. memtable.Store implements it.
type Backend interface {
	feed.Source
	Tables(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, name string) error
	DropTable(ctx context.Context, name string) error
	Insert(ctx context.Context, table string, doc feed.Document) (feed.Document, error)
	Update(ctx context.Context, table string, id any, patch feed.Document) (feed.Document, error)
	Replace(ctx context.Context, table string, id any, doc feed.Document) (feed.Document, error)
	Delete(ctx context.Context, table string, id any) (feed.Document, error)
	Get(ctx context.Context, table string, id any) (feed.Document, error)
	Scan(ctx context.Context, table string) (*feed.Rows, error)
}

func (s *Server) registerRoutes(health HealthChecker) {
	r := s.engine
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		RespondWithError(c, apperrors.NotFound("route", c.Request.URL.Path))
	})

	r.GET("/health", s.health(health))

	tables := r.Group("/tables")
	tables.GET("", s.listTables)
	tables.POST("/:table", s.createTable)
	tables.DELETE("/:table", s.dropTable)
	tables.GET("/:table/changes", s.changes)

	docs := tables.Group("/:table/docs")
	docs.GET("", s.scan)
	docs.POST("", s.insert)
	docs.GET("/:id", s.get)
	docs.PATCH("/:id", s.update)
	docs.PUT("/:id", s.replace)
	docs.DELETE("/:id", s.delete)
}

func (s *Server) health(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
		}
		status := component.Overall(components)

		code := http.StatusOK
		if status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"version":    version.Short(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": components,
		})
	}
}

func (s *Server) listTables(c *gin.Context) {
	names, err := s.backend.Tables(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, names)
}

func (s *Server) createTable(c *gin.Context) {
	name := c.Param("table")
	if err := s.backend.CreateTable(c.Request.Context(), name); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, gin.H{"table": name})
}

func (s *Server) dropTable(c *gin.Context) {
	if err := s.backend.DropTable(c.Request.Context(), c.Param("table")); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (s *Server) scan(c *gin.Context) {
	rows, err := s.backend.Scan(c.Request.Context(), c.Param("table"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	defer rows.Close()

	docs, err := feed.ToArray(c.Request.Context(), rows)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, docs)
}

func (s *Server) get(c *gin.Context) {
	doc, err := s.backend.Get(c.Request.Context(), c.Param("table"), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, doc)
}

func bindDocument(c *gin.Context) (feed.Document, bool) {
	var doc feed.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		RespondWithError(c, apperrors.InvalidInput("body", "body must be a JSON object"))
		return nil, false
	}
	if doc == nil {
		doc = feed.Document{}
	}
	return doc, true
}

func (s *Server) insert(c *gin.Context) {
	doc, ok := bindDocument(c)
	if !ok {
		return
	}
	doc, err := s.backend.Insert(c.Request.Context(), c.Param("table"), doc)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, doc)
}

func (s *Server) update(c *gin.Context) {
	patch, ok := bindDocument(c)
	if !ok {
		return
	}
	doc, err := s.backend.Update(c.Request.Context(), c.Param("table"), c.Param("id"), patch)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, doc)
}

func (s *Server) replace(c *gin.Context) {
	doc, ok := bindDocument(c)
	if !ok {
		return
	}
	doc, err := s.backend.Replace(c.Request.Context(), c.Param("table"), c.Param("id"), doc)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, doc)
}

func (s *Server) delete(c *gin.Context) {
	doc, err := s.backend.Delete(c.Request.Context(), c.Param("table"), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, doc)
}
