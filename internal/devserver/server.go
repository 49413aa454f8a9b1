// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jeranaias/chatly-tui/internal/backend"
	"github.com/jeranaias/chatly-tui/internal/config"
	"github.com/jeranaias/chatly-tui/internal/logging"
)

// GuestUser owns requests that carry no user id.
const GuestUser = "guest"

// Response copy shared with the client.
const (
	MsgNoFile         = "No file uploaded"
	MsgEmptyFilename  = "Empty filename"
	MsgUploaded       = "Successfully uploaded document"
	MsgEmptyQuery     = "Empty query"
	MsgSynthesisError = "Internal error during RAG synthesis"
	MsgMissingID      = "Missing id"
)

// Server is the development backend.
type Server struct {
	cfg       config.DevServerConfig
	store     *Store
	answerer  Answerer
	engine    *gin.Engine
	uploadDir string
	log       *logging.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAnswerer replaces the keyword answerer.
func WithAnswerer(a Answerer) Option {
	return func(s *Server) { s.answerer = a }
}

// WithLogger sets the server logger.
func WithLogger(log *logging.Logger) Option {
	return func(s *Server) { s.log = log.Named("devserver") }
}

// New opens the store under cfg.DataDir and builds the router.
func New(cfg config.DevServerConfig, opts ...Option) (*Server, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("devserver: data directory is empty")
	}
	store, err := OpenStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		store:     store,
		uploadDir: filepath.Join(cfg.DataDir, "uploads"),
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.answerer == nil {
		s.answerer = NewKeywordAnswerer(store)
	}
	s.engine = s.router()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Close releases the store.
func (s *Server) Close() error {
	return s.store.Close()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dev backend listening", logging.Fields{"addr": s.cfg.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// ROUTES
// =============================================================================

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	origins := s.cfg.AllowOrigins
	if len(origins) == 0 {
		origins = config.Default().DevServer.AllowOrigins
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	r.GET("/healthcheck", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST(backend.PathUpload, s.handleUpload)
	r.POST(backend.PathQuery, s.handleQuery)
	r.GET(backend.PathHistory, s.handleHistory)
	r.POST(backend.PathHistoryDelete, s.handleDelete)
	r.POST(backend.PathHistoryClear, s.handleClear)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := logging.Fields{
			"method":      c.Request.Method,
			"path":        path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			s.log.Error("HTTP request", fields)
		case status >= 400:
			s.log.Warn("HTTP request", fields)
		default:
			s.log.Debug("HTTP request", fields)
		}
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func userOr(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return GuestUser
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, backend.MaxUploadBytes+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": MsgNoFile})
		return
	}
	userID := userOr(c.PostForm("user_id"))

	name := SecureFilename(header.Filename)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": MsgEmptyFilename})
		return
	}

	// SECURITY: the user id becomes a directory name, so sanitize it too.
	dir := filepath.Join(s.uploadDir, SecureFilename(userID))
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		s.uploadFailed(c, userID, name, err)
		return
	}
	if err := c.SaveUploadedFile(header, path); err != nil {
		s.uploadFailed(c, userID, name, err)
		return
	}

	doc, err := os.ReadFile(path)
	if err != nil {
		s.uploadFailed(c, userID, name, err)
		return
	}
	n, err := s.answerer.Ingest(c.Request.Context(), userID, name, doc)
	if err != nil {
		s.uploadFailed(c, userID, name, err)
		return
	}

	s.log.Info("document ingested", logging.Fields{"user_id": userID, "file": name, "chunks": n})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": MsgUploaded})
}

func (s *Server) uploadFailed(c *gin.Context, userID, name string, err error) {
	s.log.Error("upload failed", logging.Fields{"user_id": userID, "file": name, "error": err})
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
}

type queryBody struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var body queryBody
	_ = c.ShouldBindJSON(&body)

	query := strings.TrimSpace(body.Query)
	userID := userOr(body.UserID)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "answer": MsgEmptyQuery})
		return
	}

	ctx := c.Request.Context()
	res, err := s.answerer.Answer(ctx, userID, query)
	if err == nil {
		_, err = s.store.LogQuery(ctx, userID, query, res.Answer, res.Confidence)
	}
	if err != nil {
		s.log.Error("query failed", logging.Fields{"user_id": userID, "error": err})
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "answer": MsgSynthesisError, "error": err.Error()})
		return
	}

	sources := res.Sources
	if sources == nil {
		sources = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"answer":     res.Answer,
		"confidence": res.Confidence,
		"sources":    sources,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	userID := userOr(c.Query("user_id"))
	records, err := s.store.History(c.Request.Context(), userID)
	if err != nil {
		s.log.Error("fetch history failed", logging.Fields{"user_id": userID, "error": err})
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": records})
}

type deleteBody struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
}

func (s *Server) handleDelete(c *gin.Context) {
	var body deleteBody
	_ = c.ShouldBindJSON(&body)
	if body.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": MsgMissingID})
		return
	}
	userID := userOr(body.UserID)
	n, err := s.store.Delete(c.Request.Context(), userID, body.ID)
	if err != nil {
		s.log.Error("delete history item failed", logging.Fields{"user_id": userID, "id": body.ID, "error": err})
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": n})
}

func (s *Server) handleClear(c *gin.Context) {
	var body struct {
		UserID string `json:"user_id"`
	}
	_ = c.ShouldBindJSON(&body)
	userID := userOr(body.UserID)
	n, err := s.store.Clear(c.Request.Context(), userID)
	if err != nil {
		s.log.Error("clear history failed", logging.Fields{"user_id": userID, "error": err})
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": n})
}

// SecureFilename reduces name to a safe single path element made of ASCII
// letters, digits, dots, dashes and underscores. It returns "" when nothing
// usable remains.
func SecureFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteByte(' ')
		}
	}
	out := strings.Join(strings.Fields(b.String()), "_")
	return strings.Trim(out, "._")
}
