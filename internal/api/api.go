// Package api implements the HTTP API of the annotation service on echo.
// All endpoints live under /api/v1 and speak JSON; errors use a common
// envelope with a correlation ID for log matching.
package api

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/diatomlab/diatom-annotator/internal/conf"
	"github.com/diatomlab/diatom-annotator/internal/datastore"
	"github.com/diatomlab/diatom-annotator/internal/logging"
	"github.com/diatomlab/diatom-annotator/internal/model"
	"github.com/diatomlab/diatom-annotator/internal/pdfops"
	"github.com/diatomlab/diatom-annotator/internal/session"
	"github.com/diatomlab/diatom-annotator/internal/species"
)

// SpeciesAssistant is the subset of the species assistant the handlers
// call. *species.Assistant implements it.
type SpeciesAssistant interface {
	ExtractPaperInfo(ctx context.Context, pdfText string) (*species.PaperInfo, error)
	ExtractCitation(ctx context.Context, firstPagesText string) *model.Citation
	FindMissingSpecies(ctx context.Context, pdfText string, labels []string) (*species.MissingSpeciesResult, error)
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	Settings  *conf.Settings
	Session   *session.Manager
	Processor *pdfops.Processor
	Assistant SpeciesAssistant
	DS        datastore.Interface

	logger *slog.Logger
}

// New creates the controller and registers all routes. Assistant and DS
// may be nil; the endpoints that need them respond 503.
func New(settings *conf.Settings, mgr *session.Manager, processor *pdfops.Processor,
	assistant SpeciesAssistant, ds datastore.Interface) *Controller {

	e := echo.New()
	e.HideBanner = true

	c := &Controller{
		Echo:      e,
		Settings:  settings,
		Session:   mgr,
		Processor: processor,
		Assistant: assistant,
		DS:        ds,
		logger:    logging.ForService("api"),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("64M"))
	e.Use(c.loggingMiddleware)

	e.GET("/healthz", c.Health)

	c.Group = e.Group("/api/v1")
	c.Group.GET("/diatoms", c.GetDiatoms)
	c.Group.POST("/diatoms/save", c.SaveDiatoms)
	c.Group.GET("/diatoms/download", c.DownloadLabels)
	c.Group.GET("/diatoms/assistant", c.DiatomListAssistant)
	c.Group.POST("/segmentation/upload", c.UploadSegmentation)
	c.Group.GET("/uploads", c.ListUploads)
	c.Group.GET("/uploads/:id", c.GetUpload)
	c.Group.POST("/papers/ingest", c.IngestPaper)

	return c
}

// Start runs the HTTP server until the listener fails or is shut down.
func (c *Controller) Start(addr string) error {
	c.logger.Info("starting http server", "addr", addr)
	return c.Echo.Start(addr)
}

// loggingMiddleware writes one structured log line per handled request.
func (c *Controller) loggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		c.logger.Debug("handled request",
			"method", ctx.Request().Method,
			"path", ctx.Request().URL.Path,
			"status", ctx.Response().Status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ctx.RealIP())
		return err
	}
}

// Health reports service liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"session": c.Settings.Session.ID,
		"papers":  c.Session.Count(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError logs err and writes the error envelope with the given
// status code.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := &ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.logger.Error("request failed",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", resp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())
	return ctx.JSON(code, resp)
}

// generateCorrelationID creates a short random identifier for matching an
// error response to its log line.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
