package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/insect-id/internal/auth"
	"github.com/example/insect-id/internal/capture"
	"github.com/example/insect-id/internal/insect"
	"github.com/example/insect-id/internal/logging"
	"github.com/example/insect-id/internal/metrics"
	"github.com/example/insect-id/internal/store"
	"github.com/example/insect-id/internal/usecase"
)

// MaxUploadSize is the default image size limit in bytes.
const MaxUploadSize = 10 << 20

// multipartOverhead covers form boundaries and headers around the image.
const multipartOverhead = 64 << 10

// IdentificationService is the use case surface the routes depend on.
type IdentificationService interface {
	Identify(ctx context.Context, deviceID, encodedImage string) (*usecase.Outcome, error)
	History(ctx context.Context, deviceID string) []insect.StoredRecord
	Favorites(ctx context.Context, deviceID string) []insect.StoredRecord
	ClearHistory(ctx context.Context, deviceID string) error
	ToggleFavorite(ctx context.Context, deviceID, id string) (bool, error)
	GetSummary(ctx context.Context, deviceID string) store.Summary
}

// Config tunes the HTTP surface.
type Config struct {
	MaxUploadBytes int64
	ShareBaseURL   string
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
}

type routes struct {
	svc   IdentificationService
	limit int64
	share string
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc IdentificationService, authMiddleware gin.HandlerFunc, cfg Config) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = MaxUploadSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	r := &routes{svc: svc, limit: cfg.MaxUploadBytes, share: cfg.ShareBaseURL}

	router.Use(requestID(), observe(cfg.Metrics))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	authed := router.Group("/", authMiddleware)
	authed.POST("/identify", r.identify)
	authed.GET("/history", r.history)
	authed.DELETE("/history", r.clearHistory)
	authed.GET("/history/summary", r.summary)
	authed.POST("/history/:id/favorite", r.toggleFavorite)
	authed.GET("/favorites", r.favorites)
}

func (r *routes) identify(c *gin.Context) {
	deviceID, _ := auth.DeviceID(c.Request.Context())

	image, status, err := r.collect(c)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	outcome, err := r.svc.Identify(c.Request.Context(), deviceID, image)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "identification could not be saved; the record may not have been stored",
			"requestId": logging.RequestIDFromContext(c.Request.Context()),
		})
		return
	}

	switch outcome.Status {
	case usecase.StatusNotInsect:
		c.JSON(http.StatusUnprocessableEntity, render(outcome, r.share))
	case usecase.StatusSuperseded:
		c.JSON(http.StatusConflict, render(outcome, r.share))
	default:
		c.JSON(http.StatusOK, render(outcome, r.share))
	}
}

// collect normalizes a multipart upload or a JSON data URL body into a data
// URL, returning the HTTP status to use on failure.
func (r *routes) collect(c *gin.Context) (string, int, error) {
	contentType := c.ContentType()

	if strings.HasPrefix(contentType, "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, r.limit+multipartOverhead)
		file, err := c.FormFile("image")
		if err != nil {
			if isBodyTooLarge(err) {
				return "", http.StatusRequestEntityTooLarge, capture.ErrTooLarge
			}
			return "", http.StatusBadRequest, errors.New("image file is required")
		}
		image, err := capture.FromUpload(file, r.limit)
		return image, captureStatus(err), err
	}

	var body struct {
		Image string `json:"image" binding:"required"`
	}
	encodedLimit := r.limit/3*4 + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, encodedLimit)
	if err := c.ShouldBindJSON(&body); err != nil {
		if isBodyTooLarge(err) {
			return "", http.StatusRequestEntityTooLarge, capture.ErrTooLarge
		}
		return "", http.StatusBadRequest, errors.New("image data URL is required")
	}
	image, err := capture.FromDataURL(body.Image, r.limit)
	return image, captureStatus(err), err
}

func captureStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, capture.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, capture.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func (r *routes) history(c *gin.Context) {
	deviceID, _ := auth.DeviceID(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"items": r.svc.History(c.Request.Context(), deviceID)})
}

func (r *routes) favorites(c *gin.Context) {
	deviceID, _ := auth.DeviceID(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"items": r.svc.Favorites(c.Request.Context(), deviceID)})
}

func (r *routes) clearHistory(c *gin.Context) {
	deviceID, _ := auth.DeviceID(c.Request.Context())
	if err := r.svc.ClearHistory(c.Request.Context(), deviceID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear history"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *routes) summary(c *gin.Context) {
	deviceID, _ := auth.DeviceID(c.Request.Context())
	c.JSON(http.StatusOK, r.svc.GetSummary(c.Request.Context(), deviceID))
}

func (r *routes) toggleFavorite(c *gin.Context) {
	deviceID, _ := auth.DeviceID(c.Request.Context())
	id := c.Param("id")

	on, err := r.svc.ToggleFavorite(c.Request.Context(), deviceID, id)
	switch {
	case errors.Is(err, usecase.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update favorite"})
	default:
		c.JSON(http.StatusOK, gin.H{"id": id, "isFavorite": on})
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func observe(recorder metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		recorder.IncRequestsTotal(route, c.Writer.Status())
		recorder.ObserveRequestDuration(route, time.Since(started))
	}
}
