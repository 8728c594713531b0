package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"go-buildbuddy/internal/config"
	apperrors "go-buildbuddy/internal/errors"
	"go-buildbuddy/internal/logger"
	"go-buildbuddy/internal/observer"
	"go-buildbuddy/internal/prompts"
	"go-buildbuddy/internal/service"
	"go-buildbuddy/pkg/models"
)

const (
	// RequestIDHeader carries the request id back to the client
	RequestIDHeader = "X-Request-ID"

	imageField        = "image"
	descriptionField  = "description"
	analysisTypeField = "analysis_type"
	renderField       = "render"
)

const version = "1.0.0"

// NewHandler wires the HTTP routes
func NewHandler(svc service.AnalysisService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestID(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck(svc))
	r.GET("/metrics", metricsHandler(metrics))

	api := r.Group("/api/v1")
	api.GET("/options", options(svc))
	api.POST("/images/inspect", inspectImage(svc))
	api.POST("/analyze", analyze(svc))
	api.POST("/analyze/export", exportAnalysis(svc))

	return r
}

func analyze(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		analysis, ok := runAnalysis(c, svc)
		if !ok {
			return
		}

		resp := models.AnalysisResponse{
			Analysis:       analysis.Result.Text,
			AnalysisType:   string(analysis.AnalysisType),
			ExportFilename: analysis.ExportFilename,
			Fallback:       analysis.Result.Fallback,
			Notice:         analysis.Result.Notice,
			Image:          analysis.Image,
			RequestID:      c.GetString(requestIDKey),
		}

		if c.PostForm(renderField) == "html" {
			html, err := renderMarkdown(analysis.Result.Text)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "failed to render analysis",
					apperrors.NewInternalError("failed to render analysis", err))
				return
			}
			resp.HTML = html
		}

		c.JSON(http.StatusOK, resp)
	}
}

func exportAnalysis(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		analysis, ok := runAnalysis(c, svc)
		if !ok {
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", analysis.ExportFilename))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(analysis.Result.Text))
	}
}

// runAnalysis parses the form, runs the service and writes any error
// response itself. ok is false when the response has been written. The model
// call is bounded only by the client connection; a failed call still yields
// the fallback answer.
func runAnalysis(c *gin.Context, svc service.AnalysisService) (*service.Analysis, bool) {
	startTime := time.Now()
	ctx := c.Request.Context()

	log := logger.G(ctx).WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	})
	log.Info("Processing hardware analysis request")

	if err := svc.Ready(); err != nil {
		respondAppError(c, "analysis unavailable", err)
		return nil, false
	}

	upload, err := readUpload(c)
	if err != nil {
		respondAppError(c, "invalid upload", err)
		return nil, false
	}

	analysisType, err := prompts.ParseAnalysisType(c.PostForm(analysisTypeField))
	if err != nil {
		respondAppError(c, "invalid analysis type", apperrors.NewValidationError(err.Error(), err))
		return nil, false
	}

	analysis, err := svc.Analyze(ctx, service.Submission{
		Image:        upload,
		Description:  c.PostForm(descriptionField),
		AnalysisType: analysisType,
	})
	if err != nil {
		respondAppError(c, "analysis failed", err)
		return nil, false
	}

	log.WithFields(logrus.Fields{
		"analysis_type":      analysis.AnalysisType,
		"has_image":          upload != nil,
		"fallback":           analysis.Result.Fallback,
		"error_kind":         analysis.Result.ErrorKind,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Info("Hardware analysis request completed")

	return analysis, true
}

func inspectImage(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		upload, err := readUpload(c)
		if err != nil {
			respondAppError(c, "invalid upload", err)
			return
		}
		if upload == nil {
			respondAppError(c, "invalid upload", apperrors.NewValidationError("No file uploaded", nil))
			return
		}

		info, err := svc.Inspect(c.Request.Context(), upload)
		if err != nil {
			respondAppError(c, "image inspection failed", err)
			return
		}

		c.JSON(http.StatusOK, info)
	}
}

func options(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Options())
	}
}

func metricsHandler(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusOK, observer.Metrics{})
			return
		}
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

func healthCheck(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "available"
		if svc.Ready() != nil {
			status = "unconfigured"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"version": version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readUpload returns nil without error when the request carries no image
func readUpload(c *gin.Context) (*models.UploadedImage, error) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, uploadError(err, "Invalid multipart form")
	}

	data, err := readFile(fh)
	if err != nil {
		return nil, uploadError(err, "Could not read uploaded file")
	}

	return &models.UploadedImage{
		Filename: fh.Filename,
		Data:     data,
		Size:     fh.Size,
	}, nil
}

// uploadError classifies a failed read of the request body
func uploadError(err error, message string) error {
	var tooLarge *http.MaxBytesError
	var netErr net.Error
	switch {
	case errors.As(err, &tooLarge):
		return apperrors.NewValidationError(
			fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return apperrors.NewTimeoutError("Timed out reading the upload", err)
	default:
		return apperrors.NewValidationError(message, err)
	}
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func renderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Middleware and helper functions
const requestIDKey = "request_id"

// statusClientClosedRequest is logged when the client went away before the
// response was ready
const statusClientClosedRequest = 499

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		entry := logger.WithField(requestIDKey, id)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), entry))
		c.Next()
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondAppError(c *gin.Context, message string, err error) {
	respondError(c, determineStatusCode(err), message, err)
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.G(c.Request.Context()).WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	text := http.StatusText(code)
	if code == statusClientClosedRequest {
		text = "Client Closed Request"
	}
	resp := models.ErrorResponse{
		Error:   text,
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	if appErr, ok := apperrors.As(err); ok {
		resp.Type = string(appErr.Type)
		resp.Message = appErr.Message
		resp.Details = appErr.Details
	}

	c.AbortWithStatusJSON(code, resp)
}
