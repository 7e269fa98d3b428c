package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"qr-analyze-service/analyzer"
	"qr-analyze-service/metrics"
	"qr-analyze-service/models"
	"qr-analyze-service/qrdecode"
)

// SignalCollector gathers the evidence bundle for a URL.
type SignalCollector interface {
	Collect(ctx context.Context, originalURL string) models.Signals
}

// ScanEngine reconciles the record store after classification and handles
// user reports.
type ScanEngine interface {
	Apply(ctx context.Context, originalURL string, label models.Label, sig models.Signals) (*models.ScanOutcome, error)
	Report(ctx context.Context, originalURL string) (int, error)
	Warnings(ctx context.Context) ([]models.WarningRecord, error)
}

// Handlers handles HTTP requests for the QR analysis service
type Handlers struct {
	engine    ScanEngine
	collector SignalCollector
	decoder   qrdecode.Decoder
}

// NewHandlers creates a new handlers instance
func NewHandlers(engine ScanEngine, collector SignalCollector, decoder qrdecode.Decoder) *Handlers {
	return &Handlers{
		engine:    engine,
		collector: collector,
		decoder:   decoder,
	}
}

// DecodeQR accepts a QR image (multipart "file") or a JSON body with a URL,
// runs one classification-and-escalation cycle and returns the verdict.
func (h *Handlers) DecodeQR(c *gin.Context) {
	started := time.Now()

	targetURL, ok := h.extractURL(c)
	if !ok {
		return
	}

	log.Infof("Analyzing url %s", targetURL)

	sig := h.collector.Collect(c.Request.Context(), targetURL)
	label := analyzer.Classify(sig)

	outcome, err := h.engine.Apply(c.Request.Context(), targetURL, label, sig)
	if err != nil {
		log.Errorf("Failed to apply scan for %s: %v", targetURL, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to record scan"})
		return
	}

	metrics.ScansTotal.WithLabelValues(string(label)).Inc()
	metrics.ScanDurationSeconds.Observe(time.Since(started).Seconds())

	c.JSON(http.StatusOK, outcome)
}

// extractURL pulls the scan target out of the request: the decoded QR text
// when an image was uploaded, the "url" field otherwise. Writes the 400
// response itself when the input is unusable.
func (h *Handlers) extractURL(c *gin.Context) (string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err == nil {
		defer file.Close()

		if header.Filename == "" {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "file missing"})
			return "", false
		}

		data, err := io.ReadAll(file)
		if err != nil {
			log.Errorf("Failed to read uploaded file %s: %v", header.Filename, err)
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read file"})
			return "", false
		}

		text, err := h.decoder.Decode(data)
		if err != nil {
			if !errors.Is(err, qrdecode.ErrNoCode) {
				log.Warnf("Undecodable upload %s: %v", header.Filename, err)
			}
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to decode qr code"})
			return "", false
		}
		return text, true
	}

	var req models.DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "url missing"})
		return "", false
	}
	return req.URL, true
}

// ReportQR registers a user report against a suspected URL.
func (h *Handlers) ReportQR(c *gin.Context) {
	var req models.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "url missing"})
		return
	}

	count, err := h.engine.Report(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, models.ErrNotReportable) {
			metrics.ReportsIntakeTotal.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "url is not currently suspected"})
			return
		}
		log.Errorf("Failed to record report for %s: %v", req.URL, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to record report"})
		return
	}

	metrics.ReportsIntakeTotal.WithLabelValues("accepted").Inc()
	c.JSON(http.StatusOK, models.ReportResponse{
		Status:       "report recorded",
		CurrentCount: count,
	})
}

// GetWarnings returns every record in the warning bucket for the dashboard.
func (h *Handlers) GetWarnings(c *gin.Context) {
	warnings, err := h.engine.Warnings(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to fetch warning records: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to fetch warning records"})
		return
	}

	c.JSON(http.StatusOK, warnings)
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.MessageResponse{
		Message: "QR analysis service is healthy",
	})
}

// RootHealthCheck returns the service health status (root level)
func (h *Handlers) RootHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "qr-analyze-service",
		"version": "1.0.0",
	})
}
