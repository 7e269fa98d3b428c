package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"qr-analyze-service/metrics"
	"qr-analyze-service/models"
)

// Escalation thresholds. Both are first-crossing, inclusive, and
// independent of each other: three suspicious scans or three user reports
// each move a URL from suspected to warning on their own.
const (
	suspectedScanThreshold = 3
	reportThreshold        = 3
)

// Store is the record store the engine mutates. All bucket changes go
// through these operations; the engine never touches rows directly.
type Store interface {
	UpsertReport(ctx context.Context, rec *models.UrlRecord) (int, error)
	UpsertSuspected(ctx context.Context, rec *models.UrlRecord) (int, error)
	InsertWarningIfAbsent(ctx context.Context, rec *models.UrlRecord) error
	HasWarning(ctx context.Context, originalURL string) (bool, error)
	MoveSuspectedToWarning(ctx context.Context, originalURL string) error
	IncrementReported(ctx context.Context, originalURL string) (int, error)
	GetWarnings(ctx context.Context) ([]models.UrlRecord, error)
}

// EventPublisher receives escalation events for downstream consumers. The
// RabbitMQ publisher satisfies this; a nil publisher disables publishing.
type EventPublisher interface {
	Publish(message interface{}) error
}

// EscalationEvent is published whenever a URL lands in the warning bucket.
type EscalationEvent struct {
	OriginalURL string       `json:"original_url"`
	Domain      string       `json:"domain"`
	Label       models.Label `json:"label"`
	Trigger     string       `json:"trigger"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// Engine applies classification results to the record store and handles
// user reports against suspected URLs.
type Engine struct {
	store  Store
	events EventPublisher
}

// NewEngine creates a new escalation engine instance
func NewEngine(store Store, events EventPublisher) *Engine {
	return &Engine{store: store, events: events}
}

// Apply records a fresh classification for a URL and reconciles the
// buckets: every scan upserts reports, a suspicious scan additionally
// upserts suspected (moving to warning at the scan threshold), and a
// dangerous scan goes to warning directly. A URL already in warning is
// terminally escalated: suspicious rescans only touch reports and never
// reopen the suspected bucket.
func (e *Engine) Apply(ctx context.Context, originalURL string, label models.Label, sig models.Signals) (*models.ScanOutcome, error) {
	scanID := uuid.New().String()

	rec := &models.UrlRecord{
		OriginalURL:       originalURL,
		FinalURL:          sig.FinalURL,
		Domain:            sig.Domain,
		SSLValid:          sig.SSLValid,
		WhoisCreationDate: sig.WhoisCreationDate,
		ReputationScore:   sig.ReputationScore,
		PhishtankResult:   sig.PhishtankResult,
		Label:             label,
		RawAnalysis:       rawSnapshot(scanID, originalURL, label, sig),
	}

	count, err := e.store.UpsertReport(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert reports row: %w", err)
	}
	log.Infof("Recorded scan %s of %s (label=%s, occurrence=%d)", scanID, originalURL, label, count)

	switch label {
	case models.LabelSuspicious:
		escalated, err := e.store.HasWarning(ctx, originalURL)
		if err != nil {
			return nil, fmt.Errorf("failed to check warning bucket: %w", err)
		}
		if escalated {
			break
		}
		suspectedCount, err := e.store.UpsertSuspected(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert suspected row: %w", err)
		}
		if suspectedCount >= suspectedScanThreshold {
			if err := e.store.MoveSuspectedToWarning(ctx, originalURL); err != nil {
				return nil, fmt.Errorf("failed to escalate suspected url: %w", err)
			}
			metrics.EscalationsTotal.WithLabelValues("scans").Inc()
			e.publishEscalation(rec, "scans")
		}
	case models.LabelDangerous:
		if err := e.store.InsertWarningIfAbsent(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to insert warning row: %w", err)
		}
		metrics.EscalationsTotal.WithLabelValues("dangerous").Inc()
		e.publishEscalation(rec, "dangerous")
	}

	return &models.ScanOutcome{
		ScanID:            scanID,
		OriginalURL:       originalURL,
		FinalURL:          sig.FinalURL,
		Domain:            sig.Domain,
		SSLValid:          sig.SSLValid,
		WhoisCreationDate: sig.WhoisCreationDate,
		ReputationScore:   sig.ReputationScore,
		PhishtankResult:   sig.PhishtankResult,
		Label:             label,
	}, nil
}

// Report registers a user report against a suspected URL and returns the
// post-increment counter, even when the report triggered the move to
// warning. Reporting a URL without a suspected row returns
// models.ErrNotReportable.
func (e *Engine) Report(ctx context.Context, originalURL string) (int, error) {
	reported, err := e.store.IncrementReported(ctx, originalURL)
	if err != nil {
		return 0, err
	}

	if reported >= reportThreshold {
		if err := e.store.MoveSuspectedToWarning(ctx, originalURL); err != nil {
			return 0, fmt.Errorf("failed to escalate reported url: %w", err)
		}
		metrics.EscalationsTotal.WithLabelValues("reports").Inc()
		e.publishEscalation(&models.UrlRecord{OriginalURL: originalURL, Label: models.LabelSuspicious}, "reports")
	}

	log.Infof("Report against %s recorded (reported=%d)", originalURL, reported)
	return reported, nil
}

// Warnings returns the current contents of the warning bucket.
func (e *Engine) Warnings(ctx context.Context) ([]models.WarningRecord, error) {
	records, err := e.store.GetWarnings(ctx)
	if err != nil {
		return nil, err
	}

	warnings := make([]models.WarningRecord, 0, len(records))
	for _, rec := range records {
		warnings = append(warnings, models.WarningRecord{
			OriginalURL:       rec.OriginalURL,
			FinalURL:          rec.FinalURL,
			Domain:            rec.Domain,
			SSLValid:          rec.SSLValid,
			WhoisCreationDate: rec.WhoisCreationDate,
			ReputationScore:   rec.ReputationScore,
			PhishtankResult:   rec.PhishtankResult,
			Label:             rec.Label,
		})
	}
	return warnings, nil
}

func (e *Engine) publishEscalation(rec *models.UrlRecord, trigger string) {
	if e.events == nil {
		return
	}
	event := EscalationEvent{
		OriginalURL: rec.OriginalURL,
		Domain:      rec.Domain,
		Label:       rec.Label,
		Trigger:     trigger,
		OccurredAt:  time.Now().UTC(),
	}
	if err := e.events.Publish(event); err != nil {
		log.Warnf("Failed to publish escalation event for %s: %v", rec.OriginalURL, err)
	}
}

// rawSnapshot serializes the full signal bundle next to the derived label
// so any stored verdict can be reproduced from what was observed.
func rawSnapshot(scanID, originalURL string, label models.Label, sig models.Signals) string {
	snapshot := struct {
		ScanID      string         `json:"scan_id"`
		OriginalURL string         `json:"original_url"`
		Label       models.Label   `json:"label"`
		Signals     models.Signals `json:"signals"`
		AnalyzedAt  time.Time      `json:"analyzed_at"`
	}{
		ScanID:      scanID,
		OriginalURL: originalURL,
		Label:       label,
		Signals:     sig,
		AnalyzedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Warnf("Failed to serialize analysis snapshot for %s: %v", originalURL, err)
		return ""
	}
	return string(data)
}
