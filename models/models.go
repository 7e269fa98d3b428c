package models

import (
	"errors"
	"time"
)

// Label is the three-way verdict assigned to a scanned URL.
type Label string

const (
	LabelSafe       Label = "safe"
	LabelSuspicious Label = "suspicious"
	LabelDangerous  Label = "dangerous"
)

// ErrNotReportable is returned when a report targets a URL that is not
// currently in the suspected bucket (never flagged, or already escalated).
var ErrNotReportable = errors.New("url is not reportable")

// Signals is the evidence bundle gathered for one URL before classification.
// Collectors normalize their own failures into the zero/absent forms here,
// so classification never has to deal with collector errors.
type Signals struct {
	FinalURL          string `json:"final_url"`
	Domain            string `json:"domain"`
	SSLValid          bool   `json:"ssl_valid"`
	WhoisCreationDate string `json:"whois_creation_date,omitempty"`
	ReputationScore   string `json:"reputation_score"`
	PhishtankResult   bool   `json:"phishtank_result"`
}

// HasCreationDate reports whether the WHOIS lookup produced a usable
// registration timestamp.
func (s Signals) HasCreationDate() bool {
	return s.WhoisCreationDate != ""
}

// UrlRecord is one row in a bucket table. A URL always has a row in reports
// once scanned, and at most one row across suspected/warning.
type UrlRecord struct {
	OriginalURL       string    `json:"original_url"`
	FinalURL          string    `json:"final_url"`
	Domain            string    `json:"domain"`
	SSLValid          bool      `json:"ssl_valid"`
	WhoisCreationDate string    `json:"whois_creation_date,omitempty"`
	ReputationScore   string    `json:"reputation_score"`
	PhishtankResult   bool      `json:"phishtank_result"`
	Label             Label     `json:"label"`
	Count             int       `json:"count"`
	ReportedCount     int       `json:"reported_count"`
	RawAnalysis       string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

// ScanOutcome is what the escalation engine hands back to the transport
// layer after reconciling the buckets. Bucket bookkeeping stays internal.
type ScanOutcome struct {
	ScanID            string `json:"scan_id"`
	OriginalURL       string `json:"original_url"`
	FinalURL          string `json:"final_url"`
	Domain            string `json:"domain"`
	SSLValid          bool   `json:"ssl_valid"`
	WhoisCreationDate string `json:"whois_creation_date,omitempty"`
	ReputationScore   string `json:"reputation_score"`
	PhishtankResult   bool   `json:"phishtank_result"`
	Label             Label  `json:"label"`
}

// DecodeRequest is the JSON body variant of POST /decode_qr.
type DecodeRequest struct {
	URL string `json:"url"`
}

// ReportRequest is the body of POST /report_qr.
type ReportRequest struct {
	URL string `json:"url" binding:"required"`
}

// ReportResponse is returned after a successful report, including the
// post-increment counter so clients can show progress toward escalation.
type ReportResponse struct {
	Status       string `json:"status"`
	CurrentCount int    `json:"current_count"`
}

// WarningRecord is the dashboard view of a warning row, without the
// internal counters.
type WarningRecord struct {
	OriginalURL       string `json:"original_url"`
	FinalURL          string `json:"final_url"`
	Domain            string `json:"domain"`
	SSLValid          bool   `json:"ssl_valid"`
	WhoisCreationDate string `json:"whois_creation_date,omitempty"`
	ReputationScore   string `json:"reputation_score"`
	PhishtankResult   bool   `json:"phishtank_result"`
	Label             Label  `json:"label"`
}

// MessageResponse represents a simple message response
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
