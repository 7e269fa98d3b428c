package signals

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"qr-analyze-service/metrics"
)

// VirusTotalClient handles communication with the VirusTotal v3 API. The
// result is kept as an opaque summary string: it is recorded for audit and
// never feeds the label.
type VirusTotalClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// vtResponse is the subset of the VirusTotal URL object we read.
type vtResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Harmless   int `json:"harmless"`
				Undetected int `json:"undetected"`
			} `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// NewVirusTotalClient creates a new VirusTotal client instance
func NewVirusTotalClient(apiKey, baseURL string, timeout time.Duration) *VirusTotalClient {
	return &VirusTotalClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Lookup fetches the URL's last analysis stats and returns a one-line
// summary plus the malicious engine count. Failures come back as marker
// strings, never as errors: reputation is an audit signal only.
func (c *VirusTotalClient) Lookup(ctx context.Context, rawURL string) (string, int) {
	if c.apiKey == "" {
		return "API key not set", 0
	}

	// VirusTotal addresses URLs by their unpadded urlsafe-base64 form.
	urlID := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(rawURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v3/urls/%s", c.baseURL, urlID), nil)
	if err != nil {
		metrics.SignalFailuresTotal.WithLabelValues("reputation").Inc()
		return fmt.Sprintf("error: %v", err), 0
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.SignalFailuresTotal.WithLabelValues("reputation").Inc()
		return fmt.Sprintf("error: %v", err), 0
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result vtResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			metrics.SignalFailuresTotal.WithLabelValues("reputation").Inc()
			return fmt.Sprintf("error: %v", err), 0
		}
		stats := result.Data.Attributes.LastAnalysisStats
		summary := fmt.Sprintf("%d malicious / %d suspicious / %d harmless / %d undetected",
			stats.Malicious, stats.Suspicious, stats.Harmless, stats.Undetected)
		return summary, stats.Malicious
	case http.StatusNotFound:
		return "URL not found in VT", 0
	default:
		metrics.SignalFailuresTotal.WithLabelValues("reputation").Inc()
		return fmt.Sprintf("error: %d", resp.StatusCode), 0
	}
}
