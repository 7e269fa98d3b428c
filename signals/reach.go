package signals

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"qr-analyze-service/metrics"
)

// ReachabilityCollector fetches a URL, following redirects, and reports
// where it landed and whether the final hop was served over TLS.
type ReachabilityCollector struct {
	httpClient *http.Client
}

// NewReachabilityCollector creates a new reachability collector instance
func NewReachabilityCollector(timeout time.Duration) *ReachabilityCollector {
	return &ReachabilityCollector{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Check follows the URL's redirect chain and returns the final URL and
// whether it is HTTPS. An unreachable URL returns an error; callers degrade
// that to ssl_valid=false with no final URL.
func (r *ReachabilityCollector) Check(ctx context.Context, rawURL string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		metrics.SignalFailuresTotal.WithLabelValues("reachability").Inc()
		return "", false, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		metrics.SignalFailuresTotal.WithLabelValues("reachability").Inc()
		return "", false, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	return finalURL, strings.HasPrefix(finalURL, "https://"), nil
}
