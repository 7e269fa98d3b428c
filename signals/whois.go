// Package signals gathers the external evidence a scan is classified on.
// Every collector is fallible on its own: a failed or timed-out lookup
// degrades to the absent/unknown value instead of failing the scan.
package signals

import (
	"context"
	"strings"
	"time"

	whois "github.com/likexian/whois"
	parser "github.com/likexian/whois-parser"

	"qr-analyze-service/metrics"
)

// Accepted registrar timestamp layouts. Registries are wildly inconsistent.
var whoisLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

// WhoisCollector looks up a domain's registration date.
type WhoisCollector struct {
	timeout time.Duration
}

// NewWhoisCollector creates a new WHOIS collector instance
func NewWhoisCollector(timeout time.Duration) *WhoisCollector {
	return &WhoisCollector{timeout: timeout}
}

// CreationDate returns the domain's registration timestamp normalized to
// "2006-01-02 15:04:05", or "" when the lookup fails, times out, or the
// registry answer has no parseable date.
func (w *WhoisCollector) CreationDate(ctx context.Context, domain string) string {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	type result struct {
		date string
		ok   bool
	}
	ch := make(chan result, 1)

	go func() {
		date, ok := lookupCreationDate(domain)
		ch <- result{date: date, ok: ok}
	}()

	select {
	case <-ctx.Done():
		metrics.SignalFailuresTotal.WithLabelValues("whois").Inc()
		return ""
	case res := <-ch:
		if !res.ok {
			metrics.SignalFailuresTotal.WithLabelValues("whois").Inc()
			return ""
		}
		return res.date
	}
}

func lookupCreationDate(domain string) (string, bool) {
	raw, err := whois.Whois(domain)
	if err != nil {
		return "", false
	}

	p, err := parser.Parse(raw)
	if err != nil || p.Domain == nil {
		// Subdomains have no registration of their own; retry against the
		// registrable parent (a.b.example.com -> b.example.com -> ...).
		parts := strings.Split(domain, ".")
		if len(parts) > 2 {
			return lookupCreationDate(strings.Join(parts[1:], "."))
		}
		return "", false
	}

	created, ok := parseWhoisDate(p.Domain.CreatedDate)
	if !ok {
		return "", false
	}
	return created.Format("2006-01-02 15:04:05"), true
}

func parseWhoisDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range whoisLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
