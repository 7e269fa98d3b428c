package signals

import (
	"context"
	"net/url"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"qr-analyze-service/models"
)

// Collector runs all signal lookups for one URL concurrently. Each lookup
// carries its own timeout; a failed lookup leaves its signal at the
// absent/unknown value and never fails the collection.
type Collector struct {
	whois      *WhoisCollector
	reach      *ReachabilityCollector
	reputation *VirusTotalClient
	timeout    time.Duration
}

// NewCollector creates a new signal collector instance
func NewCollector(whois *WhoisCollector, reach *ReachabilityCollector, reputation *VirusTotalClient, timeout time.Duration) *Collector {
	return &Collector{
		whois:      whois,
		reach:      reach,
		reputation: reputation,
		timeout:    timeout,
	}
}

// Collect gathers the signal bundle for a URL. It always returns a usable
// bundle; degraded lookups show up as absent values.
func (c *Collector) Collect(ctx context.Context, originalURL string) models.Signals {
	sig := models.Signals{
		Domain: ExtractDomain(originalURL),
	}

	var malicious int
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sig.WhoisCreationDate = c.whois.CreationDate(gctx, sig.Domain)
		return nil
	})

	g.Go(func() error {
		rctx, cancel := context.WithTimeout(gctx, c.timeout)
		defer cancel()

		finalURL, sslValid, err := c.reach.Check(rctx, originalURL)
		if err != nil {
			log.Warnf("Reachability check failed for %s: %v", originalURL, err)
			return nil
		}
		sig.FinalURL = finalURL
		sig.SSLValid = sslValid
		return nil
	})

	g.Go(func() error {
		vctx, cancel := context.WithTimeout(gctx, c.timeout)
		defer cancel()

		sig.ReputationScore, malicious = c.reputation.Lookup(vctx, originalURL)
		return nil
	})

	// Collectors swallow their own failures, so Wait cannot error.
	g.Wait()

	sig.PhishtankResult = malicious > 0
	return sig
}

// ExtractDomain pulls the host out of a URL, falling back to the path for
// schemeless input such as bare domains embedded in QR codes.
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.Host != "" {
		return parsed.Hostname()
	}
	return parsed.Path
}
