// Package analyzer holds the decision logic of the service: turning a
// signal bundle into a label, and reconciling the bucket tables as evidence
// for a URL accumulates.
package analyzer

import (
	"strconv"
	"time"

	"qr-analyze-service/models"
)

// Domains registered in or after this year are treated as too young to
// trust on their own.
const recentRegistrationYear = 2023

// Classify maps a signal bundle to a label. Rules apply in priority order,
// first match wins:
//
//  1. invalid or missing TLS -> dangerous
//  2. registration year >= recentRegistrationYear -> suspicious
//  3. registration year < recentRegistrationYear -> safe
//  4. no registration date obtainable -> suspicious
//
// The reputation score is recorded for audit but does not feed the label.
// Collectors have already normalized their failures into absent values, so
// Classify is total.
func Classify(sig models.Signals) models.Label {
	if !sig.SSLValid {
		return models.LabelDangerous
	}

	if sig.HasCreationDate() {
		year, ok := creationYear(sig.WhoisCreationDate)
		if ok {
			if year >= recentRegistrationYear {
				return models.LabelSuspicious
			}
			return models.LabelSafe
		}
	}

	return models.LabelSuspicious
}

// creationYear extracts the registration year from the normalized
// "2006-01-02 15:04:05" timestamp the WHOIS collector produces.
func creationYear(date string) (int, bool) {
	if t, err := time.Parse("2006-01-02 15:04:05", date); err == nil {
		return t.Year(), true
	}
	if len(date) >= 4 {
		if year, err := strconv.Atoi(date[:4]); err == nil {
			return year, true
		}
	}
	return 0, false
}
