package analyzer

import (
	"testing"

	"qr-analyze-service/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		signals  models.Signals
		expected models.Label
	}{
		{
			name:     "invalid ssl is dangerous regardless of other signals",
			signals:  models.Signals{SSLValid: false, WhoisCreationDate: "2005-03-14 00:00:00", ReputationScore: "0 malicious / 0 suspicious / 70 harmless / 0 undetected"},
			expected: models.LabelDangerous,
		},
		{
			name:     "invalid ssl with no other signals",
			signals:  models.Signals{SSLValid: false},
			expected: models.LabelDangerous,
		},
		{
			name:     "recent registration is suspicious",
			signals:  models.Signals{SSLValid: true, WhoisCreationDate: "2024-01-01 00:00:00"},
			expected: models.LabelSuspicious,
		},
		{
			name:     "registration in threshold year is suspicious",
			signals:  models.Signals{SSLValid: true, WhoisCreationDate: "2023-01-01 00:00:00"},
			expected: models.LabelSuspicious,
		},
		{
			name:     "old registration is safe",
			signals:  models.Signals{SSLValid: true, WhoisCreationDate: "1997-09-15 00:00:00"},
			expected: models.LabelSafe,
		},
		{
			name:     "registration just before threshold year is safe",
			signals:  models.Signals{SSLValid: true, WhoisCreationDate: "2022-12-31 23:59:59"},
			expected: models.LabelSafe,
		},
		{
			name:     "absent registration date is suspicious",
			signals:  models.Signals{SSLValid: true},
			expected: models.LabelSuspicious,
		},
		{
			name:     "unparseable registration date is suspicious",
			signals:  models.Signals{SSLValid: true, WhoisCreationDate: "redacted for privacy"},
			expected: models.LabelSuspicious,
		},
		{
			name:     "reputation score does not feed the label",
			signals:  models.Signals{SSLValid: true, WhoisCreationDate: "2001-06-01 00:00:00", ReputationScore: "23 malicious / 4 suspicious / 10 harmless / 30 undetected", PhishtankResult: true},
			expected: models.LabelSafe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.signals); got != tt.expected {
				t.Errorf("Classify() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCreationYear(t *testing.T) {
	tests := []struct {
		name string
		date string
		year int
		ok   bool
	}{
		{name: "canonical layout", date: "2024-01-01 00:00:00", year: 2024, ok: true},
		{name: "bare year prefix", date: "2019-07", year: 2019, ok: true},
		{name: "garbage", date: "unknown", year: 0, ok: false},
		{name: "too short", date: "20", year: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			year, ok := creationYear(tt.date)
			if year != tt.year || ok != tt.ok {
				t.Errorf("creationYear(%q) = (%d, %v), want (%d, %v)", tt.date, year, ok, tt.year, tt.ok)
			}
		})
	}
}
