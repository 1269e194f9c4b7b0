package marker

import (
	"testing"
	"time"
)

func TestBackoffFor(t *testing.T) {
	base := time.Second
	maxDelay := 30 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s would exceed maxDelay, capped
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := BackoffFor(base, tt.attempt, maxDelay); got != tt.want {
			t.Errorf("BackoffFor(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestFeaturePointsLineMatchesCompilerOutput(t *testing.T) {
	tests := []struct {
		line  string
		match bool
		value string
	}{
		{"FEATURE_POINTS=128", true, "128"},
		{"feature_points=42", true, "42"},
		{"FEATURE_POINTS=0", true, "0"},
		{"FEATURE_POINTS= 10", false, ""},
		{"compiling...", false, ""},
		{"FEATURE_POINTS=abc", false, ""},
	}
	for _, tt := range tests {
		m := featurePointsLine.FindStringSubmatch(tt.line)
		if tt.match && m == nil {
			t.Errorf("expected %q to match", tt.line)
			continue
		}
		if !tt.match && m != nil {
			t.Errorf("expected %q not to match", tt.line)
			continue
		}
		if tt.match && m[1] != tt.value {
			t.Errorf("%q captured %q, want %q", tt.line, m[1], tt.value)
		}
	}
}
