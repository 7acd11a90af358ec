package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/LynnColeArt/confecalc"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name        string
		statuses    []string
		allowSlower bool
		want        int
	}{
		{"empty", nil, false, 0},
		{"all pass", []string{confecalc.ComparePass, confecalc.CompareFaster}, false, 0},
		{"failed", []string{confecalc.ComparePass, confecalc.CompareFail}, true, 1},
		{"missing", []string{confecalc.CompareMissing}, true, 1},
		{"slower", []string{confecalc.CompareSlower}, false, 1},
		{"slower allowed", []string{confecalc.CompareSlower, confecalc.ComparePass}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var comparisons []confecalc.RunComparison
			for _, s := range tt.statuses {
				comparisons = append(comparisons, confecalc.RunComparison{Key: s, Status: s})
			}
			assert.Equal(t, tt.want, exitCode(comparisons, tt.allowSlower))
		})
	}
}

func TestPrintSummary(t *testing.T) {
	baseline := []confecalc.RunResult{
		{Name: "sequential", Status: confecalc.RunPass, Precision: 32, Positions: 6, Assignments: 4, PerLaunch: 4 * time.Millisecond},
		{Name: "cooperative", Status: confecalc.RunPass, Precision: 32, Positions: 6, Assignments: 4, PerLaunch: 4 * time.Millisecond},
	}
	current := []confecalc.RunResult{
		{Name: "sequential", Status: confecalc.RunPass, Precision: 32, Positions: 6, Assignments: 4, PerLaunch: 8 * time.Millisecond},
	}

	var sb strings.Builder
	comparisons := confecalc.CompareRuns(baseline, current, 1.1)
	printSummary(&sb, comparisons)
	out := sb.String()

	assert.Contains(t, out, "Total variants: 2")
	assert.Contains(t, out, "SLOWER:  1")
	assert.Contains(t, out, "MISSING: 1")
	assert.Contains(t, out, "sequential/fp32/6pos")
	assert.Contains(t, out, "2.00x slower")
	assert.Equal(t, 1, exitCode(comparisons, true))
}
