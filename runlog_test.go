package confecalc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLogRecordsAndFlushes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	l, err := OpenRunLog(dir, "assemble")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(l.Path()), "assemble_"))

	// the session file exists before anything is recorded
	empty, err := ReadRunLog(l.Path())
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, l.Record(RunResult{
		Name:        "sequential",
		Status:      RunPass,
		Precision:   32,
		Positions:   6,
		Assignments: 4,
		PerLaunch:   400 * time.Microsecond,
	}))
	require.NoError(t, l.Fail(RunResult{Name: "cooperative", Precision: 32}, errors.New("launch failed")))

	got, err := ReadRunLog(l.Path())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sequential", got[0].Name)
	assert.Equal(t, 100*time.Microsecond, got[0].PerAssignment())
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, VersionString(), got[0].Version)
	assert.NotEmpty(t, got[0].Version)
	assert.Equal(t, RunFail, got[1].Status)
	assert.Equal(t, "launch failed", got[1].Error)
	assert.Equal(t, len(got), len(l.Results()))

	latest, err := LatestRunLog(dir)
	require.NoError(t, err)
	assert.Equal(t, l.Path(), latest)
}

func TestRunLogErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LatestRunLog(dir)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = ReadRunLog(bad)
	require.Error(t, err)
	assert.True(t, IsFormatError(err))

	_, err = ReadRunLog(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteSummary(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteSummary(&sb, []RunResult{
		{Name: "sequential", Status: RunPass, Precision: 64, Positions: 3, Assignments: 2, PerLaunch: time.Millisecond},
		{Name: "cooperative", Status: RunFail, Error: "mismatch"},
	}))
	out := sb.String()
	assert.Contains(t, out, "PASS sequential")
	assert.Contains(t, out, "500µs/assignment")
	assert.Contains(t, out, "FAIL cooperative")
	assert.Contains(t, out, "Total: 2 | Passed: 1 | Failed: 1")

	assert.Zero(t, RunResult{}.PerAssignment())
}

func TestCompareRuns(t *testing.T) {
	run := func(name string, perLaunch time.Duration) RunResult {
		return RunResult{Name: name, Status: RunPass, Precision: 32, Positions: 8, Assignments: 10, PerLaunch: perLaunch}
	}
	baseline := []RunResult{
		run("steady", 10*time.Millisecond),
		run("regressed", 10*time.Millisecond),
		run("improved", 10*time.Millisecond),
		run("broken", 10*time.Millisecond),
		run("gone", 10*time.Millisecond),
	}
	broken := run("broken", 0)
	broken.Status = RunFail
	broken.Error = "mismatch"
	current := []RunResult{
		run("steady", 10500*time.Microsecond),
		run("regressed", 20*time.Millisecond),
		run("improved", 5*time.Millisecond),
		broken,
		run("unrelated", time.Millisecond),
	}

	got := CompareRuns(baseline, current, 1.1)
	require.Len(t, got, len(baseline))

	want := []string{ComparePass, CompareSlower, CompareFaster, CompareFail, CompareMissing}
	for i, c := range got {
		assert.Equal(t, want[i], c.Status, c.Key)
	}
	assert.Equal(t, "regressed/fp32/8pos", got[1].Key)
	assert.Equal(t, "2.00x slower", got[1].Message)
	assert.InDelta(t, 2.0, got[2].Speedup, 1e-9)
	assert.Equal(t, time.Millisecond, got[0].Baseline)
	assert.Equal(t, "mismatch", got[3].Message)
}
