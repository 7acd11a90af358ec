package confecalc

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Run status values recorded in a RunLog.
const (
	RunPass = "pass"
	RunFail = "fail"
)

// RunResult captures one timed launch variant of an assembly run.
type RunResult struct {
	Name        string        `json:"name"`
	Status      string        `json:"status"`
	Precision   int           `json:"precision"`
	Positions   int           `json:"positions"`
	Assignments int           `json:"assignments"`
	Threads     int           `json:"threads,omitempty"`
	SharedBytes int64         `json:"shared_bytes,omitempty"`
	PerLaunch   time.Duration `json:"per_launch,omitempty"`
	Cache       string        `json:"cache,omitempty"`
	Error       string        `json:"error,omitempty"`
	Version     string        `json:"version,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// PerAssignment returns the mean time spent building one assignment.
func (r RunResult) PerAssignment() time.Duration {
	if r.Assignments == 0 {
		return 0
	}
	return r.PerLaunch / time.Duration(r.Assignments)
}

// RunLog appends run results to a JSON session file. Every record is
// flushed immediately so an interrupted session keeps what it measured.
type RunLog struct {
	mu      sync.Mutex
	results []RunResult
	path    string
}

// OpenRunLog starts a new session file named after session in dir.
func OpenRunLog(dir, session string) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run log directory: %w", err)
	}
	stamp := time.Now().Format("20060102_150405.000")
	l := &RunLog{
		path: filepath.Join(dir, fmt.Sprintf("%s_%s.json", session, stamp)),
	}
	if err := l.flush(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the session file.
func (l *RunLog) Path() string { return l.path }

// Record stamps r with the time and library version, unless already
// set, and appends it.
func (l *RunLog) Record(r RunResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	if r.Version == "" {
		r.Version = VersionString()
	}
	l.results = append(l.results, r)
	return l.flush()
}

// Fail records a variant that did not complete.
func (l *RunLog) Fail(r RunResult, err error) error {
	r.Status = RunFail
	r.Error = err.Error()
	return l.Record(r)
}

// Results returns a copy of everything recorded so far.
func (l *RunLog) Results() []RunResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]RunResult(nil), l.results...)
}

func (l *RunLog) flush() error {
	data, err := json.MarshalIndent(l.results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run results: %w", err)
	}
	return os.WriteFile(l.path, data, 0o644)
}

// ReadRunLog loads a session file.
func ReadRunLog(path string) ([]RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var results []RunResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, NewFormatError("ReadRunLog", path, err)
	}
	return results, nil
}

// LatestRunLog returns the most recently modified session file in dir.
func LatestRunLog(dir string) (string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return "", err
	}

	var latest string
	var latestTime time.Time
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest = file
			latestTime = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no run logs in %s", dir)
	}
	return latest, nil
}

// WriteSummary prints one line per result followed by pass and fail totals.
func WriteSummary(w io.Writer, results []RunResult) error {
	rule := strings.Repeat("=", 72)
	if _, err := fmt.Fprintln(w, rule); err != nil {
		return err
	}

	passed, failed := 0, 0
	for _, r := range results {
		var err error
		switch r.Status {
		case RunPass:
			passed++
			_, err = fmt.Fprintf(w, "PASS %-24s fp%-2d %4d pos %12v/launch %10v/assignment\n",
				r.Name, r.Precision, r.Positions, r.PerLaunch, r.PerAssignment())
		default:
			failed++
			_, err = fmt.Fprintf(w, "FAIL %-24s %s\n", r.Name, r.Error)
		}
		if err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s\nTotal: %d | Passed: %d | Failed: %d\n", rule, len(results), passed, failed)
	return err
}

// Comparison status values.
const (
	ComparePass    = "PASS"
	CompareFail    = "FAIL"
	CompareSlower  = "SLOWER"
	CompareFaster  = "FASTER"
	CompareMissing = "MISSING"
)

// RunComparison relates one baseline result to its current counterpart.
type RunComparison struct {
	Key      string
	Status   string
	Baseline time.Duration
	Current  time.Duration
	Speedup  float64
	Message  string
}

// Key identifies a result across sessions.
func (r RunResult) Key() string {
	if r.Cache == "" {
		return fmt.Sprintf("%s/fp%d/%dpos", r.Name, r.Precision, r.Positions)
	}
	return fmt.Sprintf("%s/fp%d/%dpos/%s", r.Name, r.Precision, r.Positions, r.Cache)
}

// CompareRuns matches current results to baseline by Key. A result whose
// per-assignment time grew by more than the regress factor is SLOWER; one
// that failed or vanished is FAIL or MISSING.
func CompareRuns(baseline, current []RunResult, regress float64) []RunComparison {
	byKey := make(map[string]RunResult, len(current))
	for _, r := range current {
		byKey[r.Key()] = r
	}

	out := make([]RunComparison, 0, len(baseline))
	for _, base := range baseline {
		c := RunComparison{Key: base.Key(), Baseline: base.PerAssignment()}
		cur, ok := byKey[c.Key]
		switch {
		case !ok:
			c.Status = CompareMissing
			c.Message = "not present in current session"
		case cur.Status != RunPass:
			c.Status = CompareFail
			c.Message = cur.Error
		default:
			c.Current = cur.PerAssignment()
			if c.Current > 0 {
				c.Speedup = float64(c.Baseline) / float64(c.Current)
			}
			switch {
			case c.Speedup > 0 && c.Speedup < 1/regress:
				c.Status = CompareSlower
				c.Message = fmt.Sprintf("%.2fx slower", 1/c.Speedup)
			case c.Speedup > regress:
				c.Status = CompareFaster
				c.Message = fmt.Sprintf("%.2fx faster", c.Speedup)
			default:
				c.Status = ComparePass
			}
		}
		out = append(out, c)
	}
	return out
}
