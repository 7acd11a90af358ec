package confecalc

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"
)

// testEvent is one line of `go test -json` output.
type testEvent struct {
	Time   time.Time `json:"Time"`
	Action string    `json:"Action"`
	Test   string    `json:"Test,omitempty"`
	Output string    `json:"Output,omitempty"`
}

// ParseBenchmarkEvents converts the benchmark lines of a `go test -json
// -bench` stream into run results. Each benchmark becomes a result with
// one assignment per operation; failed benchmarks are recorded as RunFail.
// Lines that are not JSON are skipped.
func ParseBenchmarkEvents(r io.Reader) ([]RunResult, error) {
	var results []RunResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		var ev testEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		switch ev.Action {
		case "output":
			if res, ok := parseBenchmarkLine(ev.Output); ok {
				res.Timestamp = ev.Time
				results = append(results, res)
			}
		case "fail":
			if strings.HasPrefix(ev.Test, "Benchmark") {
				results = append(results, RunResult{
					Name:      ev.Test,
					Status:    RunFail,
					Error:     "benchmark failed",
					Timestamp: ev.Time,
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, NewFormatError("ParseBenchmarkEvents", "reading test events", err)
	}
	return results, nil
}

// parseBenchmarkLine reads a result line such as
//
//	BenchmarkNewShared/fp32-8   	   41234	     28914 ns/op	   0 B/op
//
// dropping the GOMAXPROCS suffix from the name.
func parseBenchmarkLine(line string) (RunResult, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
		return RunResult{}, false
	}

	name := fields[0]
	if i := strings.LastIndexByte(name, '-'); i > 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil {
			name = name[:i]
		}
	}

	for i := 2; i < len(fields); i++ {
		if fields[i] != "ns/op" {
			continue
		}
		ns, err := strconv.ParseFloat(fields[i-1], 64)
		if err != nil {
			return RunResult{}, false
		}
		return RunResult{
			Name:        name,
			Status:      RunPass,
			Assignments: 1,
			PerLaunch:   time.Duration(ns),
		}, true
	}
	return RunResult{}, false
}
