package confecalc

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const benchStream = `{"Time":"2026-01-02T10:00:00Z","Action":"start","Package":"github.com/LynnColeArt/confecalc/assignment"}
{"Time":"2026-01-02T10:00:01Z","Action":"output","Package":"github.com/LynnColeArt/confecalc/assignment","Test":"BenchmarkNew","Output":"BenchmarkNew-8   \t   52311\t     22871 ns/op\t   12544 B/op\t       4 allocs/op\n"}
not json at all
{"Time":"2026-01-02T10:00:02Z","Action":"output","Package":"github.com/LynnColeArt/confecalc/assignment","Test":"BenchmarkNewShared/fp64","Output":"BenchmarkNewShared/fp64-16 \t    8000\t    150000.5 ns/op\n"}
{"Time":"2026-01-02T10:00:03Z","Action":"output","Package":"github.com/LynnColeArt/confecalc/assignment","Output":"PASS\n"}
{"Time":"2026-01-02T10:00:04Z","Action":"fail","Package":"github.com/LynnColeArt/confecalc/assignment","Test":"BenchmarkNewInto"}
{"Time":"2026-01-02T10:00:05Z","Action":"fail","Package":"github.com/LynnColeArt/confecalc/assignment","Test":"TestClose"}
`

func TestParseBenchmarkEvents(t *testing.T) {
	results, err := ParseBenchmarkEvents(strings.NewReader(benchStream))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "BenchmarkNew", results[0].Name)
	assert.Equal(t, RunPass, results[0].Status)
	assert.Equal(t, 22871*time.Nanosecond, results[0].PerAssignment())
	assert.Equal(t, time.Date(2026, 1, 2, 10, 0, 1, 0, time.UTC), results[0].Timestamp)

	assert.Equal(t, "BenchmarkNewShared/fp64", results[1].Name)
	assert.Equal(t, 150000*time.Nanosecond, results[1].PerLaunch)

	assert.Equal(t, "BenchmarkNewInto", results[2].Name)
	assert.Equal(t, RunFail, results[2].Status)
}

func TestParseBenchmarkLine(t *testing.T) {
	_, ok := parseBenchmarkLine("ok  \tgithub.com/LynnColeArt/confecalc\t1.2s\n")
	assert.False(t, ok)

	_, ok = parseBenchmarkLine("BenchmarkNew-8 100 fast ns/op\n")
	assert.False(t, ok)

	res, ok := parseBenchmarkLine("BenchmarkSize-large 10 5 ns/op\n")
	require.True(t, ok)
	assert.Equal(t, "BenchmarkSize-large", res.Name)
}
