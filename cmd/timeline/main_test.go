package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "testdata/pluie_920260.json"

func runCLI(t *testing.T, opts options) (int, string, string) {
	t.Helper()
	if opts.timezone == "" {
		opts.timezone = "Europe/Paris"
	}
	if opts.level == "" {
		opts.level = "moderate"
	}
	var stdout, stderr bytes.Buffer
	code := run(opts, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func segmentLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, " min  ") {
			lines = append(lines, l)
		}
	}
	return lines
}

func TestRun_DefaultReference(t *testing.T) {
	code, out, errOut := runCLI(t, options{forecastPath: fixture})
	require.Equal(t, 0, code, errOut)

	assert.Contains(t, out, "Forecast window: 2019-06-12 18:45 CEST, 12 slots of 5.0 min")
	assert.Len(t, segmentLines(out), 12)
	assert.Contains(t, out, "Alert: moderate rain at 18:45 (in 0 min)")
}

func TestRun_LaterReference(t *testing.T) {
	code, out, errOut := runCLI(t, options{forecastPath: fixture, at: "2019-06-12T18:50:00+02:00", level: "heavy"})
	require.Equal(t, 0, code, errOut)

	lines := segmentLines(out)
	// First slot has passed; an unknown filler closes the hour.
	require.Len(t, lines, 12)
	assert.Contains(t, lines[len(lines)-1], "unknown")
	assert.Contains(t, out, "Alert: heavy rain at 18:55 (in 5 min)")
}

func TestRun_NoAlert(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dry.json")
	body := `{"echeance":"201906121845","isAvailable":true,"dataCadran":[{"niveauPluie":1},{"niveauPluie":1}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	code, out, _ := runCLI(t, options{forecastPath: path})
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No rain at or above moderate expected.")
	assert.Len(t, segmentLines(out), 2)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	unavailable := filepath.Join(dir, "unavailable.json")
	require.NoError(t, os.WriteFile(unavailable, []byte(`{"isAvailable":false}`), 0o600))

	tests := []struct {
		name string
		opts options
		want string
	}{
		{"missing file", options{forecastPath: filepath.Join(dir, "nope.json")}, "read forecast"},
		{"unavailable forecast", options{forecastPath: unavailable}, "decode forecast"},
		{"bad level", options{forecastPath: fixture, level: "drizzle"}, "invalid -level"},
		{"bad reference", options{forecastPath: fixture, at: "tomorrow"}, "invalid -at"},
		{"bad timezone", options{forecastPath: fixture, timezone: "Nowhere/Land"}, "invalid -tz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.opts)
			assert.Equal(t, 1, code)
			assert.Contains(t, errOut, tt.want)
		})
	}
}
