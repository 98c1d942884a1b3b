// Command timeline projects a saved Météo-France rain forecast onto the hour
// following a reference instant and prints the segments and the next alert.
//
// Usage:
//
//	go run ./cmd/timeline \
//	  -forecast testdata/pluie_920260.json \
//	  -at 2019-06-12T18:50:00+02:00 \
//	  -level moderate
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/rain-nowcast-service/internal/adapter/meteofrance"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
)

// options are the parsed command-line flags.
type options struct {
	forecastPath string
	at           string
	level        string
	timezone     string
}

func main() {
	var opts options
	flag.StringVar(&opts.forecastPath, "forecast", "", "path to a Météo-France rain forecast JSON payload")
	flag.StringVar(&opts.at, "at", "", "reference instant, RFC3339 (default: the forecast window start)")
	flag.StringVar(&opts.level, "level", "moderate", "alert threshold: none, light, moderate or heavy")
	flag.StringVar(&opts.timezone, "tz", "Europe/Paris", "timezone of the forecast echeance")
	flag.Parse()

	if opts.forecastPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(opts, os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

func run(opts options, stdout, stderr io.Writer) int {
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -tz: %v\n", err)
		return 1
	}
	threshold, err := domain.ParseRainIndex(opts.level)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -level: %v\n", err)
		return 1
	}

	body, err := os.ReadFile(opts.forecastPath)
	if err != nil {
		fmt.Fprintf(stderr, "read forecast: %v\n", err)
		return 1
	}
	forecast, err := meteofrance.DecodeForecast(body, loc, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "decode forecast: %v\n", err)
		return 1
	}

	ref := forecast.WindowStart
	if opts.at != "" {
		ref, err = time.Parse(time.RFC3339, opts.at)
		if err != nil {
			fmt.Fprintf(stderr, "invalid -at: %v\n", err)
			return 1
		}
	}

	// The payload names no location; the record only needs the forecast.
	record := domain.NewRecord(domain.Coordinate{}).
		WithLocation(domain.GeoResult{}).
		WithAreaCode(0).
		WithForecast(forecast)

	printTimeline(stdout, forecast, domain.Project(record, ref), ref, loc)
	printAlert(stdout, record.Alert(threshold, ref), threshold, ref, loc)
	return 0
}

func printTimeline(w io.Writer, f domain.Forecast, segments []domain.TimelineSegment, ref time.Time, loc *time.Location) {
	fmt.Fprintf(w, "Forecast window: %s, %d slots of %.1f min\n",
		f.WindowStart.In(loc).Format("2006-01-02 15:04 MST"), len(f.Levels), f.SegmentMinutes())
	fmt.Fprintf(w, "Reference:       %s\n\n", ref.In(loc).Format("2006-01-02 15:04:05 MST"))

	for _, s := range segments {
		fmt.Fprintf(w, "  %5.1f - %5.1f min  %-8s %s\n", s.From, s.To, s.Level, bar(s))
	}
	fmt.Fprintln(w)
}

func printAlert(w io.Writer, a domain.Alert, threshold domain.RainIndex, ref time.Time, loc *time.Location) {
	if a.Unknown() {
		fmt.Fprintf(w, "No rain at or above %s expected.\n", threshold)
		return
	}
	fmt.Fprintf(w, "Alert: %s rain at %s (in %.0f min)\n", a.Level, a.TriggerAt.In(loc).Format("15:04"), a.MinutesFrom(ref))
}

// bar draws one character per minute, shaded by level.
func bar(s domain.TimelineSegment) string {
	shade := map[domain.RainIndex]string{
		domain.RainUnknown:  "?",
		domain.RainNone:     ".",
		domain.RainLight:    "-",
		domain.RainModerate: "=",
		domain.RainHeavy:    "#",
	}[s.Level]
	n := int(s.To+0.5) - int(s.From+0.5)
	if n < 1 {
		n = 1
	}
	return strings.Repeat(shade, n)
}
