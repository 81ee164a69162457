package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	deepblue "github.com/Grara/deepblue-backend"
	"github.com/Grara/deepblue-backend/metrics/export/series"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

// Source supplies counter snapshots. *deepblue.Engine satisfies it.
type Source interface {
	MetricsSnapshot() deepblue.MetricsSnapshot
}

// Exporter writes engine counters in Prometheus text exposition format.
type Exporter struct {
	source Source
}

// NewExporter returns an Exporter reading from source.
func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler streams one snapshot per scrape.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = p.WriteTo(w)
	})
}

// Render is WriteTo into a string.
func (p *Exporter) Render() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}

// WriteTo writes a single snapshot to w. A disabled engine writes nothing;
// the latency histogram appears only while latency recording is on.
func (p *Exporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}
	snap := p.source.MetricsSnapshot()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 {
		return 0, nil
	}

	cw := &countingWriter{w: bufio.NewWriter(w)}
	for _, c := range series.Counters {
		cw.family(c.Name(), c.Help, "counter")
		cw.printf("%s %d\n", c.Name(), snap.Counters[c.ID])
	}

	if raw, ok := snap.Histograms[series.Latency.ID]; ok {
		name := series.Latency.Name
		cw.family(name, series.Latency.Help, "histogram")
		buckets := series.Cumulative(raw)
		for i, n := range buckets {
			cw.printf("%s_bucket{le=%q} %d\n", name, series.Le(i), n)
		}
		// Only bucket counts are kept, so no _sum series is written.
		cw.printf("%s_count %d\n", name, buckets[len(buckets)-1])
	}

	if cw.err == nil {
		cw.err = cw.w.Flush()
	}
	return cw.n, cw.err
}

// countingWriter keeps the first write error and skips everything after it.
type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	n, err := fmt.Fprintf(c.w, format, args...)
	c.n += int64(n)
	c.err = err
}

func (c *countingWriter) family(name, help, kind string) {
	c.printf("# HELP %s %s\n# TYPE %s %s\n", name, helpEscaper.Replace(help), name, kind)
}
