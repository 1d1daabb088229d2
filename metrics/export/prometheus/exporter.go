package prometheus

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates an exporter reading from engine.
func NewPrometheusExporter(engine *goSession.Engine) *PrometheusExporter {
	if engine == nil {
		return &PrometheusExporter{}
	}
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter from anything that reports a
// snapshot and an audit drop count. Tests use it with fakes.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves [PrometheusExporter.Render].
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, p.Render())
	})
}

// Render returns the exposition text, or "" when metrics are disabled and nothing was
// dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var w exposition
	w.Grow(4096)
	for _, def := range internaldefs.CounterDefs {
		w.counter(def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		w.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID])))
	}
	w.counter("gosession_audit_dropped_total", "Audit events dropped because the dispatcher buffer was full.", dropped)
	return w.String()
}

// exposition accumulates families in text format.
type exposition struct {
	strings.Builder
}

func (w *exposition) header(name, help, typ string) {
	w.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.WriteString("# TYPE " + name + " " + typ + "\n")
}

func (w *exposition) sample(name, labels string, v uint64) {
	w.WriteString(name)
	w.WriteString(labels)
	w.WriteByte(' ')
	w.WriteString(strconv.FormatUint(v, 10))
	w.WriteByte('\n')
}

func (w *exposition) counter(name, help string, v uint64) {
	w.header(name, help, "counter")
	w.sample(name, "", v)
}

func (w *exposition) histogram(name, help string, cumulative [8]uint64) {
	w.header(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", `{le="`+le+`"}`, cumulative[i])
	}
	w.sample(name+"_count", "", cumulative[len(cumulative)-1])
	// snapshots carry no sum
	w.sample(name+"_sum", "", 0)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
