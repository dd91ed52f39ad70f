// Package metrics exposes prometheus collectors for the ingestion
// client and the batch pipeline.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "earnrev"

var (
	// IngestRequests counts provider HTTP requests by endpoint and
	// outcome ("ok", "http_error", "transport_error", "breaker_open").
	IngestRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "requests_total",
		Help:      "Market-data provider requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// IngestRows counts rows returned by the provider per endpoint.
	IngestRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "rows_total",
		Help:      "Rows ingested from the provider by endpoint.",
	}, []string{"endpoint"})

	// Classifications counts signal outcomes per classification.
	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "classifications_total",
		Help:      "Signal classifications by outcome.",
	}, []string{"classification"})

	// CalendarDegradations counts calendar queries served by the
	// weekday approximation instead of the oracle.
	CalendarDegradations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "calendar",
		Name:      "degradations_total",
		Help:      "Calendar queries answered by the weekday fallback.",
	})
)

// Sample is one collected counter series with its labels rendered into
// the series name, exposition-style.
type Sample struct {
	Series string  `json:"series"`
	Value  float64 `json:"value"`
}

// Snapshot gathers the default registry and flattens this package's
// counter series into samples ordered by series name, skipping the
// runtime collectors the client library registers on its own. A
// one-shot batch has no scrape surface, so the snapshot is how a
// run's counters reach the log and the QA report.
func Snapshot() ([]Sample, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var out []Sample
	for _, fam := range families {
		if !strings.HasPrefix(fam.GetName(), namespace+"_") {
			continue
		}
		for _, m := range fam.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			series := fam.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				pairs := make([]string, 0, len(labels))
				for _, l := range labels {
					pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
				}
				series += "{" + strings.Join(pairs, ",") + "}"
			}
			out = append(out, Sample{Series: series, Value: m.GetCounter().GetValue()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Series < out[j].Series })
	return out, nil
}
