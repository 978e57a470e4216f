package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var (
	classifications   = newCounterVec("sentiment")
	tallyFailures     = newCounterVec("reason")
	requests          = newCounterVec("route", "status")
	requestDurationMs = newHistogram([]float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000})
)

// IncClassification counts one classification with the given label.
func IncClassification(sentiment string) {
	classifications.Inc(sentiment)
}

// IncTallyFailure counts a failed tally write.
func IncTallyFailure(reason string) {
	tallyFailures.Inc(reason)
}

// ObserveRequest records a completed HTTP request.
func ObserveRequest(route string, status int, durationMs float64) {
	requests.Inc(route, strconv.Itoa(status))
	if durationMs < 0 {
		durationMs = 0
	}
	requestDurationMs.Observe(durationMs)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounterVec(&buf, "sentiment_classifications_total", "Classifications by resulting sentiment", classifications)
	writeCounterVec(&buf, "sentiment_tally_failures_total", "Failed tally writes", tallyFailures)
	writeCounterVec(&buf, "http_requests_total", "HTTP requests by route and status", requests)
	writeHistogram(&buf, "http_request_duration_ms", "HTTP request duration in milliseconds", requestDurationMs.Snapshot())
	return buf.String()
}

type counterVec struct {
	mu     sync.Mutex
	labels []string
	values map[string]uint64
}

func newCounterVec(labels ...string) *counterVec {
	return &counterVec{labels: labels, values: make(map[string]uint64)}
}

// Inc takes one value per label, in the order the labels were declared.
func (v *counterVec) Inc(values ...string) {
	key := strings.Join(values, "\xff")
	v.mu.Lock()
	v.values[key]++
	v.mu.Unlock()
}

func (v *counterVec) get(values ...string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.values[strings.Join(values, "\xff")]
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe counts value in the first bucket whose bound it fits; rendering accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounterVec(buf *bytes.Buffer, name, help string, v *counterVec) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)

	v.mu.Lock()
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		parts := strings.Split(k, "\xff")
		pairs := make([]string, 0, len(v.labels))
		for i, label := range v.labels {
			val := ""
			if i < len(parts) {
				val = parts[i]
			}
			pairs = append(pairs, fmt.Sprintf("%s=%q", label, val))
		}
		fmt.Fprintf(buf, "%s{%s} %d\n", name, strings.Join(pairs, ","), v.values[k])
	}
	v.mu.Unlock()
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
