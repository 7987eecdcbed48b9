package metrics

import (
  "net/http"
  "strconv"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/prometheus/client_golang/prometheus"
  "github.com/prometheus/client_golang/prometheus/collectors"
  "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stampcard"

// Metrics groups the application's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
  registry        *prometheus.Registry
  codesIssued     *prometheus.CounterVec
  redemptions     *prometheus.CounterVec
  cardsCompleted  prometheus.Counter
  requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
  reg := prometheus.NewRegistry()
  m := &Metrics{
    registry: reg,
    codesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
      Namespace: namespace,
      Name:      "codes_issued_total",
      Help:      "One-time codes issued, by type.",
    }, []string{"type"}),
    redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
      Namespace: namespace,
      Name:      "redemptions_total",
      Help:      "Code redemptions, by type and result code.",
    }, []string{"type", "result"}),
    cardsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
      Namespace: namespace,
      Name:      "cards_completed_total",
      Help:      "Stamp cards that reached their final stamp.",
    }),
    requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
      Namespace: namespace,
      Name:      "http_request_duration_seconds",
      Help:      "HTTP request latency.",
      Buckets:   prometheus.DefBuckets,
    }, []string{"method", "route", "status"}),
  }
  reg.MustRegister(
    m.codesIssued,
    m.redemptions,
    m.cardsCompleted,
    m.requestDuration,
    collectors.NewGoCollector(),
    collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
  )
  return m
}

func (m *Metrics) CodeIssued(codeType string) {
  if m == nil {
    return
  }
  m.codesIssued.WithLabelValues(codeType).Inc()
}

// Redemption records one redemption attempt; result is "ok" or an error code.
func (m *Metrics) Redemption(codeType, result string) {
  if m == nil {
    return
  }
  m.redemptions.WithLabelValues(codeType, result).Inc()
}

func (m *Metrics) CardCompleted() {
  if m == nil {
    return
  }
  m.cardsCompleted.Inc()
}

func (m *Metrics) Handler() http.Handler {
  if m == nil {
    return promhttp.Handler()
  }
  return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
  if m == nil {
    return nil
  }
  return m.registry
}

// Middleware observes request latency labelled by the matched route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
  return func(c *gin.Context) {
    start := time.Now()
    c.Next()
    if m == nil {
      return
    }
    route := c.FullPath()
    if route == "" {
      route = "unmatched"
    }
    m.requestDuration.
      WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
      Observe(time.Since(start).Seconds())
  }
}
