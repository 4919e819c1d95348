package metrics

import (
	"net/http"

	"github.com/boxtrack/boxtrack/internal/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "boxtrack"

var Registry = prometheus.NewRegistry()

var (
	// DeviceRequests counts HTTP calls to the surveillance device
	DeviceRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "requests_total",
		Help:      "HTTP requests to the surveillance device by status code and method",
	}, []string{"code", "method"})

	DeviceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests to the surveillance device",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method"})

	DeviceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "errors_total",
		Help:      "Failed device operations by error kind",
	}, []string{"kind"})

	// Detections counts detection events by result:
	// received, measured, empty, filtered, error
	Detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "detect",
		Name:      "events_total",
		Help:      "Detection events by processing result",
	}, []string{"result"})

	DetectionQueue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "detect",
		Name:      "queue_length",
		Help:      "Detection events waiting for the measurer",
	})

	LabelReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "label",
		Name:      "reads_total",
		Help:      "Label recognitions by result",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		DeviceRequests, DeviceDuration, DeviceErrors,
		Detections, DetectionQueue,
		LabelReads,
	)
}

func Init() {
	api.HandleFunc("api/metrics", Handler().ServeHTTP)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// InstrumentTransport wraps the device transport with request counters.
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(DeviceRequests,
		promhttp.InstrumentRoundTripperDuration(DeviceDuration, next),
	)
}
