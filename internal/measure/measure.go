package measure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/boxtrack/boxtrack/internal/api"
	"github.com/boxtrack/boxtrack/internal/api/ws"
	"github.com/boxtrack/boxtrack/internal/app"
	"github.com/boxtrack/boxtrack/internal/metrics"
	"github.com/boxtrack/boxtrack/pkg/detect"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func Init() {
	var cfg struct {
		Mod struct {
			Buffer int    `yaml:"buffer"`
			Filter string `yaml:"filter"`
		} `yaml:"measure"`
	}

	cfg.Mod.Buffer = 16

	app.LoadConfig(&cfg)

	log = app.GetLogger("measure")

	if err := start(cfg.Mod.Buffer, cfg.Mod.Filter); err != nil {
		log.Error().Err(err).Caller().Send()
		return
	}

	api.HandleFunc("api/detections", apiDetections)
	api.HandleFunc("api/measure", apiMeasure)

	ws.HandleFunc("measure", wsMeasure)
}

// Close stops accepting events and waits until buffered ones are measured.
func Close() {
	if stream == nil {
		return
	}

	stream.Close()

	select {
	case <-done:
	case <-time.After(closeTimeout):
		log.Warn().Int("events", stream.Len()).Msg("[measure] dropped on close")
	}
}

var closeTimeout = 5 * time.Second

// Measurement - dimensions of the last accepted event.
type Measurement struct {
	ID     string    `json:"id"`
	Camera int       `json:"camera,omitempty"`
	Time   time.Time `json:"time"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
}

// Last returns the latest measurement, nil before the first one.
func Last() *Measurement {
	mu.Lock()
	defer mu.Unlock()
	return last
}

var log = zerolog.Nop()
var stream *detect.Stream
var done chan struct{}

var (
	mu          sync.Mutex
	last        *Measurement
	subscribers = map[*ws.Transport]struct{}{}
)

func start(buffer int, filter string) error {
	f, err := detect.CompileFilter(filter)
	if err != nil {
		return err
	}

	stream = detect.NewStream(buffer)

	events, err := stream.Subscribe()
	if err != nil {
		return err
	}

	m := &detect.Measurer{
		Filter: f,
		Sink:   sink,
		OnError: func(ev *detect.Event, err error) {
			metrics.Detections.WithLabelValues("error").Inc()
			log.Warn().Err(err).Str("id", ev.ID).Msg("[measure] filter")
		},
		OnSkip: func(ev *detect.Event) {
			if len(ev.Rects) == 0 {
				metrics.Detections.WithLabelValues("empty").Inc()
			} else {
				metrics.Detections.WithLabelValues("filtered").Inc()
			}
			log.Trace().Str("id", ev.ID).Msg("[measure] skip")
		},
	}

	if f != nil {
		log.Debug().Str("filter", f.String()).Msg("[measure] filter")
	}

	finished := make(chan struct{})
	done = finished

	go func() {
		_ = m.Run(context.Background(), events)
		log.Debug().Msg("[measure] stream closed")
		close(finished)
	}()

	return nil
}

func sink(ev *detect.Event, d detect.Dimensions) {
	metrics.Detections.WithLabelValues("measured").Inc()
	metrics.DetectionQueue.Set(float64(stream.Len()))

	m := &Measurement{
		ID:     ev.ID,
		Camera: ev.Camera,
		Time:   ev.Time,
		Width:  d.Width,
		Height: d.Height,
	}

	mu.Lock()
	last = m
	transports := make([]*ws.Transport, 0, len(subscribers))
	for tr := range subscribers {
		transports = append(transports, tr)
	}
	mu.Unlock()

	log.Info().Str("id", m.ID).Int("camera", m.Camera).
		Msgf("[measure] width=%d height=%d", m.Width, m.Height)

	for _, tr := range transports {
		if err := tr.Write(&ws.Message{Type: "measure", Value: m}); err != nil {
			log.Trace().Err(err).Caller().Send()
		}
	}
}

func apiDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	var ev detect.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	metrics.Detections.WithLabelValues("received").Inc()

	if err := stream.Publish(r.Context(), &ev); err != nil {
		status := http.StatusServiceUnavailable
		if !errors.Is(err, detect.ErrClosed) {
			status = http.StatusRequestTimeout
		}
		api.Error(w, err, status)
		return
	}

	metrics.DetectionQueue.Set(float64(stream.Len()))

	api.ResponseJSON(w, map[string]string{"id": ev.ID})
}

func apiMeasure(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	m := Last()
	if m == nil {
		http.Error(w, "no measurements", http.StatusNotFound)
		return
	}

	api.ResponseJSON(w, m)
}

// wsMeasure subscribes the client to new measurements and sends the last one.
func wsMeasure(tr *ws.Transport, _ *ws.Message) error {
	mu.Lock()
	_, exists := subscribers[tr]
	subscribers[tr] = struct{}{}
	m := last
	mu.Unlock()

	if !exists {
		tr.OnClose(func() {
			mu.Lock()
			delete(subscribers, tr)
			mu.Unlock()
		})
	}

	if m == nil {
		return nil
	}
	return tr.Write(&ws.Message{Type: "measure", Value: m})
}
