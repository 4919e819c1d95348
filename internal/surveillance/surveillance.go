package surveillance

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/boxtrack/boxtrack/internal/api"
	"github.com/boxtrack/boxtrack/internal/app"
	"github.com/boxtrack/boxtrack/internal/metrics"
	"github.com/boxtrack/boxtrack/pkg/synology"
	"github.com/rs/zerolog"
)

func Init() {
	var cfg struct {
		Mod struct {
			synology.Config `yaml:",inline"`
			Reauth          bool `yaml:"reauth"`
		} `yaml:"surveillance"`
	}

	cfg.Mod.Reauth = true

	app.LoadConfig(&cfg)

	log = app.GetLogger("surveillance")

	if cfg.Mod.Host == "" {
		log.Debug().Msg("[surveillance] disabled, no host")
		return
	}

	timeout := cfg.Mod.Timeout
	if timeout == 0 {
		timeout = synology.DefaultTimeout
	}

	c, err := synology.New(cfg.Mod.Config,
		synology.WithHTTPClient(&http.Client{
			Timeout:   timeout,
			Transport: metrics.InstrumentTransport(nil),
		}),
		synology.WithReauth(cfg.Mod.Reauth),
		synology.WithUserAgent(app.UserAgent),
	)
	if err != nil {
		log.Error().Err(err).Caller().Send()
		return
	}

	client = c

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = client.Initialize(ctx); err != nil {
		// next request will try again
		log.Warn().Err(err).Str("url", client.URL()).Msg("[surveillance] login")
	} else {
		log.Info().Str("url", client.URL()).Msg("[surveillance] login")
	}

	api.HandleFunc("api/cameras", apiCameras)
	api.HandleFunc("api/snapshot", apiSnapshot)
	api.HandleFunc("api/liveview", apiLiveView)
	api.HandleFunc("api/motion", apiMotion)
	api.HandleFunc("api/record", apiRecord)
}

var client *synology.Client
var log = zerolog.Nop()

// Snapshot takes one image from the camera, logging in first if the
// session was never opened.
func Snapshot(ctx context.Context, cameraID int) ([]byte, error) {
	if client == nil {
		return nil, errDisabled
	}
	if err := ensureSession(ctx); err != nil {
		return nil, err
	}
	return client.Snapshot(ctx, cameraID)
}

// Close ends the device session.
func Close() {
	if client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("[surveillance] logout")
	}
	_ = client.Close()
}

var errDisabled = errors.New("surveillance: disabled")

func ensureSession(ctx context.Context) error {
	if client.Token() != "" {
		return nil
	}
	return client.Authenticate(ctx)
}

// ErrorStatus maps device errors to HTTP status codes.
func ErrorStatus(err error) int {
	var authErr *synology.AuthenticationError
	var methodErr *synology.UnsupportedMethodError
	var transportErr *synology.TransportError
	var apiErr *synology.APIError

	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &methodErr):
		return http.StatusMethodNotAllowed
	case errors.As(err, &transportErr):
		if transportErr.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, errDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorKind(err error) string {
	switch ErrorStatus(err) {
	case http.StatusUnauthorized:
		return "auth"
	case http.StatusMethodNotAllowed:
		return "method"
	case http.StatusGatewayTimeout:
		return "timeout"
	case http.StatusBadGateway:
		var apiErr *synology.APIError
		if errors.As(err, &apiErr) {
			return "api"
		}
		return "transport"
	}
	return "other"
}

func deviceError(w http.ResponseWriter, err error) {
	metrics.DeviceErrors.WithLabelValues(errorKind(err)).Inc()
	api.Error(w, err, ErrorStatus(err))
}

func cameraID(r *http.Request) (int, error) {
	s := r.URL.Query().Get("camera")
	if s == "" {
		return 0, errors.New("surveillance: camera param required")
	}
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, errors.New("surveillance: wrong camera param: " + s)
	}
	return id, nil
}

// prepare checks method and session, answers the request itself on failure
func prepare(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, method := range methods {
		if r.Method == method {
			if client == nil {
				http.Error(w, errDisabled.Error(), http.StatusServiceUnavailable)
				return false
			}
			if err := ensureSession(r.Context()); err != nil {
				deviceError(w, err)
				return false
			}
			return true
		}
	}

	http.Error(w, "", http.StatusMethodNotAllowed)
	return false
}

func responseData(w http.ResponseWriter, res *synology.Response) {
	if res.Data == nil {
		api.ResponseJSON(w, struct{}{})
		return
	}
	api.ResponseJSON(w, res.Data)
}

func apiCameras(w http.ResponseWriter, r *http.Request) {
	if !prepare(w, r, "GET") {
		return
	}

	res, err := client.CameraInfo(r.Context())
	if err != nil {
		deviceError(w, err)
		return
	}

	responseData(w, res)
}

func apiSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := cameraID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !prepare(w, r, "GET") {
		return
	}

	b, err := client.Snapshot(r.Context(), id)
	if err != nil {
		deviceError(w, err)
		return
	}

	api.Response(w, b, http.DetectContentType(b))
}

func apiLiveView(w http.ResponseWriter, r *http.Request) {
	id, err := cameraID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !prepare(w, r, "GET") {
		return
	}

	res, err := client.LiveViewPath(r.Context(), id)
	if err != nil {
		deviceError(w, err)
		return
	}

	responseData(w, res)
}

func apiMotion(w http.ResponseWriter, r *http.Request) {
	id, err := cameraID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !prepare(w, r, "GET", "POST") {
		return
	}

	var res *synology.Response

	if r.Method == "POST" {
		res, err = client.SetupMotionDetection(r.Context(), id)
	} else {
		res, err = client.MotionEvents(r.Context(), id)
	}
	if err != nil {
		deviceError(w, err)
		return
	}

	responseData(w, res)
}

func apiRecord(w http.ResponseWriter, r *http.Request) {
	id, err := cameraID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	action := synology.RecordAction(r.URL.Query().Get("action"))
	if action != synology.RecordStart && action != synology.RecordStop {
		http.Error(w, "surveillance: wrong action: "+string(action), http.StatusBadRequest)
		return
	}

	if !prepare(w, r, "POST") {
		return
	}

	var res *synology.Response
	if action == synology.RecordStart {
		res, err = client.StartRecording(r.Context(), id)
	} else {
		res, err = client.StopRecording(r.Context(), id)
	}
	if err != nil {
		deviceError(w, err)
		return
	}

	log.Debug().Int("camera", id).Str("action", string(action)).Msg("[surveillance] record")

	responseData(w, res)
}
