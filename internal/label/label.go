package label

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/boxtrack/boxtrack/internal/api"
	"github.com/boxtrack/boxtrack/internal/app"
	"github.com/boxtrack/boxtrack/internal/metrics"
	"github.com/boxtrack/boxtrack/internal/surveillance"
	"github.com/boxtrack/boxtrack/pkg/label"
	"github.com/rs/zerolog"
)

func Init() {
	var cfg struct {
		Mod struct {
			TextCmd    string `yaml:"text_cmd"`
			BarcodeCmd string `yaml:"barcode_cmd"`
		} `yaml:"label"`
	}

	cfg.Mod.TextCmd = label.DefaultTextCmd
	cfg.Mod.BarcodeCmd = label.DefaultBarcodeCmd

	app.LoadConfig(&cfg)

	log = app.GetLogger("label")

	rec, err := label.NewExecRecognizer(cfg.Mod.TextCmd, cfg.Mod.BarcodeCmd)
	if err != nil {
		log.Error().Err(err).Caller().Send()
		return
	}

	reader = label.NewReader(rec)

	api.HandleFunc("api/label", apiLabel)
}

var maxImageSize int64 = 32 << 20

var log = zerolog.Nop()
var reader *label.Reader

// apiLabel reads the label from the request body image or, with camera param,
// from a fresh camera snapshot
func apiLabel(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	var image []byte
	var err error

	if s := r.URL.Query().Get("camera"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil || id < 0 {
			http.Error(w, "label: wrong camera param: "+s, http.StatusBadRequest)
			return
		}

		if image, err = surveillance.Snapshot(r.Context(), id); err != nil {
			metrics.LabelReads.WithLabelValues("error").Inc()
			api.Error(w, err, surveillance.ErrorStatus(err))
			return
		}
	} else {
		if image, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageSize)); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	text, err := reader.ReadLabel(r.Context(), image)
	if err != nil {
		if errors.Is(err, label.ErrUnsupportedImage) {
			metrics.LabelReads.WithLabelValues("unsupported").Inc()
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		metrics.LabelReads.WithLabelValues("error").Inc()
		api.Error(w, err, http.StatusInternalServerError)
		return
	}

	metrics.LabelReads.WithLabelValues("ok").Inc()

	log.Debug().Int("size", len(image)).Msg("[label] read")

	api.Response(w, text, api.MimeText)
}
