package app

import (
	"io"
	"os"
	"sync"

	"github.com/boxtrack/boxtrack/pkg/creds"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// MemoryLog keeps the tail of the JSON log for api/log.
var MemoryLog = newBuffer(16)

// Logger - root logger, configured by Init.
var Logger = zerolog.Nop()

// GetLogger returns Logger with the level of `log: {module: level}`.
func GetLogger(module string) zerolog.Logger {
	s, ok := modules[module]
	if !ok {
		return Logger
	}

	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		Logger.Warn().Err(err).Str("module", module).Msg("[app] log level")
		return Logger
	}

	return Logger.Level(lvl)
}

// log section keys, the rest are module levels
var modules = map[string]string{
	"format": "",
	"level":  "info",
	"output": "stdout",
	"time":   zerolog.TimeFormatUnixMs,
}

func initLogger() {
	var cfg struct {
		Mod map[string]string `yaml:"log"`
	}

	cfg.Mod = modules

	LoadConfig(&cfg)

	Logger = NewLogger(modules)
}

// NewLogger builds a logger from log section keys:
//   - output: stdout, stderr or empty for memory only
//   - format: json, text, color or empty for terminal detection
//   - time: zerolog time format, empty disables timestamps
//   - level: zerolog level name
//
// Memory copy is always JSON. Secrets from pkg/creds are masked everywhere.
func NewLogger(mod map[string]string) zerolog.Logger {
	timeFormat := mod["time"]

	var w io.Writer = MemoryLog

	if out := logOutput(mod["output"]); out != nil {
		var console io.Writer = out
		if mod["format"] != "json" {
			console = consoleWriter(out, mod["format"], timeFormat != "")
		}
		w = zerolog.MultiLevelWriter(console, MemoryLog)
	}

	lvl, _ := zerolog.ParseLevel(mod["level"])
	logger := zerolog.New(creds.SecretWriter(w)).Level(lvl)

	if timeFormat != "" {
		zerolog.TimeFieldFormat = timeFormat
		logger = logger.With().Timestamp().Logger()
	}

	return logger
}

func logOutput(name string) *os.File {
	switch name {
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	return nil
}

func consoleWriter(out *os.File, format string, withTime bool) *zerolog.ConsoleWriter {
	cw := &zerolog.ConsoleWriter{Out: out}

	switch format {
	case "text":
		cw.NoColor = true
	case "color":
		cw.NoColor = false
	default:
		cw.NoColor = !isatty.IsTerminal(out.Fd())
	}

	if withTime {
		cw.TimeFormat = "15:04:05.000"
	} else {
		cw.PartsOrder = []string{
			zerolog.LevelFieldName,
			zerolog.CallerFieldName,
			zerolog.MessageFieldName,
		}
	}

	return cw
}

const chunkSize = 1 << 16

// circularBuffer - ring of fixed size chunks. When the ring is full the
// oldest chunk is reused.
type circularBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	r, w   int // oldest and current chunk
}

func newBuffer(chunks int) *circularBuffer {
	b := &circularBuffer{chunks: make([][]byte, 1, chunks)}
	b.chunks[0] = make([]byte, 0, chunkSize)
	return b
}

func (b *circularBuffer) next(i int) int {
	if i++; i == cap(b.chunks) {
		return 0
	}
	return i
}

func (b *circularBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks[b.w])+len(p) > chunkSize {
		b.w = b.next(b.w)
		if b.w == b.r {
			b.r = b.next(b.r)
		}

		if b.w < len(b.chunks) {
			b.chunks[b.w] = b.chunks[b.w][:0]
		} else {
			b.chunks = append(b.chunks, make([]byte, 0, chunkSize))
		}
	}

	b.chunks[b.w] = append(b.chunks[b.w], p...)
	return len(p), nil
}

func (b *circularBuffer) WriteTo(w io.Writer) (n int64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := b.r; ; i = b.next(i) {
		var nn int
		nn, err = w.Write(b.chunks[i])
		n += int64(nn)
		if err != nil || i == b.w {
			return
		}
	}
}

func (b *circularBuffer) Reset() {
	b.mu.Lock()
	b.chunks[0] = b.chunks[0][:0]
	b.r, b.w = 0, 0
	b.mu.Unlock()
}
