package main

import (
	"github.com/boxtrack/boxtrack/internal/api"
	"github.com/boxtrack/boxtrack/internal/api/ws"
	"github.com/boxtrack/boxtrack/internal/app"
	"github.com/boxtrack/boxtrack/internal/label"
	"github.com/boxtrack/boxtrack/internal/measure"
	"github.com/boxtrack/boxtrack/internal/metrics"
	"github.com/boxtrack/boxtrack/internal/surveillance"
	"github.com/boxtrack/boxtrack/pkg/shell"
)

func main() {
	app.Init() // init config and logs

	api.Init() // init HTTP API server
	ws.Init()  // init WS API endpoint
	metrics.Init()

	surveillance.Init() // login to the device, camera endpoints
	measure.Init()      // detection events and box dimensions (depends on ws)
	label.Init()        // label OCR (depends on surveillance snapshots)

	sig := shell.RunUntilSignal()

	app.Logger.Info().Str("signal", sig.String()).Msg("shutdown")

	measure.Close()
	surveillance.Close()
}
