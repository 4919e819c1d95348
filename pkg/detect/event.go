package detect

import (
	"math"
	"time"
)

// Rect - size of one detected rectangle, in detector pixels.
type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Event - one notification of the rectangle detector. Rects keep detector order.
type Event struct {
	ID     string    `json:"id,omitempty"`
	Camera int       `json:"camera,omitempty"`
	Time   time.Time `json:"time"`
	Rects  []Rect    `json:"rects"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Measure takes the last rectangle of the event and rounds its sides
// half to even. Returns false for an event without rectangles.
func Measure(ev *Event) (Dimensions, bool) {
	if ev == nil || len(ev.Rects) == 0 {
		return Dimensions{}, false
	}

	rect := ev.Rects[len(ev.Rects)-1]

	return Dimensions{
		Width:  int(math.RoundToEven(rect.Width)),
		Height: int(math.RoundToEven(rect.Height)),
	}, true
}
