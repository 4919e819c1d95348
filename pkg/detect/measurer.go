package detect

import (
	"context"
)

// Sink receives dimensions of accepted events, in arrival order.
type Sink func(ev *Event, d Dimensions)

type Measurer struct {
	Filter *Filter
	Sink   Sink

	// OnError is called for events the filter could not evaluate.
	OnError func(ev *Event, err error)
	// OnSkip is called for events without rectangles or rejected by the filter.
	OnSkip func(ev *Event)
}

// Handle measures one event. Returns false when the event has no rectangles
// or does not pass the filter.
func (m *Measurer) Handle(ev *Event) (bool, error) {
	d, ok := Measure(ev)
	if !ok {
		return false, nil
	}

	ok, err := m.Filter.Match(ev, d)
	if err != nil || !ok {
		return false, err
	}

	if m.Sink != nil {
		m.Sink(ev, d)
	}
	return true, nil
}

// Run consumes events until ctx is done or the channel is closed.
func (m *Measurer) Run(ctx context.Context, events <-chan *Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			ok, err := m.Handle(ev)
			switch {
			case err != nil:
				if m.OnError != nil {
					m.OnError(ev, err)
				}
			case !ok:
				if m.OnSkip != nil {
					m.OnSkip(ev)
				}
			}
		}
	}
}
