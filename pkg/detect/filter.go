package detect

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter - boolean expression over the measured event, for example:
//
//	width >= 20 && height >= 20 && camera == 1
//
// Variables: width, height (rounded), count (rectangles in event), camera.
type Filter struct {
	program *vm.Program
	source  string
}

func filterEnv(ev *Event, d Dimensions) map[string]any {
	return map[string]any{
		"width":  d.Width,
		"height": d.Height,
		"count":  len(ev.Rects),
		"camera": ev.Camera,
	}
}

// CompileFilter returns nil filter for empty input.
func CompileFilter(input string) (*Filter, error) {
	if input == "" {
		return nil, nil
	}

	env := filterEnv(&Event{}, Dimensions{})

	program, err := expr.Compile(input, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, err
	}

	return &Filter{program: program, source: input}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match - nil filter matches everything.
func (f *Filter) Match(ev *Event, d Dimensions) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, err := expr.Run(f.program, filterEnv(ev, d))
	if err != nil {
		return false, err
	}

	return out.(bool), nil
}
