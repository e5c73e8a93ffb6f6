// Package analytics computes named indicators over a rolling per-symbol
// price window and attaches them to ticks. The engine treats it as the
// external analytics collaborator: conditional triggers reference values
// by name ("indicator.rsi_14") and never see how they are produced.
package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"ordercore/internal/feed"

	talib "github.com/markcheno/go-talib"
)

const maxWindow = 512

// Enricher computes the configured indicators. Spec names take the form
// "<kind>_<period>", e.g. "sma_20", "ema_9", "rsi_14".
type Enricher struct {
	specs []spec

	mu      sync.Mutex
	windows map[string][]float64
}

type spec struct {
	name   string
	kind   string
	period int
}

func NewEnricher(names []string) (*Enricher, error) {
	specs := make([]spec, 0, len(names))
	for _, raw := range names {
		s, err := parseSpec(raw)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return &Enricher{
		specs:   specs,
		windows: make(map[string][]float64),
	}, nil
}

func parseSpec(raw string) (spec, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	idx := strings.LastIndex(name, "_")
	if idx <= 0 || idx == len(name)-1 {
		return spec{}, fmt.Errorf("indicator spec %q: want <kind>_<period>", raw)
	}
	kind := name[:idx]
	period, err := strconv.Atoi(name[idx+1:])
	if err != nil || period <= 0 {
		return spec{}, fmt.Errorf("indicator spec %q: bad period", raw)
	}
	switch kind {
	case "sma", "ema", "rsi":
	default:
		return spec{}, fmt.Errorf("indicator spec %q: unsupported kind %q", raw, kind)
	}
	return spec{name: name, kind: kind, period: period}, nil
}

// Enrich appends the tick price to the symbol's window and attaches every
// computable indicator. Indicators without enough history are simply
// absent; a conditional trigger referencing one then reports an evaluation
// error and its order stays pending.
func (e *Enricher) Enrich(t feed.Tick) feed.Tick {
	if t.Price <= 0 || len(e.specs) == 0 {
		return t
	}
	e.mu.Lock()
	win := append(e.windows[t.Symbol], t.Price)
	if len(win) > maxWindow {
		win = win[len(win)-maxWindow:]
	}
	e.windows[t.Symbol] = win
	closes := make([]float64, len(win))
	copy(closes, win)
	e.mu.Unlock()

	values := make(map[string]float64, len(e.specs)+len(t.Indicators))
	for k, v := range t.Indicators {
		values[k] = v
	}
	for _, s := range e.specs {
		v, ok := compute(s, closes)
		if ok {
			values[s.name] = v
		}
	}
	t.Indicators = values
	return t
}

func compute(s spec, closes []float64) (float64, bool) {
	// talib needs period+1 points for RSI and period for the averages;
	// being strict here keeps the early values stable.
	switch s.kind {
	case "sma":
		if len(closes) < s.period {
			return 0, false
		}
		out := talib.Sma(closes, s.period)
		return out[len(out)-1], true
	case "ema":
		if len(closes) < s.period {
			return 0, false
		}
		out := talib.Ema(closes, s.period)
		return out[len(out)-1], true
	case "rsi":
		if len(closes) < s.period+1 {
			return 0, false
		}
		out := talib.Rsi(closes, s.period)
		return out[len(out)-1], true
	default:
		return 0, false
	}
}
