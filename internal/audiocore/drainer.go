package audiocore

import (
	"github.com/wavebar/wavebar/internal/logger"
)

// Analyzer turns a drained snapshot into bar heights. It must accept a
// zero-length snapshot and should return its previous output in that case.
type Analyzer interface {
	Analyze(samples []float64, f Format) []float64
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(samples []float64, f Format) []float64

func (fn AnalyzerFunc) Analyze(samples []float64, f Format) []float64 {
	return fn(samples, f)
}

// Tap receives every non-empty drained snapshot alongside the analyzer.
type Tap interface {
	Consume(samples []float64, f Format) error
}

// Frame is the result of one drain cycle.
type Frame struct {
	Samples int
	Format  Format
	Bars    []float64
}

// Drainer runs the consumer side of a Channel once per frame.
type Drainer struct {
	ch       *Channel
	scratch  []float64
	analyzer Analyzer
	taps     []Tap
	log      logger.Logger
}

// DrainerOption configures a Drainer.
type DrainerOption func(*Drainer)

// WithTap adds a tap that sees each drained snapshot.
func WithTap(t Tap) DrainerOption {
	return func(d *Drainer) {
		if t != nil {
			d.taps = append(d.taps, t)
		}
	}
}

// WithDrainLogger sets the logger used for tap failures.
func WithDrainLogger(l logger.Logger) DrainerOption {
	return func(d *Drainer) {
		d.log = l
	}
}

// NewDrainer binds a consumer to ch. The scratch slice is sized to the
// channel capacity once and reused every frame.
func NewDrainer(ch *Channel, analyzer Analyzer, opts ...DrainerOption) *Drainer {
	d := &Drainer{
		ch:       ch,
		scratch:  make([]float64, ch.Capacity()),
		analyzer: analyzer,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.Ensure(d.log)
	return d
}

// Frame drains the channel and hands the snapshot to the analyzer, even when
// nothing new arrived. The returned slices are only valid until the next call.
func (d *Drainer) Frame() Frame {
	n := d.ch.Drain(d.scratch)
	f := d.ch.Format()
	samples := d.scratch[:n]

	if n > 0 && len(d.taps) > 0 {
		d.feedTaps(samples, f)
	}

	return Frame{
		Samples: n,
		Format:  f,
		Bars:    d.analyzer.Analyze(samples, f),
	}
}

// feedTaps passes the snapshot on; a failing tap is logged and removed.
func (d *Drainer) feedTaps(samples []float64, f Format) {
	kept := d.taps[:0]
	for _, t := range d.taps {
		if err := t.Consume(samples, f); err != nil {
			d.log.Warn("drain tap failed, detaching", logger.Error(err))
			continue
		}
		kept = append(kept, t)
	}
	d.taps = kept
}
