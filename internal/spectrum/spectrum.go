package spectrum

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/wavebar/wavebar/internal/audiocore"
	"github.com/wavebar/wavebar/internal/logger"
)

// Autosens tuning.
const (
	sensInitial     = 1.0
	sensInitialStep = 1.1   // growth until the first overshoot
	sensStep        = 1.001 // slow growth afterwards
	sensDecay       = 0.98  // shrink on overshoot
	fallStep        = 0.028
	gravityBase     = 1.54
)

// Plan holds the analysis state for one stream. It is not safe for
// concurrent use; the frame loop owns it.
type Plan struct {
	cfg     PlanConfig
	log     logger.Logger
	fftSize int
	edges   []int
	eq      []float64

	history [][]float64 // per channel sliding window, oldest first
	work    []float64
	raw     []float64 // per channel bars before smoothing

	out  []float64
	mem  []float64
	peak []float64
	fall []float64
	prev []float64

	sens       float64
	sensInit   bool
	gravityMod float64
}

// NewPlan validates cfg and allocates all per-frame buffers.
func NewPlan(cfg PlanConfig) (*Plan, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	size := fftSizeFor(cfg.SampleRate)
	edges, centers := barLayout(cfg, size)
	total := cfg.Bars * cfg.Channels

	p := &Plan{
		cfg:      cfg,
		log:      logger.Ensure(cfg.Log).Module("spectrum"),
		fftSize:  size,
		edges:    edges,
		eq:       make([]float64, cfg.Bars),
		history:  make([][]float64, cfg.Channels),
		work:     make([]float64, size),
		raw:      make([]float64, total),
		out:      make([]float64, total),
		mem:      make([]float64, total),
		peak:     make([]float64, total),
		fall:     make([]float64, total),
		prev:     make([]float64, total),
		sens:     sensInitial,
		sensInit: true,
	}
	for c := range p.history {
		p.history[c] = make([]float64, size)
	}
	// Tilt toward the treble to offset the falling energy of typical music.
	for i, center := range centers {
		p.eq[i] = math.Pow(center/float64(cfg.LowCutoff), 0.25)
	}

	p.gravityMod = 1
	if cfg.NoiseReduction > 0 {
		p.gravityMod = math.Pow(60/float64(cfg.FrameRate), 2.5) * gravityBase / cfg.NoiseReduction
	}
	p.gravityMod = max(p.gravityMod, 1)

	p.log.Debug("spectrum plan ready",
		logger.Int("fft_size", size),
		logger.Int("bars", cfg.Bars),
		logger.Int("channels", cfg.Channels),
		logger.Int("sample_rate", cfg.SampleRate))
	return p, nil
}

// Bars returns the number of output values: bars per channel times channels.
func (p *Plan) Bars() int {
	return len(p.out)
}

// FFTSize returns the transform length per channel.
func (p *Plan) FFTSize() int {
	return p.fftSize
}

// Sensitivity returns the current autosens gain.
func (p *Plan) Sensitivity() float64 {
	return p.sens
}

// Analyze implements audiocore.Analyzer. Samples are interleaved with the
// plan's channel count. Output holds channel 0 bars followed by channel 1
// bars. A zero-length snapshot returns the previous output unchanged. The
// returned slice is reused by the next call.
func (p *Plan) Analyze(samples []float64, _ audiocore.Format) []float64 {
	if len(samples) == 0 {
		return p.out
	}
	silent := p.push(samples)
	for c := range p.history {
		p.barMagnitudes(c)
	}
	p.smooth()
	p.normalize(silent)
	return p.out
}

// push deinterleaves samples into the sliding windows and reports whether
// the snapshot was entirely silent.
func (p *Plan) push(samples []float64) bool {
	channels := len(p.history)
	frames := len(samples) / channels
	silent := true
	for _, s := range samples[:frames*channels] {
		if s != 0 {
			silent = false
			break
		}
	}

	if frames >= p.fftSize {
		start := (frames - p.fftSize) * channels
		for c, hist := range p.history {
			for i := range hist {
				hist[i] = samples[start+i*channels+c]
			}
		}
		return silent
	}

	for c, hist := range p.history {
		copy(hist, hist[frames:])
		tail := hist[p.fftSize-frames:]
		for i := range tail {
			tail[i] = samples[i*channels+c]
		}
	}
	return silent
}

// barMagnitudes windows one channel, transforms it and stores the peak
// normalized magnitude of each band in raw.
func (p *Plan) barMagnitudes(c int) {
	copy(p.work, p.history[c])
	window.Apply(p.work, window.Hann)
	spectrum := fft.FFTReal(p.work)

	// A full-scale sine under a Hann window peaks at N/4.
	norm := 4 / float64(p.fftSize)
	base := c * p.cfg.Bars
	for b := 0; b < p.cfg.Bars; b++ {
		lo, hi := p.edges[b], max(p.edges[b+1], p.edges[b]+1)
		peak := 0.0
		for k := lo; k < hi && k <= p.fftSize/2; k++ {
			peak = max(peak, cmplx.Abs(spectrum[k]))
		}
		p.raw[base+b] = peak * norm
	}
}

// smooth applies gravity fall-off and the integral filter driven by noise
// reduction.
func (p *Plan) smooth() {
	nr := p.cfg.NoiseReduction
	for i, v := range p.raw {
		v *= p.eq[i%p.cfg.Bars] * p.sens

		if nr > 0 {
			if v < p.prev[i] {
				v = p.peak[i] * (1 - p.fall[i]*p.fall[i]*p.gravityMod)
				v = max(v, 0)
				p.fall[i] += fallStep
			} else {
				p.peak[i] = v
				p.fall[i] = 0
			}
			p.prev[i] = v

			v = p.mem[i]*nr + v
			p.mem[i] = v
			// The integral filter's steady state is v/(1-nr).
			v *= 1 - nr
		}
		p.out[i] = v
	}
}

// normalize clamps to [0, 1] and, with autosens, adapts the gain so the
// loudest bar sits just below the top.
func (p *Plan) normalize(silent bool) {
	overshoot := false
	for i, v := range p.out {
		if v > 1 {
			overshoot = true
			v = 1
		}
		p.out[i] = max(v, 0)
	}

	if !p.cfg.Autosens {
		return
	}
	switch {
	case overshoot:
		p.sens *= sensDecay
		p.sensInit = false
	case !silent:
		if p.sensInit {
			p.sens *= sensInitialStep
		} else {
			p.sens *= sensStep
		}
	}
	p.sens = max(p.sens, 1e-6)
}
