package lfo

import "math"

// Shape selects the modulation curve.
type Shape int

const (
	ShapeSine Shape = iota
	ShapeTriangle
	ShapeSquare
	ShapeSaw
)

// ParseShape maps a name to a Shape, falling back to sine.
func ParseShape(name string) Shape {
	switch name {
	case "triangle":
		return ShapeTriangle
	case "square":
		return ShapeSquare
	case "saw":
		return ShapeSaw
	default:
		return ShapeSine
	}
}

// LFO is a low-frequency oscillator producing one modulation value per
// sample. Each voice owns its own LFOs so phase restarts with the note.
type LFO struct {
	depth  float64 // output range is [-depth, +depth]
	rateHz float64
	shape  Shape
	phase  float64 // [0, 1)
}

// Set configures depth and rate. The phase is kept so that a running
// modulation does not jump.
func (l *LFO) Set(depth, rateHz float64, shape Shape) {
	l.depth = depth
	l.rateHz = rateHz
	if shape < ShapeSine || shape > ShapeSaw {
		shape = ShapeSine
	}
	l.shape = shape
}

// Sample returns the current value in [-depth, +depth] and advances the
// phase by one sample. It returns 0 if depth or rate is zero.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate == 0 {
		return 0
	}
	var v float64
	switch l.shape {
	case ShapeTriangle:
		// starts at 0 rising, like the sine
		switch {
		case l.phase < 0.25:
			v = 4 * l.phase
		case l.phase < 0.75:
			v = 2 - 4*l.phase
		default:
			v = 4*l.phase - 4
		}
	case ShapeSquare:
		if l.phase < 0.5 {
			v = 1
		} else {
			v = -1
		}
	case ShapeSaw:
		v = 2*l.phase - 1
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}

// Active reports whether the LFO produces a non-zero signal.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Reset restarts the cycle.
func (l *LFO) Reset() {
	l.phase = 0
}
