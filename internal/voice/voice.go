package voice

import (
	"math"

	"github.com/cbegin/songvm/internal/lfo"
	"github.com/cbegin/songvm/internal/program"
)

const (
	twoPi     = math.Pi * 2
	fullScale = 32767.0
)

type Params struct {
	VoiceGain    float64          // tone amplitude at loudness 1, as a fraction of int16 full scale
	Wave         program.WaveKind // waveform before any Waveform note
	Duty         float64          // square duty before any Waveform note
	Loudness     float64          // loudness before any Loudness note
	MinDuty      float64
	MaxDuty      float64
	VibratoShape lfo.Shape
	DutyModShape lfo.Shape
}

func DefaultParams() Params {
	return Params{
		VoiceGain:    0.25,
		Wave:         program.WaveSquare,
		Duty:         0.5,
		Loudness:     1,
		MinDuty:      0.01,
		MaxDuty:      0.99,
		VibratoShape: lfo.ShapeSine,
		DutyModShape: lfo.ShapeSine,
	}
}

type state int

const (
	stateIdle state = iota
	stateRest
	stateTone
	stateDrum
)

// Voice plays one track of the current part. Note times are measured from
// the start of the part, so boundaries land on the same sample regardless of
// how rendering is split into blocks.
type Voice struct {
	sampleRate float64
	params     Params
	seed       uint16

	notes   program.Track
	drums   program.DrumTable
	index   int
	started bool
	start   float64
	end     float64
	state   state

	freq     float64
	drum     []int16
	drumRate float64

	wave     program.WaveKind
	duty     float64
	loudness float64
	attack   float64
	decay    float64
	vibrato  lfo.LFO
	dutyMod  lfo.LFO
	phase    float64
	lfsr     uint16
}

// Init puts the voice in its power-on state. slot selects the noise seed so
// that voices sharing a waveform do not produce identical noise.
func (v *Voice) Init(sampleRate int, params Params, slot int) {
	if params.MaxDuty <= params.MinDuty {
		params.MinDuty, params.MaxDuty = 0.01, 0.99
	}
	*v = Voice{
		sampleRate: float64(sampleRate),
		params:     params,
		seed:       uint16(0xACE1 + slot*97),
		wave:       params.Wave,
		duty:       params.Duty,
		loudness:   params.Loudness,
	}
	v.lfsr = v.seed
	if v.lfsr == 0 {
		v.lfsr = 0xACE1
	}
}

// Bind starts playing track from its first note. Synthesis parameters set by
// earlier modifiers are kept. Leading modifiers are applied immediately.
func (v *Voice) Bind(track program.Track, drums program.DrumTable) {
	v.index = 0
	v.started = false
	v.start, v.end = 0, 0
	v.state = stateIdle
	v.drums = drums
	if len(track) == 0 {
		v.notes = nil
		return
	}
	v.notes = track
	v.advance(0)
}

// Clear silences the voice and unbinds its track.
func (v *Voice) Clear() {
	v.notes = nil
	v.drums = nil
	v.drum = nil
	v.state = stateIdle
}

// Finish ends the part for this voice. Modifiers left after the last timed
// note are applied so that they carry into the next part.
func (v *Voice) Finish() {
	if v.notes == nil {
		return
	}
	i := v.index
	if v.started {
		i++
	}
	for ; i < len(v.notes); i++ {
		if n := v.notes[i]; program.IsModifier(n) {
			v.apply(n)
		}
	}
	v.Clear()
}

// Active reports whether the voice still has notes to play in this part.
func (v *Voice) Active() bool { return v.notes != nil }

// Render writes samples pos, pos+1, ... of the current part into dst. It
// returns false without touching dst when the voice has nothing to play.
func (v *Voice) Render(dst []float32, pos int) bool {
	if v.notes == nil {
		return false
	}
	for i := range dst {
		t := float64(pos+i) / v.sampleRate
		v.advance(t)
		dst[i] = float32(v.sample(t))
	}
	return true
}

// advance moves to the note sounding at time t, applying modifiers on the way.
func (v *Voice) advance(t float64) {
	for v.notes != nil {
		if v.started {
			if t < v.end {
				return
			}
			v.index++
			v.started = false
		}
		if v.index >= len(v.notes) {
			v.notes = nil
			v.drum = nil
			v.state = stateIdle
			return
		}
		n := v.notes[v.index]
		if program.IsModifier(n) {
			v.apply(n)
			v.index++
			continue
		}
		v.trigger(n)
	}
}

func (v *Voice) apply(n program.Note) {
	switch m := n.(type) {
	case program.DutyMod:
		v.dutyMod.Set(m.Depth, m.Speed, v.params.DutyModShape)
	case program.Envelope:
		v.attack = math.Max(m.Attack, 0)
		v.decay = clamp(m.Decay, 0, 1)
	case program.Loudness:
		v.loudness = m.Volume
	case program.Vibrato:
		v.vibrato.Set(m.Depth, m.Speed, v.params.VibratoShape)
	case program.Waveform:
		v.wave = m.Kind
		v.duty = v.params.Duty
		if m.Duty != 0 && !math.IsNaN(m.Duty) {
			// zero means unset
			v.duty = clamp(m.Duty, v.params.MinDuty, v.params.MaxDuty)
		}
	}
}

func (v *Voice) trigger(n program.Note) {
	v.start = v.end
	v.end = v.start + n.Length()
	v.started = true
	switch note := n.(type) {
	case program.Rest:
		v.state = stateRest
	case program.Tone:
		v.state = stateTone
		v.freq = note.Frequency
		v.phase = 0
		v.vibrato.Reset()
		v.dutyMod.Reset()
	case program.Drum:
		v.state = stateDrum
		ds := &v.drums[note.Sample]
		v.drum = ds.Data
		v.drumRate = float64(ds.Rate)
		if v.drumRate <= 0 {
			v.drumRate = v.sampleRate
		}
	}
}

func (v *Voice) sample(t float64) float64 {
	switch v.state {
	case stateTone:
		return v.tone(t)
	case stateDrum:
		i := int((t-v.start)*v.drumRate + 1e-6)
		if i >= 0 && i < len(v.drum) {
			return float64(v.drum[i])
		}
	}
	return 0
}

func (v *Voice) tone(t float64) float64 {
	freq := v.freq
	if vib := v.vibrato.Sample(v.sampleRate); vib != 0 {
		freq *= math.Exp2(vib / 12)
	}
	duty := v.duty
	if v.dutyMod.Active() {
		duty = clamp(duty+v.dutyMod.Sample(v.sampleRate), v.params.MinDuty, v.params.MaxDuty)
	}

	var out float64
	switch v.wave {
	case program.WaveSquare:
		out = -1
		if v.phase < duty {
			out = 1
		}
	case program.WaveSine:
		out = math.Sin(twoPi * v.phase)
	case program.WaveTriangle:
		out = 2*math.Abs(2*v.phase-1) - 1
	case program.WaveSawtooth:
		out = 2*v.phase - 1
	case program.WaveNoise:
		out = -1
		if v.lfsr&1 == 1 {
			out = 1
		}
	}

	v.phase += freq / v.sampleRate
	if v.phase >= 1 {
		v.phase -= math.Floor(v.phase)
		if v.wave == program.WaveNoise {
			v.stepNoise()
		}
	}
	return out * v.envelope(t-v.start) * v.loudness * v.params.VoiceGain * fullScale
}

// stepNoise clocks the 16-bit shift register once.
func (v *Voice) stepNoise() {
	bit := (v.lfsr ^ (v.lfsr >> 1)) & 1
	v.lfsr = (v.lfsr >> 1) | (bit << 15)
}

// envelope is a linear attack from the note start and a linear fade over the
// last decay fraction of the note.
func (v *Voice) envelope(elapsed float64) float64 {
	g := 1.0
	if v.attack > 0 && elapsed < v.attack {
		g = elapsed / v.attack
	}
	if v.decay > 0 {
		dur := v.end - v.start
		fade := dur * v.decay
		if left := dur - elapsed; left < fade {
			g = math.Min(g, left/fade)
		}
	}
	return clamp(g, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
