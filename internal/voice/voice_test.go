package voice

import (
	"math"
	"testing"

	"github.com/cbegin/songvm/internal/program"
)

const sr = 8000

func newVoice(track program.Track) *Voice {
	v := &Voice{}
	v.Init(sr, DefaultParams(), 0)
	v.Bind(track, nil)
	return v
}

func TestIdleVoiceLeavesBufferUntouched(t *testing.T) {
	v := newVoice(nil)
	buf := []float32{1, 2, 3}
	if v.Render(buf, 0) {
		t.Fatalf("idle voice reported output")
	}
	if buf[0] != 1 || buf[2] != 3 {
		t.Fatalf("idle voice wrote to buffer: %v", buf)
	}
}

func TestModifiersApplyWithoutConsumingTime(t *testing.T) {
	v := newVoice(program.Track{
		program.Loudness{Volume: 0.5},
		program.Waveform{Kind: program.WaveSawtooth},
		program.Tone{Duration: 0.01, Frequency: 100},
	})
	if v.state != stateTone || v.start != 0 {
		t.Fatalf("tone should start at t=0, state=%v start=%f", v.state, v.start)
	}
	if v.loudness != 0.5 || v.wave != program.WaveSawtooth {
		t.Fatalf("modifiers not applied: loudness=%f wave=%v", v.loudness, v.wave)
	}
	buf := make([]float32, 1)
	v.Render(buf, 0)
	want := float32(-1 * 0.5 * DefaultParams().VoiceGain * fullScale)
	if math.Abs(float64(buf[0]-want)) > 0.01 {
		t.Fatalf("first sample = %f, want %f", buf[0], want)
	}
}

func TestModifiersPersistAcrossBind(t *testing.T) {
	v := newVoice(program.Track{program.Loudness{Volume: 0.3}, program.Rest{Duration: 0.01}})
	v.Bind(program.Track{program.Tone{Duration: 0.01, Frequency: 100}}, nil)
	if v.loudness != 0.3 {
		t.Fatalf("loudness reset by bind: %f", v.loudness)
	}
	v.Init(sr, DefaultParams(), 0)
	if v.loudness != 1 {
		t.Fatalf("init should restore default loudness, got %f", v.loudness)
	}
}

func TestTrackExhaustionGoesIdle(t *testing.T) {
	v := newVoice(program.Track{program.Tone{Duration: 0.001, Frequency: 1000}})
	buf := make([]float32, 16)
	v.Render(buf, 0)
	// 0.001 s at 8 kHz is 8 samples
	for i := 8; i < 16; i++ {
		if buf[i] != 0 {
			t.Fatalf("sample %d after track end = %f", i, buf[i])
		}
	}
	if v.Active() {
		t.Fatalf("voice still active after its track ended")
	}
}

func TestRestKeepsOscillatorPhase(t *testing.T) {
	v := newVoice(program.Track{
		program.Tone{Duration: 0.001, Frequency: 300},
		program.Rest{Duration: 0.001},
	})
	buf := make([]float32, 12)
	v.Render(buf[:8], 0)
	phase := v.phase
	v.Render(buf[8:], 8)
	if v.state != stateRest {
		t.Fatalf("expected rest, state=%v", v.state)
	}
	if v.phase != phase {
		t.Fatalf("rest changed phase: %f -> %f", phase, v.phase)
	}
	for _, s := range buf[8:] {
		if s != 0 {
			t.Fatalf("rest produced %f", s)
		}
	}
}

func TestEnvelopeAttackAndDecay(t *testing.T) {
	v := newVoice(program.Track{
		program.Waveform{Kind: program.WaveSquare, Duty: 0.99},
		program.Envelope{Attack: 0.01, Decay: 0.5},
		program.Tone{Duration: 0.1, Frequency: 1},
	})
	buf := make([]float32, 800)
	v.Render(buf, 0)
	peak := DefaultParams().VoiceGain * fullScale
	// 10 ms attack, sustain, then a fade over the last 50 ms
	checks := []struct {
		i    int
		gain float64
	}{
		{0, 0},
		{40, 0.5},
		{200, 1},
		{600, 0.5},
		{799, 0.0025},
	}
	for _, c := range checks {
		got := float64(buf[c.i]) / peak
		if math.Abs(got-c.gain) > 0.01 {
			t.Errorf("sample %d gain = %f, want %f", c.i, got, c.gain)
		}
	}
}

func TestNoiseIsDeterministicPerSlot(t *testing.T) {
	track := program.Track{program.Waveform{Kind: program.WaveNoise}, program.Tone{Duration: 0.1, Frequency: 2000}}
	render := func(slot int) []float32 {
		v := &Voice{}
		v.Init(sr, DefaultParams(), slot)
		v.Bind(track, nil)
		buf := make([]float32, 800)
		v.Render(buf, 0)
		return buf
	}
	a, b, c := render(0), render(0), render(1)
	same := true
	flips := 0
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot 0 renders differ at %d", i)
		}
		if a[i] != c[i] {
			same = false
		}
		if i > 0 && a[i] != a[i-1] {
			flips++
		}
	}
	if same {
		t.Fatalf("different slots produced identical noise")
	}
	// the register only moves on cycle boundaries: 2 kHz at 8 kHz is every 4 samples
	if flips == 0 || flips > 200 {
		t.Fatalf("unexpected number of noise steps: %d", flips)
	}
}

func TestVibratoBendsPitch(t *testing.T) {
	v := newVoice(program.Track{
		program.Vibrato{Depth: 12, Speed: 1},
		program.Tone{Duration: 1, Frequency: 100},
	})
	buf := make([]float32, 2000)
	v.Render(buf, 0)
	if v.freq != 100 {
		t.Fatalf("base frequency modified: %f", v.freq)
	}
	// an unmodulated 100 Hz tone would be back at phase 0 here
	plain := math.Mod(2000*100.0/sr, 1)
	if math.Abs(v.phase-plain) < 1e-6 {
		t.Fatalf("vibrato had no effect on phase")
	}
}

func TestDrumUsesOwnSampleRate(t *testing.T) {
	drums := program.DrumTable{{Rate: sr / 2, Data: []int16{10, 20, 30}}}
	v := &Voice{}
	v.Init(sr, DefaultParams(), 0)
	v.Bind(program.Track{program.Drum{Duration: 0.01, Sample: 0}}, drums)
	buf := make([]float32, 8)
	v.Render(buf, 0)
	want := []float32{10, 10, 20, 20, 30, 30, 0, 0}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("sample %d = %f, want %f", i, buf[i], want[i])
		}
	}
}

// 125 Hz at 8 kHz steps the phase by exactly 1/64, so one cycle is 64 samples.
const cycle = 64

func highCount(buf []float32) int {
	n := 0
	for _, s := range buf {
		if s > 0 {
			n++
		}
	}
	return n
}

func renderWith(params Params, track program.Track, n int) []float32 {
	v := &Voice{}
	v.Init(sr, params, 0)
	v.Bind(track, nil)
	buf := make([]float32, n)
	v.Render(buf, 0)
	return buf
}

func TestDutyModSweepsPulseWidth(t *testing.T) {
	buf := renderWith(DefaultParams(), program.Track{
		program.Waveform{Kind: program.WaveSquare, Duty: 0.5},
		program.DutyMod{Depth: 0.3, Speed: 1},
		program.Tone{Duration: 1, Frequency: 125},
	}, sr)
	// the 1 Hz modulation peaks at 0.25 s and bottoms out at 0.75 s
	if got := highCount(buf[31*cycle : 32*cycle]); got != 52 {
		t.Fatalf("high samples near the peak = %d, want 52 (duty ~0.8)", got)
	}
	if got := highCount(buf[93*cycle : 94*cycle]); got != 13 {
		t.Fatalf("high samples near the trough = %d, want 13 (duty ~0.2)", got)
	}
}

func TestDutyModIsClampedToParams(t *testing.T) {
	params := DefaultParams()
	params.MaxDuty = 0.9
	buf := renderWith(params, program.Track{
		program.DutyMod{Depth: 2, Speed: 1},
		program.Tone{Duration: 1, Frequency: 125},
	}, sr)
	if got := highCount(buf[31*cycle : 32*cycle]); got != 58 {
		t.Fatalf("high samples at max duty = %d, want 58", got)
	}
	if got := highCount(buf[93*cycle : 94*cycle]); got != 1 {
		t.Fatalf("high samples at min duty = %d, want 1", got)
	}
}

func TestWaveformDutyIsClamped(t *testing.T) {
	params := DefaultParams()
	params.MaxDuty = 0.9
	cases := []struct {
		duty float64
		want int
	}{
		{0, 32}, // unset: params.Duty
		{0.25, 16},
		{1.5, 58},
		{-1, 1},
	}
	for _, c := range cases {
		buf := renderWith(params, program.Track{
			program.Waveform{Kind: program.WaveSquare, Duty: c.duty},
			program.Tone{Duration: 1, Frequency: 125},
		}, cycle)
		if got := highCount(buf); got != c.want {
			t.Errorf("duty %v: %d high samples, want %d", c.duty, got, c.want)
		}
	}
}

func TestSineAndTriangleShapes(t *testing.T) {
	peak := DefaultParams().VoiceGain * fullScale
	cases := []struct {
		wave program.WaveKind
		want [4]float64 // at phase 0, 1/4, 1/2, 3/4
	}{
		{program.WaveSine, [4]float64{0, peak, 0, -peak}},
		{program.WaveTriangle, [4]float64{peak, 0, -peak, 0}},
		{program.WaveSawtooth, [4]float64{-peak, -peak / 2, 0, peak / 2}},
	}
	for _, c := range cases {
		buf := renderWith(DefaultParams(), program.Track{
			program.Waveform{Kind: c.wave},
			program.Tone{Duration: 1, Frequency: 125},
		}, cycle)
		for q, want := range c.want {
			if got := float64(buf[q*cycle/4]); math.Abs(got-want) > 0.5 {
				t.Errorf("%v at quarter %d = %f, want %f", c.wave, q, got, want)
			}
		}
	}
}

func TestFinishAppliesTrailingModifiers(t *testing.T) {
	v := newVoice(program.Track{
		program.Tone{Duration: 0.001, Frequency: 1000},
		program.Loudness{Volume: 0.4},
		program.Waveform{Kind: program.WaveSine},
	})
	buf := make([]float32, 8)
	v.Render(buf, 0)
	if v.loudness != 1 {
		t.Fatalf("trailing modifier applied before the tone ended")
	}
	v.Finish()
	if v.loudness != 0.4 || v.wave != program.WaveSine {
		t.Fatalf("trailing modifiers not applied: loudness=%f wave=%v", v.loudness, v.wave)
	}
	if v.Active() {
		t.Fatalf("voice still active after Finish")
	}
}
