package sequencer

import (
	"math"

	"github.com/viterin/vek/vek32"

	"github.com/cbegin/songvm/internal/program"
	"github.com/cbegin/songvm/internal/voice"
)

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventPartStarted EventKind = iota
	EventPlaybackEnded
)

// Event is reported through Options.OnEvent. Part is the index of the part
// that started, or -1.
type Event struct {
	Kind EventKind
	Part int
}

type Params struct {
	Voice voice.Params
	// BlockSize is the number of samples rendered per voice pass.
	BlockSize int
}

func DefaultParams() Params {
	return Params{
		Voice:     voice.DefaultParams(),
		BlockSize: 256,
	}
}

type Options struct {
	// OnEvent runs on the rendering goroutine; keep it brief and
	// non-blocking.
	OnEvent func(Event)
}

// Synth interprets a Program's control instructions and renders the selected
// parts with one voice per track slot. It is not safe for concurrent use:
// Reset, SetFlag and Render must be serialized by the caller.
type Synth struct {
	sampleRate int
	params     Params
	onEvent    func(Event)

	program     *program.Program
	flag        int
	pc          int
	part        int
	partPos     int // samples rendered in the current part
	partSamples int
	stopped     bool

	voices  [program.MaxTracks]voice.Voice
	mix     []float32
	scratch []float32
}

func New(sampleRate int, params Params) *Synth {
	return NewWithOptions(sampleRate, params, Options{})
}

func NewWithOptions(sampleRate int, params Params, opts Options) *Synth {
	if params.BlockSize <= 0 {
		params.BlockSize = 256
	}
	s := &Synth{
		sampleRate: sampleRate,
		params:     params,
		onEvent:    opts.OnEvent,
		part:       -1,
		stopped:    true,
		mix:        make([]float32, params.BlockSize),
		scratch:    make([]float32, params.BlockSize),
	}
	s.initVoices()
	return s
}

func (s *Synth) initVoices() {
	for i := range s.voices {
		s.voices[i].Init(s.sampleRate, s.params.Voice, i)
	}
}

// Reset binds prog and starts it from its first instruction with the given
// flag. The instructions up to the first Play run immediately. A nil program
// leaves the synth silent.
func (s *Synth) Reset(prog *program.Program, initialFlag int) {
	s.program = prog
	s.flag = initialFlag
	s.pc = 0
	s.part = -1
	s.partPos = 0
	s.partSamples = 0
	s.stopped = false
	s.initVoices()
	if prog == nil {
		s.stopped = true
		return
	}
	s.step()
}

// SetFlag changes the flag register. Branches see the new value the next
// time the sequencer picks a part; the playing part is not interrupted.
func (s *Synth) SetFlag(v int) { s.flag = v }

func (s *Synth) Flag() int { return s.flag }

// PC is the index of the next instruction to execute.
func (s *Synth) PC() int { return s.pc }

// CurrentPart is the index of the playing part, or -1 when none is bound.
func (s *Synth) CurrentPart() int { return s.part }

// TimeIndex is the elapsed time in seconds within the playing part.
func (s *Synth) TimeIndex() float64 {
	return float64(s.partPos) / float64(s.sampleRate)
}

// Stopped reports whether playback has halted for good.
func (s *Synth) Stopped() bool { return s.stopped }

func (s *Synth) SampleRate() int { return s.sampleRate }

// step runs instructions until a Play binds a part with a non-zero length or
// the program halts.
func (s *Synth) step() {
	prog := s.program
	limit := prog.StepLimit()
	for n := 0; ; n++ {
		if n > limit || s.pc < 0 || s.pc >= prog.NumInstructions() {
			s.halt()
			return
		}
		switch op := prog.Instruction(s.pc).(type) {
		case program.Play:
			s.pc++
			if s.play(op.Part) {
				return
			}
		case program.SetFlag:
			s.flag = op.Value
			s.pc++
		case program.BranchIfEqual:
			if s.flag == op.Value {
				s.pc = op.Target
			} else {
				s.pc++
			}
		case program.BranchIfNotEqual:
			if s.flag != op.Value {
				s.pc = op.Target
			} else {
				s.pc++
			}
		case program.Jump:
			s.pc = op.Target
		default:
			s.pc++
		}
	}
}

// play binds part i to the voices. It reports false when the part has no
// playing time, in which case interpretation continues.
func (s *Synth) play(i int) bool {
	part := s.program.Part(i)
	drums := s.program.Drums()
	for v := range s.voices {
		s.voices[v].Finish()
		s.voices[v].Bind(part.Tracks[v], drums)
	}
	s.part = i
	s.partPos = 0
	s.partSamples = int(math.Ceil(s.program.PartLength(i)*float64(s.sampleRate) - 1e-6))
	if s.onEvent != nil {
		s.onEvent(Event{Kind: EventPartStarted, Part: i})
	}
	return s.partSamples > 0
}

func (s *Synth) halt() {
	s.stopped = true
	s.part = -1
	for i := range s.voices {
		s.voices[i].Clear()
	}
	if s.onEvent != nil {
		s.onEvent(Event{Kind: EventPlaybackEnded, Part: -1})
	}
}

// Render fills dst with mono PCM. Once playback has stopped the remaining
// samples are zero. Consecutive calls continue the signal seamlessly.
func (s *Synth) Render(dst []int16) {
	for len(dst) > 0 {
		if s.stopped {
			clear(dst)
			return
		}
		n := min(len(dst), len(s.mix), s.partSamples-s.partPos)
		mix := s.mix[:n]
		clear(mix)
		for i := range s.voices {
			buf := s.scratch[:n]
			if s.voices[i].Render(buf, s.partPos) {
				vek32.Add_Inplace(mix, buf)
			}
		}
		for i, x := range mix {
			dst[i] = toInt16(x)
		}
		dst = dst[n:]
		s.partPos += n
		if s.partPos >= s.partSamples {
			s.step()
		}
	}
}

func toInt16(x float32) int16 {
	switch {
	case math.IsNaN(float64(x)):
		return 0
	case x >= math.MaxInt16:
		return math.MaxInt16
	case x <= math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(float64(x)))
}
