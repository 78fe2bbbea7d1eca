// Package songvm plays procedural music: a small bytecode program picks which
// parts play, and a five-voice synthesizer renders them to 16-bit mono PCM.
package songvm

import (
	"github.com/cbegin/songvm/internal/drumkit"
	"github.com/cbegin/songvm/internal/program"
	"github.com/cbegin/songvm/internal/sequencer"
)

type (
	Program     = program.Program
	Part        = program.Part
	Track       = program.Track
	Note        = program.Note
	Instruction = program.Instruction
	DrumSample  = program.DrumSample
	DrumTable   = program.DrumTable
	LoadError   = program.LoadError
	WaveKind    = program.WaveKind

	Rest     = program.Rest
	Tone     = program.Tone
	Drum     = program.Drum
	DutyMod  = program.DutyMod
	Envelope = program.Envelope
	Loudness = program.Loudness
	Vibrato  = program.Vibrato
	Waveform = program.Waveform

	Nop              = program.Nop
	Play             = program.Play
	SetFlag          = program.SetFlag
	BranchIfEqual    = program.BranchIfEqual
	BranchIfNotEqual = program.BranchIfNotEqual
	Jump             = program.Jump

	Synth  = sequencer.Synth
	Params = sequencer.Params
)

const (
	MaxTracks    = program.MaxTracks
	WaveSquare   = program.WaveSquare
	WaveSine     = program.WaveSine
	WaveTriangle = program.WaveTriangle
	WaveSawtooth = program.WaveSawtooth
	WaveNoise    = program.WaveNoise
)

var (
	ErrPartIndex  = program.ErrPartIndex
	ErrTarget     = program.ErrTarget
	ErrDrumSample = program.ErrDrumSample
	ErrNoTimeLoop = program.ErrNoTimeLoop
	ErrInvalidWAV = drumkit.ErrInvalidWAV
)

// NewProgram validates parts and instructions and returns an immutable
// program that owns copies of both. drums is referenced, not copied.
func NewProgram(parts []Part, instructions []Instruction, drums DrumTable) (*Program, error) {
	return program.New(parts, instructions, drums)
}

// LoadProgram decodes a JSON or YAML program document.
func LoadProgram(data []byte, drums DrumTable) (*Program, error) {
	return program.Decode(data, drums)
}

// NewSynth returns a stopped synth; call Reset to start it.
func NewSynth(sampleRate int) *Synth {
	return sequencer.New(sampleRate, sequencer.DefaultParams())
}

func DefaultParams() Params { return sequencer.DefaultParams() }

// DefaultDrums is the built-in synthesized kit: kick, snare, hat and tom.
func DefaultDrums(sampleRate int) DrumTable { return drumkit.Synthesize(sampleRate) }

// EncodeYAML writes prog as a YAML document that LoadProgram accepts.
func EncodeYAML(prog *Program) ([]byte, error) { return program.EncodeYAML(prog) }
