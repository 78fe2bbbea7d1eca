package program

// MaxTracks is the number of parallel tracks (and synth voices) per part.
const MaxTracks = 5

// WaveKind selects the oscillator used for tones.
type WaveKind int

const (
	WaveSquare WaveKind = iota
	WaveSine
	WaveTriangle
	WaveSawtooth
	WaveNoise
)

func (k WaveKind) String() string {
	switch k {
	case WaveSquare:
		return "square"
	case WaveSine:
		return "sine"
	case WaveTriangle:
		return "triangle"
	case WaveSawtooth:
		return "sawtooth"
	case WaveNoise:
		return "noise"
	default:
		return "unknown"
	}
}

// Note is one event of a track. Timed notes (Rest, Tone, Drum) advance
// musical time; modifiers change the voice's synthesis parameters and take no
// time at all.
type Note interface {
	// Length is the time the note occupies in seconds. Modifiers return 0.
	Length() float64
	isNote()
}

type (
	Rest struct {
		Duration float64
	}

	Tone struct {
		Duration  float64
		Frequency float64
	}

	// Drum plays entry Sample of the program's drum table verbatim.
	Drum struct {
		Duration float64
		Sample   int
	}

	// DutyMod sweeps the square duty cycle by ±Depth at Speed Hz.
	DutyMod struct {
		Depth float64
		Speed float64
	}

	// Envelope ramps tones in over Attack seconds and out over the trailing
	// Decay fraction of each note.
	Envelope struct {
		Attack float64
		Decay  float64
	}

	Loudness struct {
		Volume float64
	}

	// Vibrato detunes tones by ±Depth semitones at Speed Hz.
	Vibrato struct {
		Depth float64
		Speed float64
	}

	Waveform struct {
		Kind WaveKind
		Duty float64
	}
)

func (n Rest) Length() float64   { return n.Duration }
func (n Tone) Length() float64   { return n.Duration }
func (n Drum) Length() float64   { return n.Duration }
func (DutyMod) Length() float64  { return 0 }
func (Envelope) Length() float64 { return 0 }
func (Loudness) Length() float64 { return 0 }
func (Vibrato) Length() float64  { return 0 }
func (Waveform) Length() float64 { return 0 }

func (Rest) isNote()     {}
func (Tone) isNote()     {}
func (Drum) isNote()     {}
func (DutyMod) isNote()  {}
func (Envelope) isNote() {}
func (Loudness) isNote() {}
func (Vibrato) isNote()  {}
func (Waveform) isNote() {}

// IsModifier reports whether n changes synthesis parameters instead of
// occupying time.
func IsModifier(n Note) bool {
	switch n.(type) {
	case Rest, Tone, Drum:
		return false
	default:
		return true
	}
}

// Track is an ordered sequence of notes for a single voice.
type Track []Note

// Length sums the durations of the timed notes.
func (t Track) Length() float64 {
	var total float64
	for _, n := range t {
		if d := n.Length(); d > 0 {
			total += d
		}
	}
	return total
}

// Part is a bundle of tracks played together. Empty slots are silent.
type Part struct {
	Name   string
	Tracks [MaxTracks]Track
}

// Length is the length of the longest track.
func (p *Part) Length() float64 {
	var longest float64
	for _, tr := range p.Tracks {
		if l := tr.Length(); l > longest {
			longest = l
		}
	}
	return longest
}

// Instruction is one step of the control program.
type Instruction interface {
	isInstruction()
}

type (
	Nop struct{}

	Play struct {
		Part int
	}

	SetFlag struct {
		Value int
	}

	BranchIfEqual struct {
		Value  int
		Target int
	}

	BranchIfNotEqual struct {
		Value  int
		Target int
	}

	Jump struct {
		Target int
	}
)

func (Nop) isInstruction()              {}
func (Play) isInstruction()             {}
func (SetFlag) isInstruction()          {}
func (BranchIfEqual) isInstruction()    {}
func (BranchIfNotEqual) isInstruction() {}
func (Jump) isInstruction()             {}

// DrumSample is precomputed percussive PCM, mono, at Rate samples per second.
type DrumSample struct {
	Name string
	Rate int
	Data []int16
}

// DrumTable is owned by the caller and shared read-only by programs.
type DrumTable []DrumSample

// Lookup returns the index of the sample called name.
func (t DrumTable) Lookup(name string) (int, bool) {
	for i := range t {
		if t[i].Name == name {
			return i, true
		}
	}
	return -1, false
}
