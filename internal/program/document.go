package program

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the serialized form of a program as produced by the authoring
// tools. It mirrors the in-memory model one to one.
type Document struct {
	Parts        []PartDoc        `json:"parts" yaml:"parts"`
	Instructions []InstructionDoc `json:"instructions" yaml:"instructions"`
}

type PartDoc struct {
	Name   string      `json:"name,omitempty" yaml:"name,omitempty"`
	Tracks [][]NoteDoc `json:"tracks" yaml:"tracks"`
}

// NoteDoc holds any note kind; only the fields used by Kind are read.
type NoteDoc struct {
	Kind      string  `json:"kind" yaml:"kind"`
	Duration  float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Frequency float64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Sample    int     `json:"sample,omitempty" yaml:"sample,omitempty"`
	Drum      string  `json:"drum,omitempty" yaml:"drum,omitempty"`
	Depth     float64 `json:"depth,omitempty" yaml:"depth,omitempty"`
	Speed     float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
	Attack    float64 `json:"attack,omitempty" yaml:"attack,omitempty"`
	Decay     float64 `json:"decay,omitempty" yaml:"decay,omitempty"`
	Volume    float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
	Wave      string  `json:"wave,omitempty" yaml:"wave,omitempty"`
	Duty      float64 `json:"duty,omitempty" yaml:"duty,omitempty"`
}

type InstructionDoc struct {
	Op     string `json:"op" yaml:"op"`
	Part   int    `json:"part,omitempty" yaml:"part,omitempty"`
	Value  int    `json:"value,omitempty" yaml:"value,omitempty"`
	Target int    `json:"target,omitempty" yaml:"target,omitempty"`
}

var ErrTooManyTracks = fmt.Errorf("part has more than %d tracks", MaxTracks)

// Decode parses a JSON or YAML program document and builds a Program
// against drums.
func Decode(data []byte, drums DrumTable) (*Program, error) {
	var doc Document
	if errJSON := json.Unmarshal(data, &doc); errJSON != nil {
		doc = Document{}
		if errYAML := yaml.Unmarshal(data, &doc); errYAML != nil {
			return nil, fmt.Errorf("program could not be parsed as .json (%v) or .yml (%v)", errJSON, errYAML)
		}
	}
	return doc.Build(drums)
}

// Build converts the document to the in-memory model and validates it.
func (d *Document) Build(drums DrumTable) (*Program, error) {
	parts := make([]Part, len(d.Parts))
	for pi, pd := range d.Parts {
		if len(pd.Tracks) > MaxTracks {
			return nil, fmt.Errorf("part %d (%s): %w", pi, pd.Name, ErrTooManyTracks)
		}
		parts[pi].Name = pd.Name
		for ti, td := range pd.Tracks {
			track := make(Track, 0, len(td))
			for ni, nd := range td {
				n, err := nd.note(drums)
				if err != nil {
					return nil, fmt.Errorf("part %d track %d note %d: %w", pi, ti, ni, err)
				}
				track = append(track, n)
			}
			parts[pi].Tracks[ti] = track
		}
	}
	instructions := make([]Instruction, len(d.Instructions))
	for pc, id := range d.Instructions {
		ins, err := id.instruction()
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", pc, err)
		}
		instructions[pc] = ins
	}
	return New(parts, instructions, drums)
}

func (nd NoteDoc) note(drums DrumTable) (Note, error) {
	switch strings.ToLower(nd.Kind) {
	case "rest":
		return Rest{Duration: nd.Duration}, nil
	case "tone":
		return Tone{Duration: nd.Duration, Frequency: nd.Frequency}, nil
	case "drum":
		sample := nd.Sample
		if nd.Drum != "" {
			i, ok := drums.Lookup(nd.Drum)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrDrumSample, nd.Drum)
			}
			sample = i
		}
		return Drum{Duration: nd.Duration, Sample: sample}, nil
	case "dutymod":
		return DutyMod{Depth: nd.Depth, Speed: nd.Speed}, nil
	case "envelope":
		return Envelope{Attack: nd.Attack, Decay: nd.Decay}, nil
	case "loudness":
		return Loudness{Volume: nd.Volume}, nil
	case "vibrato":
		return Vibrato{Depth: nd.Depth, Speed: nd.Speed}, nil
	case "waveform":
		kind, err := ParseWaveKind(nd.Wave)
		if err != nil {
			return nil, err
		}
		return Waveform{Kind: kind, Duty: nd.Duty}, nil
	default:
		return nil, fmt.Errorf("unknown note kind %q", nd.Kind)
	}
}

func (id InstructionDoc) instruction() (Instruction, error) {
	switch strings.ToLower(id.Op) {
	case "nop":
		return Nop{}, nil
	case "play":
		return Play{Part: id.Part}, nil
	case "setflag", "set":
		return SetFlag{Value: id.Value}, nil
	case "beq", "branchifequal":
		return BranchIfEqual{Value: id.Value, Target: id.Target}, nil
	case "bne", "branchifnotequal":
		return BranchIfNotEqual{Value: id.Value, Target: id.Target}, nil
	case "jump", "jmp":
		return Jump{Target: id.Target}, nil
	default:
		return nil, fmt.Errorf("unknown instruction %q", id.Op)
	}
}

// ParseWaveKind maps a waveform name to its kind. The empty name is square.
func ParseWaveKind(name string) (WaveKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "square", "pulse":
		return WaveSquare, nil
	case "sine":
		return WaveSine, nil
	case "triangle":
		return WaveTriangle, nil
	case "saw", "sawtooth":
		return WaveSawtooth, nil
	case "noise":
		return WaveNoise, nil
	default:
		return 0, fmt.Errorf("unknown waveform %q", name)
	}
}

// NewDocument converts p back to its serialized form. Drum notes are written
// by name when the drum table names the sample.
func NewDocument(p *Program) *Document {
	doc := &Document{
		Parts:        make([]PartDoc, len(p.parts)),
		Instructions: make([]InstructionDoc, len(p.instructions)),
	}
	for pi := range p.parts {
		part := &p.parts[pi]
		last := -1
		for ti := range part.Tracks {
			if len(part.Tracks[ti]) > 0 {
				last = ti
			}
		}
		pd := PartDoc{Name: part.Name, Tracks: make([][]NoteDoc, last+1)}
		for ti := 0; ti <= last; ti++ {
			for _, n := range part.Tracks[ti] {
				pd.Tracks[ti] = append(pd.Tracks[ti], p.noteDoc(n))
			}
		}
		doc.Parts[pi] = pd
	}
	for pc, ins := range p.instructions {
		doc.Instructions[pc] = instructionDoc(ins)
	}
	return doc
}

func (p *Program) noteDoc(n Note) NoteDoc {
	switch v := n.(type) {
	case Rest:
		return NoteDoc{Kind: "rest", Duration: v.Duration}
	case Tone:
		return NoteDoc{Kind: "tone", Duration: v.Duration, Frequency: v.Frequency}
	case Drum:
		if name := p.drums[v.Sample].Name; name != "" {
			return NoteDoc{Kind: "drum", Duration: v.Duration, Drum: name}
		}
		return NoteDoc{Kind: "drum", Duration: v.Duration, Sample: v.Sample}
	case DutyMod:
		return NoteDoc{Kind: "dutymod", Depth: v.Depth, Speed: v.Speed}
	case Envelope:
		return NoteDoc{Kind: "envelope", Attack: v.Attack, Decay: v.Decay}
	case Loudness:
		return NoteDoc{Kind: "loudness", Volume: v.Volume}
	case Vibrato:
		return NoteDoc{Kind: "vibrato", Depth: v.Depth, Speed: v.Speed}
	case Waveform:
		return NoteDoc{Kind: "waveform", Wave: v.Kind.String(), Duty: v.Duty}
	}
	return NoteDoc{}
}

func instructionDoc(ins Instruction) InstructionDoc {
	switch op := ins.(type) {
	case Play:
		return InstructionDoc{Op: "play", Part: op.Part}
	case SetFlag:
		return InstructionDoc{Op: "setflag", Value: op.Value}
	case BranchIfEqual:
		return InstructionDoc{Op: "beq", Value: op.Value, Target: op.Target}
	case BranchIfNotEqual:
		return InstructionDoc{Op: "bne", Value: op.Value, Target: op.Target}
	case Jump:
		return InstructionDoc{Op: "jump", Target: op.Target}
	default:
		return InstructionDoc{Op: "nop"}
	}
}

// EncodeYAML writes p back out as a YAML document.
func EncodeYAML(p *Program) ([]byte, error) {
	out, err := yaml.Marshal(NewDocument(p))
	if err != nil {
		return nil, fmt.Errorf("program: encode yaml: %w", err)
	}
	return out, nil
}
