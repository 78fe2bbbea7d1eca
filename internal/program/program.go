package program

import (
	"errors"
	"fmt"
	"math"
	"strings"

	clone "github.com/huandu/go-clone/generic"
)

var (
	ErrPartIndex   = errors.New("play references a part that does not exist")
	ErrTarget      = errors.New("jump target out of range")
	ErrDrumSample  = errors.New("drum note references a missing sample")
	ErrNoTimeLoop  = errors.New("instructions loop forever without playing a part")
	ErrDuration    = errors.New("note duration must be a finite, non-negative number")
	ErrNilNote     = errors.New("nil note")
	ErrNilOp       = errors.New("nil instruction")
	errUnknownNote = errors.New("unknown note type")
)

// LoadError reports the first failed check of New. Locations that do not
// apply are -1.
type LoadError struct {
	Err         error
	Part        int
	Track       int
	Note        int
	Instruction int
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("program: ")
	if e.Instruction >= 0 {
		fmt.Fprintf(&b, "instruction %d: ", e.Instruction)
	}
	if e.Part >= 0 {
		fmt.Fprintf(&b, "part %d track %d note %d: ", e.Part, e.Track, e.Note)
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

func instructionError(err error, pc int) *LoadError {
	return &LoadError{Err: err, Part: -1, Track: -1, Note: -1, Instruction: pc}
}

func noteError(err error, part, track, note int) *LoadError {
	return &LoadError{Err: err, Part: part, Track: track, Note: note, Instruction: -1}
}

// Program is a validated, immutable song: parts plus the control program that
// picks which part plays next. It is safe to share between synths.
type Program struct {
	parts        []Part
	instructions []Instruction
	drums        DrumTable
	partLengths  []float64
	stepLimit    int
}

// New validates parts and instructions against each other and the drum table
// and returns a Program owning copies of them. The drum table is referenced,
// not copied, and must not be modified while the Program is in use.
func New(parts []Part, instructions []Instruction, drums DrumTable) (*Program, error) {
	for pi := range parts {
		for ti, tr := range parts[pi].Tracks {
			for ni, n := range tr {
				if err := checkNote(n, drums); err != nil {
					return nil, noteError(err, pi, ti, ni)
				}
			}
		}
	}
	flags := map[int]struct{}{}
	for pc, ins := range instructions {
		switch op := ins.(type) {
		case nil:
			return nil, instructionError(ErrNilOp, pc)
		case Play:
			if op.Part < 0 || op.Part >= len(parts) {
				return nil, instructionError(fmt.Errorf("%w: %d of %d", ErrPartIndex, op.Part, len(parts)), pc)
			}
		case BranchIfEqual:
			if !inRange(op.Target, len(instructions)) {
				return nil, instructionError(fmt.Errorf("%w: %d", ErrTarget, op.Target), pc)
			}
		case BranchIfNotEqual:
			if !inRange(op.Target, len(instructions)) {
				return nil, instructionError(fmt.Errorf("%w: %d", ErrTarget, op.Target), pc)
			}
		case Jump:
			if !inRange(op.Target, len(instructions)) {
				return nil, instructionError(fmt.Errorf("%w: %d", ErrTarget, op.Target), pc)
			}
		case SetFlag:
			flags[op.Value] = struct{}{}
		}
	}
	if pc, ok := findNoTimeLoop(instructions); ok {
		return nil, instructionError(ErrNoTimeLoop, pc)
	}

	p := &Program{
		parts:        clone.Clone(parts),
		instructions: clone.Clone(instructions),
		drums:        drums,
		partLengths:  make([]float64, len(parts)),
	}
	for i := range p.parts {
		p.partLengths[i] = p.parts[i].Length()
	}
	// Every (pc, flag) state is visited at most once before the sequencer
	// must bind a part; the initial flag adds one more possible value.
	p.stepLimit = (len(instructions) + 1) * (len(flags) + 1)
	return p, nil
}

func inRange(i, n int) bool { return i >= 0 && i < n }

func checkNote(n Note, drums DrumTable) error {
	switch v := n.(type) {
	case nil:
		return ErrNilNote
	case Drum:
		if !inRange(v.Sample, len(drums)) {
			return fmt.Errorf("%w: %d of %d", ErrDrumSample, v.Sample, len(drums))
		}
	case Rest, Tone, DutyMod, Envelope, Loudness, Vibrato, Waveform:
	default:
		return fmt.Errorf("%w %T", errUnknownNote, n)
	}
	if d := n.Length(); d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("%w: %v", ErrDuration, d)
	}
	return nil
}

type flowState struct {
	pc    int
	known bool
	flag  int
}

// findNoTimeLoop looks for reachable control flow that cycles without
// reaching a Play no matter which flag value the synth was reset with.
// Branches are followed only once a SetFlag has made their outcome certain.
func findNoTimeLoop(instructions []Instruction) (int, bool) {
	for _, from := range reachableStates(instructions) {
		seen := map[flowState]bool{}
		st := from
		for inRange(st.pc, len(instructions)) {
			if seen[st] {
				return st.pc, true
			}
			seen[st] = true
			next, ok := determinedNext(instructions[st.pc], st)
			if !ok {
				break
			}
			st = next
		}
	}
	return 0, false
}

// determinedNext is the state after executing ins without playing a part.
// It reports false at a Play or at a branch on an unknown flag.
func determinedNext(ins Instruction, st flowState) (flowState, bool) {
	switch op := ins.(type) {
	case Play:
		return st, false
	case SetFlag:
		st.known, st.flag = true, op.Value
		st.pc++
	case Jump:
		st.pc = op.Target
	case BranchIfEqual:
		if !st.known {
			return st, false
		}
		if st.flag == op.Value {
			st.pc = op.Target
		} else {
			st.pc++
		}
	case BranchIfNotEqual:
		if !st.known {
			return st, false
		}
		if st.flag != op.Value {
			st.pc = op.Target
		} else {
			st.pc++
		}
	default:
		st.pc++
	}
	return st, true
}

// reachableStates lists every state the interpreter can be in, starting at
// instruction 0 with an unknown flag, in discovery order. The flag is
// unknown again after a Play since the host may change it while the part
// plays.
func reachableStates(instructions []Instruction) []flowState {
	seen := map[flowState]bool{}
	var order []flowState
	queue := []flowState{{}}
	for len(queue) > 0 {
		st := queue[0]
		queue = queue[1:]
		if !inRange(st.pc, len(instructions)) || seen[st] {
			continue
		}
		seen[st] = true
		order = append(order, st)
		switch op := instructions[st.pc].(type) {
		case Play:
			queue = append(queue, flowState{pc: st.pc + 1})
		case BranchIfEqual:
			if !st.known {
				queue = append(queue, flowState{pc: op.Target}, flowState{pc: st.pc + 1})
				continue
			}
			next, _ := determinedNext(op, st)
			queue = append(queue, next)
		case BranchIfNotEqual:
			if !st.known {
				queue = append(queue, flowState{pc: op.Target}, flowState{pc: st.pc + 1})
				continue
			}
			next, _ := determinedNext(op, st)
			queue = append(queue, next)
		default:
			next, _ := determinedNext(op, st)
			queue = append(queue, next)
		}
	}
	return order
}

// NumParts returns the number of parts.
func (p *Program) NumParts() int { return len(p.parts) }

// Part returns part i. The tracks share storage with the program and must
// not be modified.
func (p *Program) Part(i int) *Part { return &p.parts[i] }

// PartLength is the length in seconds of the longest track of part i.
func (p *Program) PartLength(i int) float64 { return p.partLengths[i] }

// NumInstructions returns the length of the control program.
func (p *Program) NumInstructions() int { return len(p.instructions) }

// Instruction returns instruction pc.
func (p *Program) Instruction(pc int) Instruction { return p.instructions[pc] }

// Drums returns the drum table the program was built against.
func (p *Program) Drums() DrumTable { return p.drums }

// StepLimit bounds how many instructions can execute between two parts
// before the control flow is known to be stuck.
func (p *Program) StepLimit() int { return p.stepLimit }

// Parts returns a copy of the program's parts.
func (p *Program) Parts() []Part { return clone.Clone(p.parts) }

// Instructions returns a copy of the control program.
func (p *Program) Instructions() []Instruction { return clone.Clone(p.instructions) }
