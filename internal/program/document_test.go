package program

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const yamlDoc = `
parts:
  - name: intro
    tracks:
      - - {kind: waveform, wave: square, duty: 0.25}
        - {kind: tone, duration: 0.5, frequency: 440}
        - {kind: rest, duration: 0.25}
      - - {kind: envelope, attack: 0.01, decay: 0.2}
        - {kind: tone, duration: 1, frequency: 110}
      - []
      - - {kind: drum, duration: 0.25, drum: hat}
        - {kind: drum, duration: 0.25, sample: 0}
  - name: loop
    tracks:
      - - {kind: vibrato, depth: 0.2, speed: 5}
        - {kind: dutymod, depth: 0.1, speed: 2}
        - {kind: loudness, volume: 0.8}
        - {kind: tone, duration: 2, frequency: 220}
instructions:
  - {op: play, part: 0}
  - {op: beq, value: 1, target: 3}
  - {op: jump, target: 1}
  - {op: play, part: 1}
  - {op: nop}
  - {op: setflag, value: 0}
  - {op: bne, value: 2, target: 3}
`

func TestDecodeYAML(t *testing.T) {
	p, err := Decode([]byte(yamlDoc), sampleDrums())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	samePart(t, p.Parts(), sampleParts())
	wantIns := []Instruction{Play{Part: 0}, BranchIfEqual{Value: 1, Target: 3}, Jump{Target: 1}, Play{Part: 1}, Nop{}, SetFlag{Value: 0}, BranchIfNotEqual{Value: 2, Target: 3}}
	if !reflect.DeepEqual(p.Instructions(), wantIns) {
		t.Fatalf("instructions:\n got %#v\nwant %#v", p.Instructions(), wantIns)
	}
}

func TestDecodeJSON(t *testing.T) {
	doc := `{"parts":[{"name":"a","tracks":[[{"kind":"tone","duration":1,"frequency":330}]]}],
		"instructions":[{"op":"play","part":0},{"op":"jump","target":0}]}`
	p, err := Decode([]byte(doc), nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Part(0).Name != "a" || p.PartLength(0) != 1 {
		t.Fatalf("unexpected part %#v", p.Part(0))
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
		is   error
	}{
		{"garbage", "parts: [", "could not be parsed", nil},
		{"unknown kind", "parts: [{tracks: [[{kind: blip}]]}]", `unknown note kind "blip"`, nil},
		{"unknown op", "instructions: [{op: halt}]", `unknown instruction "halt"`, nil},
		{"unknown wave", "parts: [{tracks: [[{kind: waveform, wave: organ}]]}]", `unknown waveform "organ"`, nil},
		{"unknown drum", "parts: [{tracks: [[{kind: drum, duration: 1, drum: cowbell}]]}]", "cowbell", ErrDrumSample},
		{"too many tracks", "parts: [{tracks: [[], [], [], [], [], []]}]", "more than 5 tracks", ErrTooManyTracks},
		{"validation", "parts: []\ninstructions: [{op: play, part: 0}]", "instruction 0", ErrPartIndex},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.doc), sampleDrums())
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Fatalf("error %v is not %v", err, tc.is)
			}
		})
	}
}

func TestEncodeYAMLRoundTrip(t *testing.T) {
	p, err := Decode([]byte(yamlDoc), sampleDrums())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := EncodeYAML(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(out), "drum: hat") {
		t.Fatalf("named drum not written by name:\n%s", out)
	}
	again, err := Decode(out, sampleDrums())
	if err != nil {
		t.Fatalf("decode encoded program: %v\n%s", err, out)
	}
	if !reflect.DeepEqual(again.Instructions(), p.Instructions()) {
		t.Fatalf("instructions changed across round trip")
	}
	samePart(t, again.Parts(), p.Parts())
}

// samePart compares note by note so that empty and missing tracks match.
func samePart(t *testing.T, got, want []Part) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%d parts, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i].Name {
			t.Fatalf("part %d name %q, want %q", i, got[i].Name, want[i].Name)
		}
		for ti := range want[i].Tracks {
			a, b := want[i].Tracks[ti], got[i].Tracks[ti]
			if len(a) != len(b) {
				t.Fatalf("part %d track %d: %d notes, want %d", i, ti, len(b), len(a))
			}
			for ni := range a {
				if a[ni] != b[ni] {
					t.Fatalf("part %d track %d note %d: %#v, want %#v", i, ti, ni, b[ni], a[ni])
				}
			}
		}
	}
}
