package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cbegin/songvm"
	"github.com/cbegin/songvm/internal/drumkit"
	"github.com/cbegin/songvm/internal/lfo"
)

// two bars that alternate until the flag is set, then a single ending bar
const defaultProgram = `
parts:
  - name: groove
    tracks:
      - - {kind: waveform, wave: square, duty: 0.25}
        - {kind: envelope, attack: 0.005, decay: 0.4}
        - {kind: tone, duration: 0.25, frequency: 523.25}
        - {kind: tone, duration: 0.25, frequency: 659.25}
        - {kind: tone, duration: 0.25, frequency: 783.99}
        - {kind: tone, duration: 0.25, frequency: 659.25}
      - - {kind: waveform, wave: triangle}
        - {kind: tone, duration: 0.5, frequency: 130.81}
        - {kind: tone, duration: 0.5, frequency: 196.00}
      - []
      - - {kind: drum, duration: 0.25, drum: kick}
        - {kind: drum, duration: 0.25, drum: hat}
        - {kind: drum, duration: 0.25, drum: snare}
        - {kind: drum, duration: 0.25, drum: hat}
  - name: ending
    tracks:
      - - {kind: vibrato, depth: 0.25, speed: 5}
        - {kind: envelope, attack: 0.01, decay: 0.8}
        - {kind: tone, duration: 1.5, frequency: 523.25}
      - - {kind: tone, duration: 1.5, frequency: 130.81}
      - []
      - - {kind: drum, duration: 1.5, drum: tom}
instructions:
  - {op: play, part: 0}
  - {op: beq, value: 0, target: 0}
  - {op: play, part: 1}
`

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		path       = flag.String("file", "", "path to a JSON or YAML program document")
		drumDir    = flag.String("drums", "", "directory of .wav drum samples (default: built-in kit)")
		initial    = flag.Int("flag", 0, "initial flag value")
		liveFlag   = flag.Int("live-flag", 1, "flag value set after -live-after")
		liveAfter  = flag.Duration("live-after", 0, "change the flag to -live-flag after this long (0 = never)")
		parts      = flag.Int("parts", 0, "stop after N parts have started (0 = run until the program ends)")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		wavPath    = flag.String("wav", "", "render to this WAV file instead of playing")
		seconds    = flag.Float64("seconds", 10, "length rendered with -wav")
		dump       = flag.Bool("dump", false, "print the decoded program as YAML and exit")
		verbose    = flag.Bool("v", false, "log playback lifecycle")
		vibShape   = flag.String("vibrato-shape", "sine", "vibrato curve: sine|triangle|square|saw")
		dutyShape  = flag.String("dutymod-shape", "sine", "duty modulation curve: sine|triangle|square|saw")
	)
	flag.Parse()

	drums, err := loadDrums(*drumDir, *sampleRate)
	if err != nil {
		log.Fatal(err)
	}
	doc, err := resolveProgramInput(*path)
	if err != nil {
		log.Fatal(err)
	}
	prog, err := songvm.LoadProgram(doc, drums)
	if err != nil {
		log.Fatal(err)
	}

	if *dump {
		out, err := songvm.EncodeYAML(prog)
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(out)
		return
	}

	params := songvm.DefaultParams()
	params.Voice.VibratoShape = lfo.ParseShape(*vibShape)
	params.Voice.DutyModShape = lfo.ParseShape(*dutyShape)

	if *wavPath != "" {
		if err := renderWAV(*wavPath, prog, *initial, *sampleRate, *seconds, params); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %.1fs to %s\n", *seconds, *wavPath)
		return
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	pl, err := songvm.NewPlayer(*sampleRate, songvm.WithParams(params), songvm.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	pl.SetMasterVolume(*volume)
	ch := pl.Watch()
	if err := pl.Play(prog, *initial); err != nil {
		log.Fatal(err)
	}
	if *liveAfter > 0 {
		time.AfterFunc(*liveAfter, func() {
			fmt.Printf("flag -> %d\n", *liveFlag)
			pl.SetFlag(*liveFlag)
		})
	}
	started := 0
	for event := range ch {
		switch event.Kind {
		case songvm.EventPlaybackEnded:
			fmt.Println("playback completed")
			goto done
		case songvm.EventPartStarted:
			started++
			fmt.Printf("part %d (%s)\n", event.Part, prog.Part(event.Part).Name)
			if *parts > 0 && started >= *parts {
				pl.Stop()
			}
		}
	}
done:
	pl.Wait()
}

func resolveProgramInput(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return []byte(defaultProgram), nil
	}
	return os.ReadFile(path)
}

func loadDrums(dir string, sampleRate int) (songvm.DrumTable, error) {
	if strings.TrimSpace(dir) == "" {
		return drumkit.Synthesize(sampleRate), nil
	}
	return drumkit.LoadDir(dir)
}

func renderWAV(path string, prog *songvm.Program, initial, sampleRate int, seconds float64, params songvm.Params) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	samples := songvm.RenderPCMWithParams(prog, initial, sampleRate, seconds, params)
	if err := songvm.WriteWAV(f, samples, sampleRate); err != nil {
		return err
	}
	return f.Close()
}
