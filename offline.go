package songvm

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	intseq "github.com/cbegin/songvm/internal/sequencer"
)

// RenderPCM renders seconds of prog from initialFlag with default parameters.
// The result is deterministic for a given program, flag and rate.
func RenderPCM(prog *Program, initialFlag int, sampleRate int, seconds float64) []int16 {
	return RenderPCMWithParams(prog, initialFlag, sampleRate, seconds, intseq.DefaultParams())
}

func RenderPCMWithParams(prog *Program, initialFlag int, sampleRate int, seconds float64, params Params) []int16 {
	synth := intseq.New(sampleRate, params)
	synth.Reset(prog, initialFlag)
	frames := int(float64(sampleRate) * seconds)
	if frames < 0 {
		frames = 0
	}
	out := make([]int16, frames)
	synth.Render(out)
	return out
}

// WriteWAV writes samples as a 16-bit mono PCM WAV file.
func WriteWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("songvm: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("songvm: close wav: %w", err)
	}
	return nil
}
