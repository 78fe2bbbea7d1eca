// Package drumkit builds drum tables, either synthesized in memory or loaded
// from WAV files.
package drumkit

import (
	"math"

	"github.com/cbegin/songvm/internal/program"
)

// Names of the synthesized samples in table order.
var Names = []string{"kick", "snare", "hat", "tom"}

// Synthesize renders the built-in kit at sampleRate. The output depends only
// on sampleRate.
func Synthesize(sampleRate int) program.DrumTable {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	sr := float64(sampleRate)
	return program.DrumTable{
		{Name: "kick", Rate: sampleRate, Data: kick(sr)},
		{Name: "snare", Rate: sampleRate, Data: snare(sr)},
		{Name: "hat", Rate: sampleRate, Data: hat(sr)},
		{Name: "tom", Rate: sampleRate, Data: tom(sr)},
	}
}

// kick is a sine sweeping from 150 Hz down to 45 Hz with a short click.
func kick(sr float64) []int16 {
	n := int(0.35 * sr)
	out := make([]int16, n)
	phase := 0.0
	for i := range out {
		p := float64(i) / float64(n)
		freq := 150 * math.Pow(45.0/150.0, math.Min(p*3, 1))
		phase += 2 * math.Pi * freq / sr
		s := math.Sin(phase) * math.Exp(-p*5)
		if t := float64(i) / sr; t < 0.003 {
			s += 0.4 * (1 - t/0.003)
		}
		out[i] = pcm(s * 0.9)
	}
	return out
}

// snare mixes a band-limited noise burst with a 190 Hz body.
func snare(sr float64) []int16 {
	n := int(0.2 * sr)
	out := make([]int16, n)
	seed := uint64(0x5EED)
	lp := 0.0
	for i := range out {
		p := float64(i) / float64(n)
		raw := noise(&seed)
		lp = lp*0.6 + raw*0.4
		body := math.Sin(2*math.Pi*190*float64(i)/sr) * math.Exp(-p*12)
		s := (raw-lp)*math.Exp(-p*6)*0.7 + body*0.4
		out[i] = pcm(s)
	}
	return out
}

// hat is high-passed noise with a fast decay.
func hat(sr float64) []int16 {
	n := int(0.06 * sr)
	out := make([]int16, n)
	seed := uint64(0x4A7)
	lp := 0.0
	for i := range out {
		p := float64(i) / float64(n)
		raw := noise(&seed)
		lp = lp*0.3 + raw*0.7
		out[i] = pcm((raw - lp) * math.Exp(-p*4) * 0.8)
	}
	return out
}

// tom is a pitched sine drop from 220 Hz to 110 Hz.
func tom(sr float64) []int16 {
	n := int(0.3 * sr)
	out := make([]int16, n)
	phase := 0.0
	for i := range out {
		p := float64(i) / float64(n)
		freq := 220 - 110*p
		phase += 2 * math.Pi * freq / sr
		out[i] = pcm(math.Sin(phase) * math.Exp(-p*4) * 0.8)
	}
	return out
}

// noise advances an LCG and returns a value in [-1,1].
func noise(seed *uint64) float64 {
	*seed = *seed*6364136223846793005 + 1442695040888963407
	return float64(int64(*seed>>33)-int64(1<<30)) / float64(1<<30)
}

func pcm(s float64) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(s * 32767))
}
