package drumkit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cbegin/songvm/internal/program"
	"github.com/go-audio/wav"
)

var ErrInvalidWAV = errors.New("drumkit: invalid WAV data")

// LoadWAV decodes a PCM WAV stream into a drum sample. Multi-channel audio is
// averaged down to mono and any bit depth is rescaled to 16 bits. The sample
// keeps the file's own rate.
func LoadWAV(r io.ReadSeeker, name string) (program.DrumSample, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return program.DrumSample{}, fmt.Errorf("%w: %s", ErrInvalidWAV, name)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return program.DrumSample{}, fmt.Errorf("drumkit: decode %s: %w", name, err)
	}
	channels := int(dec.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if channels <= 0 {
		channels = 1
	}
	depth := int(dec.BitDepth)
	if depth <= 0 || depth > 32 {
		return program.DrumSample{}, fmt.Errorf("%w: %s has bit depth %d", ErrInvalidWAV, name, depth)
	}

	frames := len(buf.Data) / channels
	data := make([]int16, frames)
	for f := 0; f < frames; f++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[f*channels+c]
		}
		data[f] = to16(sum/channels, depth)
	}
	return program.DrumSample{Name: name, Rate: int(dec.SampleRate), Data: data}, nil
}

func to16(v, depth int) int16 {
	switch {
	case depth == 8:
		// 8-bit WAV is unsigned
		v = (v - 128) << 8
	case depth < 16:
		v <<= 16 - depth
	case depth > 16:
		v >>= depth - 16
	}
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// LoadDir loads every .wav file in dir, sorted by file name. Each sample is
// named after its file without the extension.
func LoadDir(dir string) (program.DrumTable, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("drumkit: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	table := make(program.DrumTable, 0, len(names))
	for _, fn := range names {
		ds, err := loadFile(filepath.Join(dir, fn))
		if err != nil {
			return nil, err
		}
		table = append(table, ds)
	}
	return table, nil
}

func loadFile(path string) (program.DrumSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return program.DrumSample{}, fmt.Errorf("drumkit: %w", err)
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return LoadWAV(f, name)
}
