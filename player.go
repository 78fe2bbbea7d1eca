package songvm

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	intaudio "github.com/cbegin/songvm/internal/audio"
	intseq "github.com/cbegin/songvm/internal/sequencer"
)

// PlaybackEvent carries playback events from Watch().
type PlaybackEvent struct {
	Kind int // EventPartStarted or EventPlaybackEnded
	Part int // index of the part that started, -1 otherwise
}

const (
	EventPartStarted int = iota
	EventPlaybackEnded
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	params    Params
	logger    *slog.Logger
	sampleTap func([]int16)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		params: intseq.DefaultParams(),
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithParams overrides the synthesis parameters used for every Play.
func WithParams(params Params) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.params = params
	}
}

// WithLogger sets the logger used for playback lifecycle messages.
func WithLogger(logger *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithSampleTap installs a callback invoked with each generated buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]int16)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player plays programs on the audio device. Play, SetFlag and Stop may be
// called from any goroutine; they are serialized against rendering.
type Player struct {
	mu         sync.Mutex
	sampleRate int
	params     Params
	logger     *slog.Logger
	sampleTap  func([]int16)
	audio      *intaudio.Player
	source     *synthSource
	volume     float64
	done       chan struct{}
	doneOnce   *sync.Once
	eventCh    chan PlaybackEvent
	eventChMu  sync.Mutex
}

// synthSource feeds a Synth to the audio stream. Its lock serializes flag
// changes with the audio thread's render calls.
type synthSource struct {
	mu        sync.Mutex
	synth     *intseq.Synth
	finished  atomic.Bool
	sampleTap func([]int16)
}

func (s *synthSource) Render(dst []int16) {
	s.mu.Lock()
	s.synth.Render(dst)
	s.mu.Unlock()
	if s.sampleTap != nil {
		s.sampleTap(dst)
	}
}

func (s *synthSource) Finished() bool {
	return s.finished.Load()
}

func (s *synthSource) setFlag(v int) {
	s.mu.Lock()
	s.synth.SetFlag(v)
	s.mu.Unlock()
}

func (s *synthSource) flag() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synth.Flag()
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Player{
		sampleRate: sampleRate,
		params:     cfg.params,
		logger:     cfg.logger,
		sampleTap:  cfg.sampleTap,
		volume:     1,
	}, nil
}

// Play resets a fresh synth to prog with initialFlag and starts device
// output. Any previous playback is replaced.
func (p *Player) Play(prog *Program, initialFlag int) error {
	if prog == nil {
		return errors.New("songvm: nil program")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// Signal any existing Wait() that the previous playback was replaced
	p.finishLocked()
	done := make(chan struct{})
	once := &sync.Once{}
	p.done, p.doneOnce = done, once

	// A new synth per Play keeps voice state from leaking between programs.
	source := p.newSource(func() { once.Do(func() { close(done) }) })
	source.synth.Reset(prog, initialFlag)

	backend, err := intaudio.NewPlayer(p.sampleRate, source)
	if err != nil {
		return err
	}
	if p.audio != nil {
		_ = p.audio.Stop()
	}
	backend.SetVolume(p.volume)
	p.audio = backend
	p.source = source
	p.audio.Play()
	p.logger.Info("playback started",
		"parts", prog.NumParts(),
		"instructions", prog.NumInstructions(),
		"flag", initialFlag,
		"sampleRate", p.sampleRate,
	)
	return nil
}

// SetFlag changes the flag of the playing program. The new value is seen the
// next time the program chooses a part.
func (p *Player) SetFlag(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == nil {
		return
	}
	p.source.setFlag(v)
	p.logger.Debug("flag set", "flag", v)
}

// Flag returns the flag of the playing program, or 0 if nothing is playing.
func (p *Player) Flag() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == nil {
		return 0
	}
	return p.source.flag()
}

// newSource builds a synth whose events are forwarded to Watch. ended runs
// once the program halts.
func (p *Player) newSource(ended func()) *synthSource {
	source := &synthSource{sampleTap: p.sampleTap}
	onEvent := func(ev intseq.Event) {
		if ev.Kind == intseq.EventPlaybackEnded {
			source.finished.Store(true)
		}
		p.sendEvent(PlaybackEvent{Kind: int(ev.Kind), Part: ev.Part})
		if ev.Kind == intseq.EventPlaybackEnded {
			p.logger.Debug("playback ended")
			ended()
		}
	}
	source.synth = intseq.NewWithOptions(p.sampleRate, p.params, intseq.Options{OnEvent: onEvent})
	return source
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full or closed; drop event
		}
	}
}

func (p *Player) finishLocked() {
	if p.doneOnce != nil {
		done := p.done
		p.doneOnce.Do(func() { close(done) })
	}
	p.done, p.doneOnce = nil, nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	if p.audio == nil {
		p.mu.Unlock()
		return nil
	}
	err := p.audio.Stop()
	p.audio = nil
	p.source = nil
	p.finishLocked()
	p.mu.Unlock()
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Part: -1})
	p.logger.Info("playback stopped")
	return err
}

// Wait blocks until the current playback ends. A program that loops forever
// never ends on its own; use Stop, or Watch for part changes.
// Wait returns immediately if no playback is active or if it was stopped.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events. Events are sent when:
//   - EventPartStarted: the program started playing a part (Part set)
//   - EventPlaybackEnded: the program halted or playback was stopped
//
// The channel is buffered (cap 8); receive in a goroutine to avoid blocking the sequencer.
// Only the most recent Watch() channel receives events; call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets the device output volume. 1.0 is default. Rendered
// PCM is not scaled.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if p.audio != nil {
		p.audio.SetVolume(volume)
	}
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// PlaybackPosition returns the current output position of the audio driver,
// i.e. what the listener actually hears right now. Returns 0 if not playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	pos := a.Position()
	return int64(pos.Seconds() * float64(p.sampleRate))
}
