package browser

import (
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Streamer frame rate and quality bounds.
const (
	MinFPS     = 0.5
	MaxFPS     = 10.0
	MinQuality = 1
	MaxQuality = 100
)

// FrameEventType discriminates streamer events.
type FrameEventType string

const (
	FrameCaptured FrameEventType = "frame"
	FrameInputAck FrameEventType = "input-ack"
	FrameError    FrameEventType = "error"
)

// FrameEvent is one streamer output: a JPEG frame, an input acknowledgment,
// or an error.
type FrameEvent struct {
	Type      FrameEventType
	Frame     []byte
	Input     *Input
	Err       error
	Timestamp time.Time
}

// InputKind identifies an injected input.
type InputKind string

const (
	InputClick InputKind = "click"
	InputType  InputKind = "type"
	InputKey   InputKind = "key"
)

// Input is one injected user action.
type Input struct {
	Kind InputKind
	X    float64
	Y    float64
	Text string
	Key  string
}

// StreamerConfig controls capture rate and frame quality. Out-of-range
// values are clamped, not rejected.
type StreamerConfig struct {
	FPS     float64
	Quality int
}

func (c StreamerConfig) clamped() StreamerConfig {
	if c.FPS < MinFPS {
		c.FPS = MinFPS
	}
	if c.FPS > MaxFPS {
		c.FPS = MaxFPS
	}
	if c.Quality < MinQuality {
		c.Quality = MinQuality
	}
	if c.Quality > MaxQuality {
		c.Quality = MaxQuality
	}
	return c
}

// Streamer captures page frames at a fixed rate and applies injected input
// between captures. Capture errors go on the event channel; when the
// consumer stops draining, the streamer blocks and stops with it.
type Streamer struct {
	page     playwright.Page
	cfg      StreamerConfig
	events   chan FrameEvent
	inputs   chan Input
	stop     chan struct{}
	stopped  chan struct{}
	inFlight atomic.Bool
}

// NewStreamer builds a streamer over an open page.
func NewStreamer(page playwright.Page, cfg StreamerConfig) *Streamer {
	return &Streamer{
		page:    page,
		cfg:     cfg.clamped(),
		events:  make(chan FrameEvent, 4),
		inputs:  make(chan Input, 16),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Events returns the output channel. It closes after Stop.
func (s *Streamer) Events() <-chan FrameEvent { return s.events }

// Inject queues an input action. It returns false once the streamer has
// stopped or the queue is full.
func (s *Streamer) Inject(in Input) bool {
	select {
	case <-s.stop:
		return false
	default:
	}
	select {
	case s.inputs <- in:
		return true
	default:
		return false
	}
}

// Run captures frames until Stop. It must be called once.
func (s *Streamer) Run() {
	defer close(s.stopped)
	defer close(s.events)

	interval := time.Duration(float64(time.Second) / s.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case in := <-s.inputs:
			s.apply(in)
		case <-ticker.C:
			// A slow capture keeps its tick; overlapping captures are
			// skipped rather than queued.
			if !s.inFlight.CompareAndSwap(false, true) {
				continue
			}
			s.capture()
			s.inFlight.Store(false)
		}
	}
}

// Stop ends the capture loop and waits for it to exit.
func (s *Streamer) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.stopped
}

func (s *Streamer) capture() {
	frame, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypeJpeg,
		Quality: playwright.Int(s.cfg.Quality),
	})
	if err != nil {
		s.emit(FrameEvent{Type: FrameError, Err: err, Timestamp: time.Now()})
		return
	}
	s.emit(FrameEvent{Type: FrameCaptured, Frame: frame, Timestamp: time.Now()})
}

func (s *Streamer) apply(in Input) {
	var err error
	switch in.Kind {
	case InputClick:
		err = s.page.Mouse().Click(in.X, in.Y)
	case InputType:
		err = s.page.Keyboard().Type(in.Text)
	case InputKey:
		err = s.page.Keyboard().Press(in.Key)
	}
	if err != nil {
		s.emit(FrameEvent{Type: FrameError, Input: &in, Err: err, Timestamp: time.Now()})
		return
	}
	s.emit(FrameEvent{Type: FrameInputAck, Input: &in, Timestamp: time.Now()})
}

func (s *Streamer) emit(ev FrameEvent) {
	select {
	case s.events <- ev:
	case <-s.stop:
	}
}
