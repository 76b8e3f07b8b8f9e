package agent

import (
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// streamBuffer is the channel depth before sends block. Slow consumers apply
// backpressure to the loop; events are never dropped.
const streamBuffer = 64

// Stream is the event feed of one run. Exactly one terminal finish event is
// delivered, after which the channel closes. Events arrive in run order:
// text deltas precede the tool-call events of their step, all tool results of
// a step precede its finish-step, and start-step(i+1) follows finish-step(i).
type Stream struct {
	ch chan models.StreamEvent

	mu   sync.Mutex
	step int
	done bool

	finished chan struct{}
	result   *models.RunResult
	runErr   error
}

func newStream() *Stream {
	return &Stream{
		ch:       make(chan models.StreamEvent, streamBuffer),
		finished: make(chan struct{}),
	}
}

// Events returns the event channel. It closes after the finish event.
func (s *Stream) Events() <-chan models.StreamEvent {
	return s.ch
}

// send delivers one event, blocking until the consumer accepts it. Events
// sent after the terminal finish are discarded. The send happens under the
// mutex so a straggling handler emitting data can never race the terminal
// close onto a closed channel.
func (s *Stream) send(ev models.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.step = ev.Step

	s.ch <- ev
	if ev.IsTerminal() {
		s.done = true
		close(s.ch)
	}
}

// EmitData implements DataEmitter for tool handlers.
func (s *Stream) EmitData(part *models.DataPart) {
	if part == nil {
		return
	}
	s.mu.Lock()
	step := s.step
	s.mu.Unlock()
	s.send(models.NewDataEvent(step, part))
}

// finish guarantees the terminal event even on failure paths. Safe to call
// more than once; only the first finish is delivered.
func (s *Stream) finish(ev models.StreamEvent) {
	ev.Type = models.EventFinish
	s.send(ev)
}

// complete records the run outcome after the terminal event.
func (s *Stream) complete(result *models.RunResult, err error) {
	s.mu.Lock()
	s.result = result
	s.runErr = err
	s.mu.Unlock()
	close(s.finished)
}

// Wait blocks until the run completes and returns its result. Safe to call
// from any goroutine, before or after draining Events.
func (s *Stream) Wait() (*models.RunResult, error) {
	<-s.finished
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.runErr
}
