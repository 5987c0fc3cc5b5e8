package x11

import (
	"context"
	"math/bits"
	"os"
	"sync"
	"time"

	"github.com/jezek/xgb/xproto"

	"daypulse/pkg/input"
)

const buttonMask = xproto.KeyButMaskButton1 | xproto.KeyButMaskButton2 |
	xproto.KeyButMaskButton3 | xproto.KeyButMaskButton4 | xproto.KeyButMaskButton5

var buttons = []struct {
	mask   uint16
	number int
}{
	{xproto.KeyButMaskButton1, 1},
	{xproto.KeyButMaskButton2, 2},
	{xproto.KeyButMaskButton3, 3},
	{xproto.KeyButMaskButton4, 4},
	{xproto.KeyButMaskButton5, 5},
}

// InputSource implements input.Source by polling the pointer and keymap.
//
// Polling without XInput2 is approximate: presses shorter than one poll
// interval are missed and auto-repeat is invisible. Movement between polls is
// reported as a single straight-line move.
type InputSource struct {
	interval time.Duration

	mu     sync.Mutex
	c      *client
	cancel context.CancelFunc
	done   chan struct{}
}

// NewInputSource connects to $DISPLAY and polls every interval
func NewInputSource(interval time.Duration) (*InputSource, error) {
	c, err := dial(os.Getenv("DISPLAY"))
	if err != nil {
		return nil, err
	}
	return &InputSource{interval: interval, c: c}, nil
}

// Start begins polling in a goroutine. It returns once the first state has
// been read so the first poll never reports a spurious move.
func (s *InputSource) Start(ctx context.Context, sink input.Sink) error {
	ptr, err := s.c.queryPointer()
	if err != nil {
		return err
	}
	keys, err := s.c.queryKeymap()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.poll(ctx, sink, ptr, keys)
	}()
	return nil
}

func (s *InputSource) poll(ctx context.Context, sink input.Sink, ptr pointerState, keys [32]byte) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if next, err := s.c.queryPointer(); err == nil {
			emitPointer(sink, ptr, next)
			ptr = next
		}
		if next, err := s.c.queryKeymap(); err == nil {
			for i := 0; i < pressedKeys(keys, next); i++ {
				sink.KeyPress()
			}
			keys = next
		}
	}
}

func emitPointer(sink input.Sink, prev, next pointerState) {
	if next.x != prev.x || next.y != prev.y {
		sink.MouseMove(next.x, next.y)
	}
	for _, b := range buttons {
		was, is := prev.buttons&b.mask != 0, next.buttons&b.mask != 0
		if was != is {
			sink.MouseClick(b.number, is)
		}
	}
}

// pressedKeys counts keys that are down in next but were up in prev
func pressedKeys(prev, next [32]byte) int {
	n := 0
	for i := range next {
		n += bits.OnesCount8(next[i] &^ prev[i])
	}
	return n
}

// Close stops polling and releases the X connection
func (s *InputSource) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.c.close()
	return nil
}
