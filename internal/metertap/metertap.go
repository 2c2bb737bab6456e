// Package metertap implements the meter tap / sample bus (spec.md §4.5):
// a dedicated goroutine that drains the capture ring and forwards frames
// over a bounded broadcast to every subscriber (the visual manager and
// any other DSP consumer). Grounded on the teacher's AudioEngine
// goroutine shape (running flag, stop channel, one blocking loop) and on
// server/internal/ws's fan-out-to-many-receivers pattern for broadcast.
package metertap

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/httpsworldview/openmeters/internal/ring"
)

const (
	emptyBackoff      = 10 * time.Millisecond
	broadcastCapacity = 64
)

// Tap drains src and fans frames out to every Subscribe-created channel.
type Tap struct {
	src *ring.Ring[[]float32]
	log *slog.Logger

	mu   sync.Mutex
	subs []chan []float32

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New returns a tap draining src. Call Start to begin forwarding.
func New(src *ring.Ring[[]float32], logger *slog.Logger) *Tap {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tap{src: src, log: logger.With(slog.String("component", "metertap"))}
}

// Subscribe returns a new bounded channel receiving every frame drained
// from the ring from this point on. A slow consumer drops frames rather
// than stalling the tap.
func (t *Tap) Subscribe() <-chan []float32 {
	ch := make(chan []float32, broadcastCapacity)
	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()
	return ch
}

// Start launches the drain loop goroutine.
func (t *Tap) Start() {
	if !t.running.CompareAndSwap(false, true) {
		return
	}
	t.stopCh = make(chan struct{})
	t.wg.Add(1)
	go t.run()
}

// Shutdown stops the drain loop, closing every subscriber channel.
func (t *Tap) Shutdown() {
	if !t.running.CompareAndSwap(true, false) {
		return
	}
	close(t.stopCh)
	t.wg.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}

func (t *Tap) run() {
	defer t.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("meter tap terminated: ring access panicked", slog.Any("panic", r))
		}
	}()

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		frames := t.src.DrainInto(nil)
		if len(frames) == 0 {
			select {
			case <-time.After(emptyBackoff):
			case <-t.stopCh:
				return
			}
			continue
		}
		t.broadcast(frames)
	}
}

func (t *Tap) broadcast(frames [][]float32) {
	t.mu.Lock()
	subs := make([]chan []float32, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	for _, frame := range frames {
		for _, ch := range subs {
			select {
			case ch <- frame:
			default:
				// Consumer not keeping up; drop per spec.md §4.5.
			}
		}
	}
}
