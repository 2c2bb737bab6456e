// Package capture implements the virtual sink endpoint (spec.md §4.4):
// registering a sink node on the audio server, negotiating its format,
// and converting each real-time callback's raw buffer into the shared
// capture ring. Grounded on the teacher's AudioEngine real-time path in
// client/audio.go, which decodes a raw buffer into float32 samples and
// applies a chain of non-blocking per-frame processing.
package capture

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/httpsworldview/openmeters/internal/audioserver"
	"github.com/httpsworldview/openmeters/internal/ring"
)

// RingCapacity is the capture ring's fixed size, spec.md §4.4.
const RingCapacity = 256

var sharedRing = sync.OnceValue(func() *ring.Ring[[]float32] {
	return ring.New[[]float32](RingCapacity)
})

// Ring returns the process-wide capture ring, created on first use and
// never torn down, per spec.md §4.4/§5's "global state" note.
func Ring() *ring.Ring[[]float32] {
	return sharedRing()
}

// Sink is a registered virtual sink: its real-time callback converts
// each buffer to interleaved float32 and pushes it onto the shared ring.
type Sink struct {
	nodeID uint32
	format audioserver.AudioFormat
}

// Register creates a virtual sink named by props on server and wires its
// process callback to the shared ring.
func Register(server audioserver.Server, props audioserver.SinkProps) (*Sink, error) {
	s := &Sink{}
	nodeID, format, err := server.RegisterSink(props, s.process)
	if err != nil {
		return nil, err
	}
	s.nodeID = nodeID
	s.format = format
	return s, nil
}

// NodeID returns the registered sink's node id.
func (s *Sink) NodeID() uint32 { return s.nodeID }

// Format returns the negotiated sink format.
func (s *Sink) Format() audioserver.AudioFormat { return s.format }

// process implements spec.md §4.4's real-time callback sequence: decode,
// try-lock push, restore the chunk. Never blocks — on ring contention
// the frame is silently dropped, exactly as the teacher's capture path
// favors a dropped frame over a missed real-time deadline.
func (s *Sink) process(chunk *audioserver.Chunk) {
	if chunk.Size <= 0 {
		chunk.Offset, chunk.Size = 0, 0
		return
	}
	samples := decodeFloat32LE(chunk.Data[:chunk.Size])
	Ring().TryPush(samples)

	chunk.Offset = 0
	chunk.Stride = s.format.FrameBytes()
}

func decodeFloat32LE(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
