// Package portaudiosrv backs audioserver.Server with a real capture device
// via github.com/gordonklaus/portaudio, so the rest of the pipeline is
// exercisable against live hardware even though it cannot see a PipeWire
// node graph. It reports itself as a single implicit input node carrying
// one port per channel (spec.md §6).
//
// Grounded on the teacher's AudioEngine.Start/captureLoop/resolveDevice in
// client/audio.go: device resolution with a DefaultInputDevice fallback,
// opening a single portaudio.Stream with a fixed FramesPerBuffer, and a
// dedicated goroutine blocked in Stream.Read until Stop unblocks it.
package portaudiosrv

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/httpsworldview/openmeters/internal/audioserver"
	"github.com/httpsworldview/openmeters/internal/graph"
)

// inputNodeID is the synthetic id reported for the single capture device
// node this server exposes. There is no real registry, so one fixed id
// is enough.
const inputNodeID uint32 = 1

// sinkNodeID is the synthetic id assigned to the registered virtual sink,
// chosen distinct from inputNodeID so pairing/link logic sees two nodes.
const sinkNodeID uint32 = 2

const framesPerBuffer = 960 // 20ms @ 48kHz, matching the teacher's FrameSize

// Server implements audioserver.Server against a real input device opened
// via portaudio. It has no discovery protocol of its own: Globals/Iterate
// report the one device node/port set computed in New, and the only
// event ever queued is the initial GlobalAdded burst.
type Server struct {
	mu sync.Mutex

	deviceID int // portaudio device index, or -1 for the default device
	channels int

	stream  *portaudio.Stream
	buf     []float32
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	log *slog.Logger

	events  []audioserver.Event
	globals map[uint32]audioserver.Global
	state   *graph.State
	subs    []*subscription

	sinkCB     audioserver.ProcessCallback
	sinkFormat audioserver.AudioFormat

	destroyed bool
}

// New opens the capture device at deviceID (or the system default when
// deviceID < 0) with the given channel count and starts streaming.
// Grounded on AudioEngine.Start's device resolution and stream-opening
// sequence.
func New(deviceID, channelCount int, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudiosrv: initialize: %w", err)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudiosrv: enumerate devices: %w", err)
	}
	dev, err := resolveDevice(devices, deviceID)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	buf := make([]float32, framesPerBuffer*channelCount)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channelCount,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate(dev),
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudiosrv: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudiosrv: start stream: %w", err)
	}

	s := &Server{
		deviceID: deviceID,
		channels: channelCount,
		stream:   stream,
		buf:      buf,
		stopCh:   make(chan struct{}),
		log:      logger,
		globals:  map[uint32]audioserver.Global{},
		state:    graph.NewState(),
	}
	s.seedInputNode(dev)
	s.running.Store(true)
	s.wg.Add(1)
	go s.captureLoop()

	logger.Info("portaudiosrv started", slog.String("device", dev.Name), slog.Int("channels", channelCount))
	return s, nil
}

// resolveDevice mirrors the teacher's resolveDevice: an explicit device
// index wins when valid, otherwise fall back to the host default input.
func resolveDevice(devices []*portaudio.DeviceInfo, idx int) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return portaudio.DefaultInputDevice()
}

func sampleRate(dev *portaudio.DeviceInfo) float64 {
	if dev.DefaultSampleRate > 0 {
		return dev.DefaultSampleRate
	}
	return 48000
}

func (s *Server) seedInputNode(dev *portaudio.DeviceInfo) {
	node := graph.Node{
		ID:          inputNodeID,
		Name:        dev.Name,
		Description: dev.Name,
		MediaClass:  "Audio/Source",
		Direction:   graph.DirectionOutput,
	}
	s.state.UpsertNode(node)
	for ch := 0; ch < s.channels; ch++ {
		s.state.AddPort(graph.Port{
			GlobalID:  100 + uint32(ch),
			PortID:    uint32(ch),
			NodeID:    inputNodeID,
			Direction: graph.DirectionOutput,
		})
	}
	s.globals[inputNodeID] = audioserver.Global{ID: inputNodeID, Kind: audioserver.GlobalNode, Props: map[string]string{
		"node.name": dev.Name, "media.class": "Audio/Source",
	}}
	s.events = append(s.events, audioserver.GlobalAdded{Global: s.globals[inputNodeID]})
}

// captureLoop blocks in Stream.Read once per buffer and forwards the
// captured samples to the registered sink callback, matching the
// teacher's captureLoop shape (blocking read, running flag, clean exit
// once Stop closes the stream out from under it).
func (s *Server) captureLoop() {
	defer s.wg.Done()
	for s.running.Load() {
		if err := s.stream.Read(); err != nil {
			if s.running.Load() {
				s.log.Error("portaudiosrv capture read failed", slog.String("err", err.Error()))
			}
			return
		}

		s.mu.Lock()
		cb := s.sinkCB
		format := s.sinkFormat
		s.mu.Unlock()
		if cb == nil {
			continue
		}
		data := make([]byte, len(s.buf)*4)
		for i, v := range s.buf {
			putFloat32LE(data[i*4:], v)
		}
		chunk := &audioserver.Chunk{Data: data, Size: len(data), Stride: format.FrameBytes()}
		cb(chunk)
	}
}

func putFloat32LE(dst []byte, v float32) {
	bits := math.Float32bits(v)
	dst[0] = byte(bits)
	dst[1] = byte(bits >> 8)
	dst[2] = byte(bits >> 16)
	dst[3] = byte(bits >> 24)
}

// Iterate implements audioserver.Server: drains any queued discovery
// events (only ever the one-time initial burst for this adapter).
func (s *Server) Iterate(timeout time.Duration) ([]audioserver.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out, nil
}

// Globals implements audioserver.Server.
func (s *Server) Globals() []audioserver.Global {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audioserver.Global, 0, len(s.globals))
	for _, g := range s.globals {
		out = append(out, g)
	}
	return out
}

// BindMetadata implements audioserver.Server. There is no real metadata
// object behind this adapter; routing commands are accepted but have no
// effect beyond bookkeeping, since there is nothing else to route to.
func (s *Server) BindMetadata() error { return nil }

// SetMetadataProperty implements audioserver.Server as a no-op: a single
// hardware input has no alternate route to steer traffic toward.
func (s *Server) SetMetadataProperty(subject uint32, key, typeHint, value string) error {
	return nil
}

// CreateLink implements audioserver.Server as a no-op: there is no
// separate link-factory object behind a single fixed capture stream.
func (s *Server) CreateLink(spec graph.LinkSpec) error { return nil }

// RemoveLink implements audioserver.Server as a no-op, mirroring CreateLink.
func (s *Server) RemoveLink(spec graph.LinkSpec) error { return nil }

// RegisterSink implements audioserver.Server: the callback is invoked from
// captureLoop on every buffer once the stream is running.
func (s *Server) RegisterSink(props audioserver.SinkProps, cb audioserver.ProcessCallback) (uint32, audioserver.AudioFormat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	format := audioserver.AudioFormat{SampleRate: int(sampleRateOf(s.stream)), Channels: s.channels, BytesPerSample: 4}
	s.sinkCB = cb
	s.sinkFormat = format
	s.state.UpsertNode(graph.Node{ID: sinkNodeID, Name: props.Name, MediaClass: "Audio/Sink", IsVirtual: true})
	return sinkNodeID, format, nil
}

func sampleRateOf(stream *portaudio.Stream) float64 {
	info := stream.Info()
	if info == nil {
		return 48000
	}
	return info.SampleRate
}

// Subscribe implements audioserver.Server.
func (s *Server) Subscribe() audioserver.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := newSubscription()
	sub.push(s.state.Snapshot())
	s.subs = append(s.subs, sub)
	return sub
}

// SendCommand implements audioserver.Server. Only SyncCommand has any
// real effect here, since there is no pending server-side work queue to
// flush; Sync replies immediately.
func (s *Server) SendCommand(cmd audioserver.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return false
	}
	if sc, ok := cmd.(audioserver.SyncCommand); ok {
		close(sc.Reply)
	}
	return true
}

// Destroy stops the capture stream and closes all subscriptions. Sequence
// matters: Stop unblocks the blocking Read in captureLoop, wg.Wait lets
// the goroutine exit before Close frees the native stream object, exactly
// as the teacher's Stop does for its capture/playback pair.
func (s *Server) Destroy() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)

	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream != nil {
		stream.Stop()
	}

	s.wg.Wait()

	s.mu.Lock()
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
	s.destroyed = true
	for _, sub := range s.subs {
		sub.Close()
	}
	s.mu.Unlock()

	portaudio.Terminate()
}

var _ audioserver.Server = (*Server)(nil)
