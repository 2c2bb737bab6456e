// Package fakeserver implements audioserver.Server as a deterministic
// in-memory graph, with no native library or real audio hardware
// dependency. It backs every test in this module and is also suitable for
// driving the pipeline in demos. Test code drives it by calling AddGlobal/
// RemoveGlobal/SetMetadataProperty directly; Iterate waits up to its
// timeout for queued events and drains them.
package fakeserver

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/httpsworldview/openmeters/internal/audioserver"
	"github.com/httpsworldview/openmeters/internal/graph"
)

// Server is a deterministic in-memory audioserver.Server.
type Server struct {
	mu         sync.Mutex
	eventsCond *sync.Cond

	globals map[uint32]audioserver.Global
	events  []audioserver.Event
	links   map[graph.LinkSpec]bool

	metadataBound bool

	nextSinkNode uint32
	sinkProps    audioserver.SinkProps
	sinkCB       audioserver.ProcessCallback
	sinkFormat   audioserver.AudioFormat

	destroyed bool

	subs []*subscription

	state *graph.State
}

// New returns an empty fake server.
func New() *Server {
	s := &Server{
		globals: map[uint32]audioserver.Global{},
		links:   map[graph.LinkSpec]bool{},
		state:   graph.NewState(),
	}
	s.eventsCond = sync.NewCond(&s.mu)
	return s
}

// queueEventLocked appends ev to the pending event queue and wakes any
// Iterate call blocked waiting for one. Callers must hold s.mu.
func (s *Server) queueEventLocked(ev audioserver.Event) {
	s.events = append(s.events, ev)
	s.eventsCond.Broadcast()
}

// AddGlobal registers a global and queues a GlobalAdded event, applying it
// to the internal registry mirror so Globals()/snapshots stay consistent.
func (s *Server) AddGlobal(g audioserver.Global) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals[g.ID] = g
	s.queueEventLocked(audioserver.GlobalAdded{Global: g})
	s.applyGlobal(g)
}

// RemoveGlobal deregisters a global and queues a GlobalRemoved event.
func (s *Server) RemoveGlobal(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.globals, id)
	s.queueEventLocked(audioserver.GlobalRemoved{ID: id})
	s.state.RemoveNode(id)
	s.publishLocked()
}

// SetMetadataProperty simulates a metadata property change event, as the
// controller would observe from a real server's metadata proxy.
func (s *Server) SetMetadataProperty(subject uint32, key, typeHint, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueEventLocked(audioserver.MetadataPropertyChanged{Subject: subject, Key: key, TypeHint: typeHint, Value: value})
	return nil
}

func (s *Server) applyGlobal(g audioserver.Global) {
	switch g.Kind {
	case audioserver.GlobalNode:
		s.state.UpsertNode(graph.Node{ID: g.ID, Name: g.Props["node.name"], Properties: g.Props})
	case audioserver.GlobalPort:
		// Test helpers call AddPort directly on the embedded state via
		// Server.AddPort for finer control over node/port wiring.
	case audioserver.GlobalDevice:
		s.state.SetDeviceCount(len(s.globals))
	}
	s.publishLocked()
}

// AddPort is a fakeserver-only helper (not part of audioserver.Server)
// letting tests wire a port onto an already-added node.
func (s *Server) AddPort(p graph.Port) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AddPort(p)
	s.publishLocked()
}

// Iterate implements audioserver.Server: a bounded-wait poll that blocks
// until an event is queued, the server is destroyed, or timeout elapses,
// matching the real protocol's "short bounded wait" iteration (spec.md
// §4.1) instead of returning instantly and forcing the caller to spin.
func (s *Server) Iterate(timeout time.Duration) ([]audioserver.Event, error) {
	deadline := time.Now().Add(timeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.events) == 0 && !s.destroyed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.AfterFunc(remaining, s.eventsCond.Broadcast)
		s.eventsCond.Wait()
		timer.Stop()
	}
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

// BindMetadata implements audioserver.Server.
func (s *Server) BindMetadata() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadataBound = true
	return nil
}

// CreateLink implements audioserver.Server.
func (s *Server) CreateLink(spec graph.LinkSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[spec] = true
	return nil
}

// RemoveLink implements audioserver.Server.
func (s *Server) RemoveLink(spec graph.LinkSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links, spec)
	return nil
}

// Links returns the currently active link set, for test assertions.
func (s *Server) Links() map[graph.LinkSpec]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[graph.LinkSpec]bool, len(s.links))
	for k, v := range s.links {
		out[k] = v
	}
	return out
}

// RegisterSink implements audioserver.Server.
func (s *Server) RegisterSink(props audioserver.SinkProps, cb audioserver.ProcessCallback) (uint32, audioserver.AudioFormat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSinkNode++
	id := s.nextSinkNode
	s.sinkProps = props
	s.sinkCB = cb
	s.sinkFormat = audioserver.AudioFormat{SampleRate: 48000, Channels: props.Channels, BytesPerSample: 4}
	s.globals[id] = audioserver.Global{ID: id, Kind: audioserver.GlobalNode, Props: map[string]string{
		"node.name": props.Name, "media.class": "Audio/Sink",
	}}
	s.state.UpsertNode(graph.Node{ID: id, Name: props.Name, MediaClass: "Audio/Sink", IsVirtual: true})
	s.publishLocked()
	return id, s.sinkFormat, nil
}

// DeliverFrame invokes the registered sink callback with raw interleaved
// float32 samples, as if it were a real-time server callback. Test-only.
func (s *Server) DeliverFrame(samples []float32) {
	s.mu.Lock()
	cb := s.sinkCB
	format := s.sinkFormat
	s.mu.Unlock()
	if cb == nil {
		return
	}
	data := make([]byte, len(samples)*4)
	for i, v := range samples {
		putFloat32LE(data[i*4:], v)
	}
	chunk := &audioserver.Chunk{Data: data, Size: len(data), Stride: format.FrameBytes()}
	cb(chunk)
}

func putFloat32LE(dst []byte, v float32) {
	bits := math.Float32bits(v)
	dst[0] = byte(bits)
	dst[1] = byte(bits >> 8)
	dst[2] = byte(bits >> 16)
	dst[3] = byte(bits >> 24)
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

// SendCommand implements audioserver.Server.
func (s *Server) SendCommand(cmd audioserver.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return false
	}
	switch c := cmd.(type) {
	case audioserver.SetLinksCommand:
		s.links = map[graph.LinkSpec]bool{}
		for _, l := range c.Links {
			s.links[l] = true
		}
	case audioserver.RouteNodeCommand:
		s.queueEventLocked(audioserver.MetadataPropertyChanged{Subject: c.Subject, Key: "target.node", TypeHint: "Spa:Id", Value: strconv.FormatUint(uint64(c.TargetNode), 10)})
	case audioserver.ResetRouteCommand:
		s.queueEventLocked(audioserver.MetadataPropertyChanged{Subject: c.Subject, Key: "target.node", TypeHint: "Spa:Id", Value: ""})
	case audioserver.SyncCommand:
		close(c.Reply)
	}
	return true
}

// Destroy implements audioserver.Server.
func (s *Server) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	for _, sub := range s.subs {
		sub.Close()
	}
	s.eventsCond.Broadcast()
}

func (s *Server) publishLocked() {
	snap := s.state.Snapshot()
	live := s.subs[:0]
	for _, sub := range s.subs {
		if sub.push(snap) {
			live = append(live, sub)
		}
	}
	s.subs = live
}

var _ audioserver.Server = (*Server)(nil)
