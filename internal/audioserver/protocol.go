// Package audioserver defines the abstract publish-subscribe audio-server
// protocol the graph controller and virtual sink depend on (spec.md §6):
// global enumeration, metadata property events, link creation, and a
// real-time sink process callback. No concrete PipeWire cgo binding exists
// in the example corpus available to this module (see DESIGN.md); two
// implementations ship instead: audioserver/fakeserver (deterministic,
// used by every test) and audioserver/portaudiosrv (a real capture device
// behind the same interface, via github.com/gordonklaus/portaudio).
package audioserver

import (
	"time"

	"github.com/httpsworldview/openmeters/internal/graph"
)

// GlobalKind classifies one entry in the server's global registry.
type GlobalKind int

const (
	GlobalNode GlobalKind = iota
	GlobalPort
	GlobalDevice
	GlobalMetadata
)

// Global is one object the server has advertised, with its raw property
// dict (parsed by the graph controller into Node/Port/etc).
type Global struct {
	ID    uint32
	Kind  GlobalKind
	Props map[string]string
}

// Event is one discovery-protocol occurrence delivered by Iterate.
type Event interface{ isEvent() }

// GlobalAdded is emitted when a new global (node, port, device, metadata)
// appears.
type GlobalAdded struct{ Global Global }

// GlobalRemoved is emitted when a previously seen global disappears.
type GlobalRemoved struct{ ID uint32 }

// MetadataPropertyChanged is emitted when a bound metadata proxy reports a
// property change (spec.md §4.1's "default.audio.sink"/"default.audio.source").
type MetadataPropertyChanged struct {
	Subject  uint32
	Key      string
	TypeHint string
	Value    string
}

func (GlobalAdded) isEvent()             {}
func (GlobalRemoved) isEvent()           {}
func (MetadataPropertyChanged) isEvent() {}

// AudioFormat is the negotiated sink format.
type AudioFormat struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// FrameBytes returns the negotiated frame size in bytes.
func (f AudioFormat) FrameBytes() int {
	return f.Channels * f.BytesPerSample
}

// Chunk is one real-time process callback's read/write buffer, per
// spec.md §6's process-callback contract: the core reads Data[:Size] and
// must write back {Offset, Size, Stride} before returning.
type Chunk struct {
	Data   []byte
	Size   int
	Stride int
	Offset int
}

// ProcessCallback is invoked on the server's real-time thread once per
// sink buffer. Implementations must never block.
type ProcessCallback func(chunk *Chunk)

// SinkProps describes the virtual sink node to register.
type SinkProps struct {
	Name        string
	Description string
	Channels    int
}

// Command is a message sent to the server via SendCommand.
type Command interface{ isCommand() }

// SetLinksCommand reconciles the active link set to exactly Links.
type SetLinksCommand struct{ Links []graph.LinkSpec }

// RouteNodeCommand writes target.object/target.node metadata for Subject.
type RouteNodeCommand struct {
	Subject    uint32
	TargetNode uint32
}

// ResetRouteCommand clears Subject's target.object/target.node metadata.
type ResetRouteCommand struct{ Subject uint32 }

// SyncCommand flushes pending server work; Reply is closed once flushed.
type SyncCommand struct{ Reply chan struct{} }

func (SetLinksCommand) isCommand()  {}
func (RouteNodeCommand) isCommand() {}
func (ResetRouteCommand) isCommand() {}
func (SyncCommand) isCommand()      {}

// Subscription delivers registry snapshots: the current snapshot
// immediately on first call, then future updates.
type Subscription interface {
	RecvTimeout(timeout time.Duration) (graph.Snapshot, bool)
	Close()
}

// Server is the abstract audio-server connection. Exactly one goroutine
// (the graph controller) calls Iterate/Globals/BindMetadata/CreateLink/
// RemoveLink; RegisterSink's callback runs on the server's own real-time
// thread.
type Server interface {
	// Iterate performs one bounded-wait poll of the server connection,
	// returning any discovery-protocol events observed.
	Iterate(timeout time.Duration) ([]Event, error)

	// Globals returns every global currently known to the server.
	Globals() []Global

	// BindMetadata binds the preferred metadata object for routing
	// property writes; subsequent property changes surface as
	// MetadataPropertyChanged events from Iterate.
	BindMetadata() error

	// SetMetadataProperty writes a property of typeHint on subject to the
	// bound metadata object (spec.md §4.1: type "Spa:Id" for routing keys).
	SetMetadataProperty(subject uint32, key, typeHint, value string) error

	// CreateLink creates a Link object from the link-factory.
	CreateLink(spec graph.LinkSpec) error
	// RemoveLink destroys a previously created link.
	RemoveLink(spec graph.LinkSpec) error

	// RegisterSink registers a playback sink node and returns its node id
	// and negotiated format.
	RegisterSink(props SinkProps, cb ProcessCallback) (nodeID uint32, format AudioFormat, err error)

	// Subscribe returns a new Subscription to registry snapshots.
	Subscribe() Subscription
	// SendCommand enqueues a command for the controller to process;
	// returns false if the server has been destroyed.
	SendCommand(cmd Command) bool

	// Destroy tears down the connection.
	Destroy()
}

// SetLinks is a convenience wrapper around SendCommand(SetLinksCommand{...}).
func SetLinks(s Server, links []graph.LinkSpec) bool {
	return s.SendCommand(SetLinksCommand{Links: links})
}

// RouteNode is a convenience wrapper around SendCommand(RouteNodeCommand{...}).
func RouteNode(s Server, subject, targetNode uint32) bool {
	return s.SendCommand(RouteNodeCommand{Subject: subject, TargetNode: targetNode})
}

// ResetRoute is a convenience wrapper around SendCommand(ResetRouteCommand{...}).
func ResetRoute(s Server, subject uint32) bool {
	return s.SendCommand(ResetRouteCommand{Subject: subject})
}

// Sync flushes pending server work and blocks until it completes.
func Sync(s Server) bool {
	reply := make(chan struct{})
	if !s.SendCommand(SyncCommand{Reply: reply}) {
		return false
	}
	<-reply
	return true
}
