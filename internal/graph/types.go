// Package graph holds the discovery-protocol data model (nodes, ports,
// default targets, link specs, and registry snapshots) shared by the
// graph controller, the pairing algorithm, and the routing monitor.
// Mirrors original_source/pw_registry.rs's state/types split as
// state.go/types.go; the runtime loop lives in internal/graph/controller.
package graph

import "strings"

// Direction classifies a node or port's signal flow.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionInput
	DirectionOutput
)

// ChannelLabel is a recognized speaker-position label carried by a port's
// "audio.channel" property. Unrecognized or missing labels are
// ChannelUnknown.
type ChannelLabel int

const (
	ChannelUnknown ChannelLabel = iota
	ChannelFL
	ChannelFR
	ChannelFC
	ChannelLFE
	ChannelRL
	ChannelRR
	ChannelSL
	ChannelSR
	ChannelMono
)

// channelLabels maps the case-insensitive property string to its label,
// per spec.md §3's enumerated set.
var channelLabels = map[string]ChannelLabel{
	"fl":   ChannelFL,
	"fr":   ChannelFR,
	"fc":   ChannelFC,
	"lfe":  ChannelLFE,
	"rl":   ChannelRL,
	"rr":   ChannelRR,
	"sl":   ChannelSL,
	"sr":   ChannelSR,
	"mono": ChannelMono,
}

// ParseChannelLabel parses a property value (case-insensitive) into a
// ChannelLabel, returning ChannelUnknown for anything not recognized.
func ParseChannelLabel(s string) ChannelLabel {
	if v, ok := channelLabels[strings.ToLower(s)]; ok {
		return v
	}
	return ChannelUnknown
}

// Port is one port of a Node. NodeID is a non-owning back-reference
// resolved via the owning Node map, per spec.md §9's ownership note.
type Port struct {
	GlobalID  uint32
	PortID    uint32
	NodeID    uint32
	Channel   ChannelLabel
	Direction Direction
	IsMonitor bool
}

// Node is one node on the audio graph.
type Node struct {
	ID          uint32
	Name        string
	Description string
	MediaClass  string
	Direction   Direction
	IsVirtual   bool
	Properties  map[string]string
	Ports       []Port
}

// DefaultTarget tracks the server-advertised default sink or source.
type DefaultTarget struct {
	MetadataID uint32
	HasMetadataID bool
	NodeID     uint32
	HasNodeID  bool
	Name       string
	TypeHint   string
}

// LinkSpec identifies one desired or active link between an output port
// and an input port.
type LinkSpec struct {
	OutputNode uint32
	OutputPort uint32
	InputNode  uint32
	InputPort  uint32
}

// Defaults bundles the two tracked default targets.
type Defaults struct {
	AudioSink   DefaultTarget
	AudioSource DefaultTarget
}

// Snapshot is the immutable registry state published after every mutation.
// Serial increases monotonically (wraparound permitted, per spec.md §3).
type Snapshot struct {
	Serial      uint64
	Nodes       []Node // sorted by ID
	DeviceCount int
	Defaults    Defaults
}
