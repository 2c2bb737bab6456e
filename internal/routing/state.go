// Package routing implements the routing monitor (spec.md §4.3): the
// loop that turns registry snapshots and UI commands into a desired
// link set and per-application routing decisions, sanitizing its state
// whenever nodes disappear from the server.
package routing

import "github.com/httpsworldview/openmeters/internal/graph"

// CaptureMode selects which side of the graph the virtual sink pulls
// audio from.
type CaptureMode int

const (
	// CaptureApplications routes every (non-disabled) application output
	// into the virtual sink, keeping playback on the hardware sink too.
	CaptureApplications CaptureMode = iota
	// CaptureDevice captures a single hardware device's output instead.
	CaptureDevice
)

// DeviceTarget names the hardware device CaptureDevice mode pulls from.
// HasNodeID false means "the current default output device".
type DeviceTarget struct {
	NodeID    uint32
	HasNodeID bool
}

// State is the routing monitor's durable state, spec.md §3's
// "Routing state".
type State struct {
	CaptureMode   CaptureMode
	DeviceTarget  DeviceTarget
	DisabledNodes map[uint32]bool
	RoutedTo      map[uint32]uint32
	CurrentLinks  map[graph.LinkSpec]bool
	HWSinkCache   *uint32
	VirtualSinkID *uint32
}

// NewState returns an empty routing state in CaptureApplications mode.
func NewState() State {
	return State{
		CaptureMode:   CaptureApplications,
		DisabledNodes: map[uint32]bool{},
		RoutedTo:      map[uint32]uint32{},
		CurrentLinks:  map[graph.LinkSpec]bool{},
	}
}

// sanitize purges disabled_nodes/routed_to entries whose node no longer
// appears in snap, and invalidates HWSinkCache if its node is gone —
// spec.md §4.3 step 2.
func (s *State) sanitize(snap graph.Snapshot) {
	present := make(map[uint32]bool, len(snap.Nodes))
	for _, n := range snap.Nodes {
		present[n.ID] = true
	}
	for id := range s.DisabledNodes {
		if !present[id] {
			delete(s.DisabledNodes, id)
		}
	}
	for id := range s.RoutedTo {
		if !present[id] {
			delete(s.RoutedTo, id)
		}
	}
	if s.HWSinkCache != nil && !present[*s.HWSinkCache] {
		s.HWSinkCache = nil
	}
}

// UIState is the read-only projection of State the renderer consumes,
// delivered through the single-slot latest-wins mailbox.
type UIState struct {
	CaptureMode   CaptureMode
	DeviceTarget  DeviceTarget
	DisabledNodes []uint32
	RoutedTo      map[uint32]uint32
}

func (s State) toUIState() UIState {
	disabled := make([]uint32, 0, len(s.DisabledNodes))
	for id := range s.DisabledNodes {
		disabled = append(disabled, id)
	}
	routed := make(map[uint32]uint32, len(s.RoutedTo))
	for k, v := range s.RoutedTo {
		routed[k] = v
	}
	return UIState{
		CaptureMode:   s.CaptureMode,
		DeviceTarget:  s.DeviceTarget,
		DisabledNodes: disabled,
		RoutedTo:      routed,
	}
}
