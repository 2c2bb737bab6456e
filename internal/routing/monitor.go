// Package routing's Monitor is the second of the two dedicated
// event-loop goroutines spec.md describes (the graph controller in
// internal/graph/controller is the first). Grounded on the same
// AudioEngine goroutine shape from client/audio.go: a running flag, a
// stop channel, a blocking per-iteration receive.
package routing

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/httpsworldview/openmeters/internal/audioserver"
	"github.com/httpsworldview/openmeters/internal/graph"
	"github.com/httpsworldview/openmeters/internal/graph/pairing"
)

const snapshotTimeout = 100 * time.Millisecond

// Monitor drives the routing state machine: spec.md §4.3.
type Monitor struct {
	server    audioserver.Server
	snapshots audioserver.Subscription
	log       *slog.Logger

	uiCmds chan UICommand
	uiOut  uiSlot

	mu    sync.Mutex
	state State

	warnedMissingDeviceNode bool

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New returns a monitor that reconciles snapshots from sub against
// commands sent to server.
func New(server audioserver.Server, sub audioserver.Subscription, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		server:    server,
		snapshots: sub,
		log:       logger.With(slog.String("component", "routing.monitor")),
		uiCmds:    make(chan UICommand, 32),
		state:     NewState(),
	}
}

// SetVirtualSinkID records the node id of the registered virtual sink,
// once internal/capture has registered it.
func (m *Monitor) SetVirtualSinkID(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := id
	m.state.VirtualSinkID = &v
}

// Submit enqueues a UI command without blocking; if the queue is full
// the command is dropped, since the next reconcile pass will re-derive
// state from whatever commands did land.
func (m *Monitor) Submit(cmd UICommand) {
	select {
	case m.uiCmds <- cmd:
	default:
		m.log.Warn("UI command queue full, dropping command")
	}
}

// UIState returns the latest published routing state for the renderer,
// or ok=false if nothing has changed since the last call.
func (m *Monitor) UIState() (UIState, bool) {
	return m.uiOut.Get()
}

// Start launches the monitor's event loop goroutine.
func (m *Monitor) Start() {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	m.stopCh = make(chan struct{})
	m.wg.Add(1)
	go m.run()
}

// Shutdown restores every routed application to the hardware sink
// (spec.md §4.3 step 7) and stops the loop.
func (m *Monitor) Shutdown() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) run() {
	defer m.wg.Done()
	var last graph.Snapshot
	haveLast := false
	for {
		select {
		case <-m.stopCh:
			m.restoreAll()
			return
		default:
		}

		changed := m.drainUICommands()

		snap, ok := m.snapshots.RecvTimeout(snapshotTimeout)
		if ok {
			last, haveLast = snap, true
		} else if !changed || !haveLast {
			continue
		}
		m.reconcile(last)
	}
}

func (m *Monitor) drainUICommands() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := false
	for {
		select {
		case cmd := <-m.uiCmds:
			m.applyLocked(cmd)
			changed = true
		default:
			return changed
		}
	}
}

func (m *Monitor) applyLocked(cmd UICommand) {
	switch c := cmd.(type) {
	case SetCaptureModeCommand:
		m.state.CaptureMode = c.Mode
	case SetDeviceTargetCommand:
		m.state.DeviceTarget = c.Target
	case SetNodeDisabledCommand:
		if c.Disabled {
			m.state.DisabledNodes[c.NodeID] = true
		} else {
			delete(m.state.DisabledNodes, c.NodeID)
		}
	}
}

func (m *Monitor) reconcile(snap graph.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.sanitize(snap)

	src, tgt, ok := m.selectSourceTarget(snap)
	if ok {
		desired := m.desiredLinks(src, tgt)
		if !linkSetsEqual(desired, m.state.CurrentLinks) {
			if audioserver.SetLinks(m.server, linkSetSlice(desired)) {
				m.state.CurrentLinks = desired
			}
		}
	}

	m.routeApplications(snap)
	m.uiOut.set(m.state.toUIState())
}

// selectSourceTarget implements spec.md §4.3 step 3.
func (m *Monitor) selectSourceTarget(snap graph.Snapshot) (graph.Node, graph.Node, bool) {
	hw, hwOK := m.hardwareSink(snap)

	switch m.state.CaptureMode {
	case CaptureApplications:
		virt, vOK := m.virtualSink(snap)
		if !vOK || !hwOK {
			return graph.Node{}, graph.Node{}, false
		}
		return virt, hw, true

	case CaptureDevice:
		virt, vOK := m.virtualSink(snap)
		if !vOK {
			return graph.Node{}, graph.Node{}, false
		}
		if !m.state.DeviceTarget.HasNodeID {
			if !hwOK {
				return graph.Node{}, graph.Node{}, false
			}
			m.warnedMissingDeviceNode = false
			return hw, virt, true
		}
		if node, ok := findNode(snap, m.state.DeviceTarget.NodeID); ok {
			m.warnedMissingDeviceNode = false
			return node, virt, true
		}
		if !m.warnedMissingDeviceNode {
			m.log.Warn("device capture target missing, falling back to hardware sink", slog.Uint64("node_id", uint64(m.state.DeviceTarget.NodeID)))
			m.warnedMissingDeviceNode = true
		}
		if !hwOK {
			return graph.Node{}, graph.Node{}, false
		}
		return hw, virt, true
	}
	return graph.Node{}, graph.Node{}, false
}

// hardwareSink resolves the default (or cached) hardware sink node,
// invalidating/refreshing HWSinkCache as it goes.
func (m *Monitor) hardwareSink(snap graph.Snapshot) (graph.Node, bool) {
	if snap.Defaults.AudioSink.HasNodeID {
		if n, ok := findNode(snap, snap.Defaults.AudioSink.NodeID); ok {
			id := n.ID
			m.state.HWSinkCache = &id
			return n, true
		}
	}
	if m.state.HWSinkCache != nil {
		if n, ok := findNode(snap, *m.state.HWSinkCache); ok {
			return n, true
		}
	}
	return graph.Node{}, false
}

func (m *Monitor) virtualSink(snap graph.Snapshot) (graph.Node, bool) {
	if m.state.VirtualSinkID == nil {
		return graph.Node{}, false
	}
	return findNode(snap, *m.state.VirtualSinkID)
}

func (m *Monitor) desiredLinks(src, tgt graph.Node) map[graph.LinkSpec]bool {
	pairs := pairing.Pairs(selectOutputPorts(src), selectInputPorts(tgt))
	out := make(map[graph.LinkSpec]bool, len(pairs))
	for _, p := range pairs {
		out[graph.LinkSpec{
			OutputNode: p.Source.NodeID, OutputPort: p.Source.PortID,
			InputNode: p.Target.NodeID, InputPort: p.Target.PortID,
		}] = true
	}
	return out
}

// routeApplications implements spec.md §4.3 step 6.
func (m *Monitor) routeApplications(snap graph.Snapshot) {
	hw, hwOK := m.hardwareSink(snap)
	if !hwOK {
		return
	}
	var virtID uint32
	hasVirt := m.state.VirtualSinkID != nil
	if hasVirt {
		virtID = *m.state.VirtualSinkID
	}

	for _, n := range snap.Nodes {
		if hasVirt && n.ID == virtID {
			continue
		}
		if !isAudioApplicationOutput(n) {
			continue
		}
		target := hw.ID
		if hasVirt && m.state.CaptureMode == CaptureApplications && !m.state.DisabledNodes[n.ID] {
			target = virtID
		}
		if m.state.RoutedTo[n.ID] == target {
			continue
		}
		if audioserver.RouteNode(m.server, n.ID, target) {
			m.state.RoutedTo[n.ID] = target
		}
	}
}

// restoreAll implements spec.md §4.3 step 7: route every tracked
// application back to the hardware sink, Sync, then clear its route.
func (m *Monitor) restoreAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	hw := m.state.HWSinkCache
	if hw == nil {
		return
	}
	for nodeID := range m.state.RoutedTo {
		audioserver.RouteNode(m.server, nodeID, *hw)
		audioserver.Sync(m.server)
		audioserver.ResetRoute(m.server, nodeID)
		delete(m.state.RoutedTo, nodeID)
	}
}

func linkSetsEqual(a, b map[graph.LinkSpec]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func linkSetSlice(links map[graph.LinkSpec]bool) []graph.LinkSpec {
	out := make([]graph.LinkSpec, 0, len(links))
	for l := range links {
		out = append(out, l)
	}
	return out
}
