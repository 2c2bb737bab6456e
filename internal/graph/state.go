package graph

import "sort"

// portIndex entry: where a global port id currently lives.
type portLocation struct {
	nodeID uint32
	portID uint32
}

// State is the mutable registry model owned exclusively by the graph
// controller goroutine (spec.md §4.1/§9: "Node → Port only; Port.node_id is
// a non-owning back-reference resolved via the node map"). External
// readers only ever see immutable Snapshot values cloned off State; they
// never touch State directly.
type State struct {
	serial      uint64
	nodes       map[uint32]*Node
	portIndex   map[uint32]portLocation // global_id -> (node_id, port_id)
	deviceCount int
	defaults    Defaults
}

// NewState returns an empty registry state.
func NewState() *State {
	return &State{
		nodes:     map[uint32]*Node{},
		portIndex: map[uint32]portLocation{},
	}
}

// UpsertNode inserts or replaces a node by ID, preserving its existing
// ports if the incoming node has none set (a metadata-only update).
func (s *State) UpsertNode(n Node) {
	if existing, ok := s.nodes[n.ID]; ok && n.Ports == nil {
		n.Ports = existing.Ports
	}
	cp := n
	s.nodes[n.ID] = &cp
	s.reconcileDefaultByName(&cp)
	s.bump()
}

// reconcileDefaultByName resolves a DefaultTarget's NodeID against name
// when the cached id no longer exists in the node map (spec.md §4.1).
func (s *State) reconcileDefaultByName(n *Node) {
	for _, dt := range []*DefaultTarget{&s.defaults.AudioSink, &s.defaults.AudioSource} {
		if dt.Name == "" {
			continue
		}
		if dt.HasNodeID {
			if _, ok := s.nodes[dt.NodeID]; ok {
				continue
			}
		}
		if dt.Name == n.Name {
			dt.NodeID = n.ID
			dt.HasNodeID = true
		}
	}
}

// RemoveNode removes a node and every port index entry pointing at it.
func (s *State) RemoveNode(id uint32) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	for _, p := range n.Ports {
		delete(s.portIndex, p.GlobalID)
	}
	delete(s.nodes, id)
	s.bump()
}

// AddPort inserts a port into its owning node and indexes it by global id.
func (s *State) AddPort(p Port) {
	n, ok := s.nodes[p.NodeID]
	if !ok {
		return
	}
	n.Ports = append(n.Ports, p)
	s.portIndex[p.GlobalID] = portLocation{nodeID: p.NodeID, portID: p.PortID}
	s.bump()
}

// RemovePort resolves globalID via the index, removes it from its owning
// node, and drops the index entry.
func (s *State) RemovePort(globalID uint32) {
	loc, ok := s.portIndex[globalID]
	if !ok {
		return
	}
	n, ok := s.nodes[loc.nodeID]
	if ok {
		for i, p := range n.Ports {
			if p.GlobalID == globalID {
				n.Ports = append(n.Ports[:i], n.Ports[i+1:]...)
				break
			}
		}
	}
	delete(s.portIndex, globalID)
	s.bump()
}

// ApplyDefaultAudioSink sets the default sink target by name (resolving to
// a current node id if one matches) per spec.md §4.1's metadata handling.
func (s *State) ApplyDefaultAudioSink(name string) {
	s.defaults.AudioSink = s.resolveTarget(name)
	s.bump()
}

// ApplyDefaultAudioSource mirrors ApplyDefaultAudioSink for sources.
func (s *State) ApplyDefaultAudioSource(name string) {
	s.defaults.AudioSource = s.resolveTarget(name)
	s.bump()
}

func (s *State) resolveTarget(name string) DefaultTarget {
	dt := DefaultTarget{Name: name}
	for _, n := range s.nodes {
		if n.Name == name {
			dt.NodeID = n.ID
			dt.HasNodeID = true
			break
		}
	}
	return dt
}

// SetDeviceCount records the current device-global count for the snapshot.
func (s *State) SetDeviceCount(n int) {
	s.deviceCount = n
	s.bump()
}

func (s *State) bump() {
	s.serial++
}

// Snapshot clones the current state into an immutable value, with nodes
// sorted by id (spec.md §3).
func (s *State) Snapshot() Snapshot {
	nodes := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		cp := *n
		cp.Ports = append([]Port(nil), n.Ports...)
		nodes = append(nodes, cp)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return Snapshot{
		Serial:      s.serial,
		Nodes:       nodes,
		DeviceCount: s.deviceCount,
		Defaults:    s.defaults,
	}
}
