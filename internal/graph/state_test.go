package graph

import "testing"

func TestSerialMonotonic(t *testing.T) {
	s := NewState()
	s.UpsertNode(Node{ID: 1, Name: "a"})
	first := s.Snapshot().Serial
	s.UpsertNode(Node{ID: 2, Name: "b"})
	second := s.Snapshot().Serial
	if second != first+1 {
		t.Fatalf("serial = %d, want %d", second, first+1)
	}
}

func TestNodesSortedByID(t *testing.T) {
	s := NewState()
	s.UpsertNode(Node{ID: 5})
	s.UpsertNode(Node{ID: 1})
	s.UpsertNode(Node{ID: 3})
	snap := s.Snapshot()
	for i := 1; i < len(snap.Nodes); i++ {
		if snap.Nodes[i-1].ID > snap.Nodes[i].ID {
			t.Fatalf("nodes not sorted: %+v", snap.Nodes)
		}
	}
}

func TestPortRemovalPurgesIndexAndOwner(t *testing.T) {
	s := NewState()
	s.UpsertNode(Node{ID: 1})
	s.AddPort(Port{GlobalID: 100, PortID: 0, NodeID: 1})
	s.RemovePort(100)
	snap := s.Snapshot()
	if len(snap.Nodes[0].Ports) != 0 {
		t.Fatalf("port not removed from owning node: %+v", snap.Nodes[0].Ports)
	}
}

func TestRemoveNodePurgesItsPorts(t *testing.T) {
	s := NewState()
	s.UpsertNode(Node{ID: 1})
	s.AddPort(Port{GlobalID: 100, PortID: 0, NodeID: 1})
	s.RemoveNode(1)
	if _, ok := s.portIndex[100]; ok {
		t.Fatal("port index entry survived node removal")
	}
}

// TestDefaultSinkResolvesByNameS4 implements spec scenario S4: a metadata
// update naming "node.main" followed by that node appearing resolves
// defaults.audio_sink.node_id to the node's id.
func TestDefaultSinkResolvesByNameS4(t *testing.T) {
	s := NewState()
	s.ApplyDefaultAudioSink("node.main")
	s.UpsertNode(Node{ID: 42, Name: "node.main"})
	snap := s.Snapshot()
	if !snap.Defaults.AudioSink.HasNodeID || snap.Defaults.AudioSink.NodeID != 42 {
		t.Fatalf("AudioSink = %+v, want NodeID=42", snap.Defaults.AudioSink)
	}
}

func TestParseChannelLabel(t *testing.T) {
	cases := map[string]ChannelLabel{
		"FL": ChannelFL, "fr": ChannelFR, "Mono": ChannelMono, "bogus": ChannelUnknown,
	}
	for in, want := range cases {
		if got := ParseChannelLabel(in); got != want {
			t.Fatalf("ParseChannelLabel(%q) = %v, want %v", in, got, want)
		}
	}
}
