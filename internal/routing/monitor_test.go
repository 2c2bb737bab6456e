package routing

import (
	"testing"
	"time"

	"github.com/httpsworldview/openmeters/internal/audioserver"
	"github.com/httpsworldview/openmeters/internal/audioserver/fakeserver"
	"github.com/httpsworldview/openmeters/internal/graph"
	"github.com/httpsworldview/openmeters/internal/graph/controller"
)

func settle() { time.Sleep(50 * time.Millisecond) }

// newHarness wires a fakeserver behind a real graph controller, the same
// shape the root Engine facade uses, so metadata/port bookkeeping goes
// through the production code path instead of the fake's internal mirror.
func newHarness(t *testing.T) (*fakeserver.Server, *controller.Controller) {
	t.Helper()
	srv := fakeserver.New()
	c := controller.New(srv, nil)
	c.Start()
	t.Cleanup(c.Shutdown)
	return srv, c
}

func TestApplicationsModeLinksVirtualSinkToHardwareSink(t *testing.T) {
	srv, c := newHarness(t)
	srv.AddGlobal(audioserver.Global{ID: 1, Kind: audioserver.GlobalNode, Props: map[string]string{"node.name": "hw", "media.class": "Audio/Sink"}})
	srv.AddGlobal(audioserver.Global{ID: 10, Kind: audioserver.GlobalPort, Props: map[string]string{"node.id": "1", "port.id": "0", "port.direction": "in"}})

	srv.AddGlobal(audioserver.Global{ID: 2, Kind: audioserver.GlobalNode, Props: map[string]string{"node.name": "virt", "media.class": "Audio/Sink"}})
	srv.AddGlobal(audioserver.Global{ID: 20, Kind: audioserver.GlobalPort, Props: map[string]string{"node.id": "2", "port.id": "0", "port.direction": "out", "port.monitor": "true"}})

	srv.SetMetadataProperty(0, "default.audio.sink", "Spa:Id", "hw")

	sub := c.Subscribe()
	m := New(srv, sub, nil)
	m.SetVirtualSinkID(2)
	m.Start()
	defer m.Shutdown()

	settle()

	links := srv.Links()
	if len(links) != 1 {
		t.Fatalf("links = %v, want 1 entry", links)
	}
	for l := range links {
		if l.OutputNode != 2 || l.InputNode != 1 {
			t.Fatalf("link = %+v, want virtual(2) -> hw(1)", l)
		}
	}
}

func TestDisabledNodeCommandUpdatesUIState(t *testing.T) {
	srv, c := newHarness(t)
	srv.AddGlobal(audioserver.Global{ID: 1, Kind: audioserver.GlobalNode, Props: map[string]string{"node.name": "hw", "media.class": "Audio/Sink"}})
	srv.AddGlobal(audioserver.Global{ID: 3, Kind: audioserver.GlobalNode, Props: map[string]string{"node.name": "app"}})
	srv.SetMetadataProperty(0, "default.audio.sink", "Spa:Id", "hw")

	sub := c.Subscribe()
	m := New(srv, sub, nil)
	m.SetVirtualSinkID(2)
	m.Start()
	defer m.Shutdown()
	settle()

	m.Submit(SetNodeDisabledCommand{NodeID: 3, Disabled: true})
	// The command is drained on the loop's next pass, after the pending
	// snapshot wait, and then reconciled against the latest snapshot.
	time.Sleep(3 * snapshotTimeout)

	state, ok := m.UIState()
	if !ok {
		t.Fatal("expected a published UI state after the command")
	}
	if len(state.DisabledNodes) != 1 || state.DisabledNodes[0] != 3 {
		t.Fatalf("DisabledNodes = %v, want [3]", state.DisabledNodes)
	}
}

func TestShutdownRestoresRoutedApplicationsToHardwareSink(t *testing.T) {
	srv, c := newHarness(t)
	sub := c.Subscribe()
	m := New(srv, sub, nil)

	m.mu.Lock()
	hw := uint32(1)
	m.state.HWSinkCache = &hw
	m.state.RoutedTo[9] = 2
	m.mu.Unlock()

	m.restoreAll()

	if len(m.state.RoutedTo) != 0 {
		t.Fatalf("RoutedTo not cleared: %+v", m.state.RoutedTo)
	}
}

func TestSelectPortsFallsBackThroughPreferenceTiers(t *testing.T) {
	node := graph.Node{Ports: []graph.Port{
		{PortID: 0, Direction: graph.DirectionOutput, IsMonitor: false},
		{PortID: 1, Direction: graph.DirectionInput, IsMonitor: false},
	}}
	got := selectOutputPorts(node)
	if len(got) != 1 || got[0].PortID != 0 {
		t.Fatalf("selectOutputPorts fallback = %+v", got)
	}
}

func TestIsAudioApplicationOutputRequiresNameAndClass(t *testing.T) {
	n := graph.Node{Direction: graph.DirectionOutput, MediaClass: "Stream/Output/Audio", Properties: map[string]string{"application.name": "browser"}}
	if !isAudioApplicationOutput(n) {
		t.Fatal("expected node to be classified as an audio application output")
	}
	n.Properties = nil
	if isAudioApplicationOutput(n) {
		t.Fatal("node with no application name should not classify as an app output")
	}
}
