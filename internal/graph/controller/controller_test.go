package controller

import (
	"testing"
	"time"

	"github.com/httpsworldview/openmeters/internal/audioserver"
	"github.com/httpsworldview/openmeters/internal/audioserver/fakeserver"
)

func TestUpsertsNodeFromGlobalAdded(t *testing.T) {
	srv := fakeserver.New()
	c := New(srv, nil)
	c.Start()
	defer c.Shutdown()

	sub := c.Subscribe()
	sub.RecvTimeout(time.Second) // initial empty snapshot

	srv.AddGlobal(audioserver.Global{ID: 7, Kind: audioserver.GlobalNode, Props: map[string]string{
		"node.name": "speaker", "media.class": "Audio/Sink",
	}})

	snap, ok := sub.RecvTimeout(time.Second)
	if !ok {
		t.Fatal("RecvTimeout timed out waiting for node upsert")
	}
	if len(snap.Nodes) != 1 || snap.Nodes[0].ID != 7 || snap.Nodes[0].Name != "speaker" {
		t.Fatalf("snapshot nodes = %+v", snap.Nodes)
	}
	if snap.Nodes[0].Direction != 1 { // DirectionInput
		t.Fatalf("direction = %v, want DirectionInput for Audio/Sink", snap.Nodes[0].Direction)
	}
}

func TestMetadataResolvesDefaultSinkByPlainNameAndJSON(t *testing.T) {
	srv := fakeserver.New()
	c := New(srv, nil)
	c.Start()
	defer c.Shutdown()

	sub := c.Subscribe()
	sub.RecvTimeout(time.Second)

	srv.SetMetadataProperty(0, "default.audio.sink", "Spa:Id", `{"name":"node.main"}`)
	srv.AddGlobal(audioserver.Global{ID: 3, Kind: audioserver.GlobalNode, Props: map[string]string{"node.name": "node.main"}})

	var snap audioserver.Subscription = sub
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s, ok := snap.RecvTimeout(200 * time.Millisecond)
		if !ok {
			continue
		}
		if s.Defaults.AudioSink.HasNodeID && s.Defaults.AudioSink.NodeID == 3 {
			return
		}
	}
	t.Fatal("default audio sink never resolved to node 3")
}

func TestPortFromPropsRequiresNumericIDs(t *testing.T) {
	if _, ok := portFromProps(1, map[string]string{"node.id": "x", "port.id": "0"}); ok {
		t.Fatal("expected failure parsing non-numeric node.id")
	}
	p, ok := portFromProps(10, map[string]string{"node.id": "2", "port.id": "1", "audio.channel": "FL", "port.direction": "out"})
	if !ok {
		t.Fatal("expected successful parse")
	}
	if p.NodeID != 2 || p.PortID != 1 {
		t.Fatalf("port = %+v", p)
	}
}
