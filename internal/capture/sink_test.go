package capture

import (
	"testing"

	"github.com/httpsworldview/openmeters/internal/audioserver"
	"github.com/httpsworldview/openmeters/internal/audioserver/fakeserver"
)

func TestRegisterPushesDecodedSamplesOntoSharedRing(t *testing.T) {
	srv := fakeserver.New()
	sink, err := Register(srv, audioserver.SinkProps{Name: "meters", Channels: 2})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if sink.Format().Channels != 2 {
		t.Fatalf("Format().Channels = %d, want 2", sink.Format().Channels)
	}

	before := Ring().Len()
	srv.DeliverFrame([]float32{0.25, -0.25, 0.5, -0.5})
	after := Ring().Len()
	if after != before+1 && after != RingCapacity {
		t.Fatalf("ring length = %d, want %d (or capacity if already full)", after, before+1)
	}
}

func TestRingIsProcessWideSingleton(t *testing.T) {
	if Ring() != Ring() {
		t.Fatal("Ring() returned different instances")
	}
}

func TestDecodeFloat32LERoundTrips(t *testing.T) {
	srv := fakeserver.New()
	sink, err := Register(srv, audioserver.SinkProps{Name: "s", Channels: 1})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	var got []float32
	srv2 := fakeserver.New()
	_, _, _ = srv2.RegisterSink(audioserver.SinkProps{Name: "probe"}, func(c *audioserver.Chunk) {
		got = decodeFloat32LE(c.Data[:c.Size])
	})
	srv2.DeliverFrame([]float32{1.5, -2.5})
	if len(got) != 2 || got[0] != 1.5 || got[1] != -2.5 {
		t.Fatalf("decoded = %v, want [1.5 -2.5]", got)
	}
	_ = sink
}
