package pairing

import (
	"testing"

	"github.com/httpsworldview/openmeters/internal/graph"
)

func TestPairByLabelS2(t *testing.T) {
	sources := []graph.Port{{NodeID: 1, PortID: 1, Channel: graph.ChannelFR}}
	targets := []graph.Port{
		{NodeID: 0, PortID: 0, Channel: graph.ChannelFL},
		{NodeID: 1, PortID: 1, Channel: graph.ChannelFR},
	}
	got := Pairs(sources, targets)
	if len(got) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(got))
	}
	if got[0].Source.NodeID != 1 || got[0].Target.NodeID != 1 {
		t.Fatalf("pairs = %+v, want (1,1)", got)
	}
}

func TestPairPositionallyS3(t *testing.T) {
	sources := []graph.Port{{NodeID: 0, PortID: 0}, {NodeID: 1, PortID: 1}}
	targets := []graph.Port{{NodeID: 0, PortID: 0}, {NodeID: 1, PortID: 1}}
	got := Pairs(sources, targets)
	if len(got) != 2 {
		t.Fatalf("len(pairs) = %d, want 2", len(got))
	}
	if got[0].Source.NodeID != 0 || got[0].Target.NodeID != 0 {
		t.Fatalf("pairs[0] = %+v, want (0,0)", got[0])
	}
	if got[1].Source.NodeID != 1 || got[1].Target.NodeID != 1 {
		t.Fatalf("pairs[1] = %+v, want (1,1)", got[1])
	}
}

func TestDeterminismIsPermutationInvariant(t *testing.T) {
	a := Pairs(
		[]graph.Port{{PortID: 2, Channel: graph.ChannelFR}, {PortID: 1, Channel: graph.ChannelFL}},
		[]graph.Port{{PortID: 1, Channel: graph.ChannelFL}, {PortID: 2, Channel: graph.ChannelFR}},
	)
	b := Pairs(
		[]graph.Port{{PortID: 1, Channel: graph.ChannelFL}, {PortID: 2, Channel: graph.ChannelFR}},
		[]graph.Port{{PortID: 2, Channel: graph.ChannelFR}, {PortID: 1, Channel: graph.ChannelFL}},
	)
	if len(a) != len(b) {
		t.Fatalf("len(a)=%d len(b)=%d", len(a), len(b))
	}
	for i := range a {
		if a[i].Source.PortID != b[i].Source.PortID || a[i].Target.PortID != b[i].Target.PortID {
			t.Fatalf("pairing not permutation-invariant: a=%+v b=%+v", a, b)
		}
	}
}

func TestUnlabeledFallsBackToPortID(t *testing.T) {
	sources := []graph.Port{{PortID: 0, Channel: graph.ChannelFL}, {PortID: 1}}
	targets := []graph.Port{{PortID: 0}, {PortID: 1}}
	got := Pairs(sources, targets)
	if len(got) != 2 {
		t.Fatalf("len(pairs) = %d, want 2 (positional fallback)", len(got))
	}
}

func TestEachTargetUsedAtMostOnce(t *testing.T) {
	sources := []graph.Port{{PortID: 0, Channel: graph.ChannelFL}, {PortID: 1, Channel: graph.ChannelFL}}
	targets := []graph.Port{{PortID: 0, Channel: graph.ChannelFL}}
	got := Pairs(sources, targets)
	if len(got) != 1 {
		t.Fatalf("len(pairs) = %d, want 1 (only one FL target available)", len(got))
	}
}
