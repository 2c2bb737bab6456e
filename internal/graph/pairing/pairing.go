// Package pairing implements the deterministic channel-aware port pairing
// algorithm (spec.md §4.2): sort both sides by port id, pair by channel
// label when every port carries one, otherwise pair positionally.
package pairing

import (
	"sort"

	"github.com/httpsworldview/openmeters/internal/graph"
)

// Pair is one matched (source, target) port pair.
type Pair struct {
	Source graph.Port
	Target graph.Port
}

// Pairs computes the deterministic pairing of sources against targets.
// Each target is used at most once; a source with no matching target is
// dropped from the result. Input order does not affect the result (both
// sides are sorted internally).
func Pairs(sources, targets []graph.Port) []Pair {
	src := append([]graph.Port(nil), sources...)
	tgt := append([]graph.Port(nil), targets...)
	sort.Slice(src, func(i, j int) bool { return src[i].PortID < src[j].PortID })
	sort.Slice(tgt, func(i, j int) bool { return tgt[i].PortID < tgt[j].PortID })

	if allLabeled(src) && allLabeled(tgt) {
		return pairByLabel(src, tgt)
	}
	return pairPositionally(src, tgt)
}

func allLabeled(ports []graph.Port) bool {
	for _, p := range ports {
		if p.Channel == graph.ChannelUnknown {
			return false
		}
	}
	return true
}

func pairByLabel(src, tgt []graph.Port) []Pair {
	used := make([]bool, len(tgt))
	var out []Pair
	for _, s := range src {
		for i, t := range tgt {
			if used[i] || t.Channel != s.Channel {
				continue
			}
			out = append(out, Pair{Source: s, Target: t})
			used[i] = true
			break
		}
	}
	return out
}

func pairPositionally(src, tgt []graph.Port) []Pair {
	n := len(src)
	if len(tgt) < n {
		n = len(tgt)
	}
	out := make([]Pair, n)
	for i := 0; i < n; i++ {
		out[i] = Pair{Source: src[i], Target: tgt[i]}
	}
	return out
}
