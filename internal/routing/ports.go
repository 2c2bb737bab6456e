package routing

import (
	"strings"

	"github.com/httpsworldview/openmeters/internal/graph"
)

// findNode returns the node with id in snap, if present.
func findNode(snap graph.Snapshot, id uint32) (graph.Node, bool) {
	for _, n := range snap.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return graph.Node{}, false
}

// selectPorts implements spec.md §4.2 step 4's preference order: ports of
// the wanted direction carrying the wanted monitor-ness first, then any
// port of the wanted direction, then any port at all.
func selectPorts(n graph.Node, dir graph.Direction, wantMonitor bool) []graph.Port {
	var preferred, sameDirection []graph.Port
	for _, p := range n.Ports {
		if p.Direction != dir {
			continue
		}
		sameDirection = append(sameDirection, p)
		if p.IsMonitor == wantMonitor {
			preferred = append(preferred, p)
		}
	}
	if len(preferred) > 0 {
		return preferred
	}
	if len(sameDirection) > 0 {
		return sameDirection
	}
	return n.Ports
}

// selectOutputPorts prefers monitor outputs, for the source side.
func selectOutputPorts(n graph.Node) []graph.Port {
	return selectPorts(n, graph.DirectionOutput, true)
}

// selectInputPorts prefers non-monitor inputs, for the target side.
func selectInputPorts(n graph.Node) []graph.Port {
	return selectPorts(n, graph.DirectionInput, false)
}

// isAudioApplicationOutput reports whether n looks like an application's
// playback stream: an output node whose media class mentions audio and
// which carries an application name, per spec.md §4.3 step 6.
func isAudioApplicationOutput(n graph.Node) bool {
	if n.Direction != graph.DirectionOutput {
		return false
	}
	if !strings.Contains(strings.ToLower(n.MediaClass), "audio") {
		return false
	}
	return n.Properties["application.name"] != ""
}
