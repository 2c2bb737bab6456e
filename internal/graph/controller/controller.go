// Package controller runs the graph controller event loop (spec.md §4.1):
// the single goroutine that talks to an audioserver.Server, maintains the
// graph.State model, and broadcasts snapshots to subscribers. Grounded on
// the teacher's AudioEngine capture/playback goroutines in client/audio.go
// as the template "logical thread" shape (a running flag, a stop channel,
// a dedicated goroutine blocked in a bounded-wait poll), and on
// server/internal/ws's slog-based structured logging for the resilience
// diagnostics.
package controller

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/httpsworldview/openmeters/internal/audioserver"
	"github.com/httpsworldview/openmeters/internal/graph"
)

const (
	pollTimeout  = 50 * time.Millisecond
	baseBackoff  = 50 * time.Millisecond
	maxBackoffK  = 4
	maxFailures  = 10
)

// Controller owns an audioserver.Server connection, the graph.State it
// drives, and the fan-out of Snapshot updates to subscribers. Exactly one
// goroutine (started by Start) calls into the server.
type Controller struct {
	server audioserver.Server
	log    *slog.Logger

	mu    sync.Mutex
	state *graph.State
	subs  []*subscription

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New returns a controller bound to server. Call Start to begin its event
// loop.
func New(server audioserver.Server, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		server: server,
		log:    logger.With(slog.String("component", "graph.controller")),
		state:  graph.NewState(),
	}
}

// Start launches the event loop goroutine. Safe to call once.
func (c *Controller) Start() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	c.stopCh = make(chan struct{})
	c.wg.Add(1)
	go c.run()
}

// Shutdown stops the event loop and waits for it to exit.
func (c *Controller) Shutdown() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Controller) run() {
	defer c.wg.Done()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		events, err := c.server.Iterate(pollTimeout)
		if err != nil {
			failures++
			if failures >= maxFailures {
				c.log.Error("aborting after repeated iterate failures", slog.Int("failures", failures))
				return
			}
			k := failures
			if k > maxBackoffK {
				k = maxBackoffK
			}
			backoff := baseBackoff * time.Duration(1<<k)
			c.log.Warn("iterate failed, backing off", slog.String("err", err.Error()), slog.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-c.stopCh:
				return
			}
			continue
		}
		failures = 0

		for _, ev := range events {
			c.apply(ev)
		}
	}
}

// Subscribe returns a new subscription to graph snapshots, matching
// audioserver.Subscription's contract: the current snapshot immediately,
// then future updates.
func (c *Controller) Subscribe() audioserver.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := newSubscription()
	sub.push(c.state.Snapshot())
	c.subs = append(c.subs, sub)
	return sub
}

// SetLinks, RouteNode, ResetRoute, and Sync forward commands to the bound
// server, per spec.md §4.1's command set (Shutdown is Controller.Shutdown).

func (c *Controller) SetLinks(links []graph.LinkSpec) bool {
	return audioserver.SetLinks(c.server, links)
}

func (c *Controller) RouteNode(subject, targetNode uint32) bool {
	return audioserver.RouteNode(c.server, subject, targetNode)
}

func (c *Controller) ResetRoute(subject uint32) bool {
	return audioserver.ResetRoute(c.server, subject)
}

func (c *Controller) Sync() bool {
	return audioserver.Sync(c.server)
}

func (c *Controller) apply(ev audioserver.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case audioserver.GlobalAdded:
		c.applyGlobal(e.Global)
	case audioserver.GlobalRemoved:
		c.state.RemoveNode(e.ID)
		c.state.RemovePort(e.ID)
		c.publishLocked()
	case audioserver.MetadataPropertyChanged:
		c.applyMetadata(e)
	}
}

func (c *Controller) applyGlobal(g audioserver.Global) {
	switch g.Kind {
	case audioserver.GlobalNode:
		c.state.UpsertNode(nodeFromProps(g.ID, g.Props))
	case audioserver.GlobalPort:
		if p, ok := portFromProps(g.ID, g.Props); ok {
			c.state.AddPort(p)
		}
	case audioserver.GlobalDevice:
		c.state.SetDeviceCount(len(g.Props))
	case audioserver.GlobalMetadata:
		// Binding happens explicitly via BindMetadata at startup; nothing
		// to mirror into the state model for the metadata global itself.
	}
	c.publishLocked()
}

func (c *Controller) applyMetadata(e audioserver.MetadataPropertyChanged) {
	name := parseTargetName(e.Value)
	switch e.Key {
	case "default.audio.sink":
		c.state.ApplyDefaultAudioSink(name)
	case "default.audio.source":
		c.state.ApplyDefaultAudioSource(name)
	}
	c.publishLocked()
}

// parseTargetName accepts either a bare name or a JSON {"name": "..."}
// object, per spec.md §4.1's "parse value (plain string or JSON
// {name: "..."})".
func parseTargetName(value string) string {
	var obj struct {
		Name string `json:"name"`
	}
	if json.Unmarshal([]byte(value), &obj) == nil && obj.Name != "" {
		return obj.Name
	}
	return value
}

func (c *Controller) publishLocked() {
	snap := c.state.Snapshot()
	live := c.subs[:0]
	for _, sub := range c.subs {
		if sub.push(snap) {
			live = append(live, sub)
		}
	}
	c.subs = live
}

// nodeFromProps builds a graph.Node from a GlobalAdded's raw property
// dict, the shape a real node global advertises.
func nodeFromProps(id uint32, props map[string]string) graph.Node {
	return graph.Node{
		ID:          id,
		Name:        props["node.name"],
		Description: props["node.description"],
		MediaClass:  props["media.class"],
		Direction:   directionFromMediaClass(props["media.class"]),
		IsVirtual:   props["node.virtual"] == "true",
		Properties:  props,
	}
}

// portFromProps builds a graph.Port from a GlobalAdded's raw property
// dict. Ports without a resolvable node.id/port.id are dropped, since
// they can't be indexed.
func portFromProps(globalID uint32, props map[string]string) (graph.Port, bool) {
	nodeID, err := strconv.ParseUint(props["node.id"], 10, 32)
	if err != nil {
		return graph.Port{}, false
	}
	portID, err := strconv.ParseUint(props["port.id"], 10, 32)
	if err != nil {
		return graph.Port{}, false
	}
	return graph.Port{
		GlobalID:  globalID,
		PortID:    uint32(portID),
		NodeID:    uint32(nodeID),
		Channel:   graph.ParseChannelLabel(props["audio.channel"]),
		Direction: directionFromPortDirection(props["port.direction"]),
		IsMonitor: props["port.monitor"] == "true",
	}, true
}

func directionFromMediaClass(mediaClass string) graph.Direction {
	switch {
	case strings.Contains(mediaClass, "Sink"):
		return graph.DirectionInput
	case strings.Contains(mediaClass, "Source"):
		return graph.DirectionOutput
	default:
		return graph.DirectionUnknown
	}
}

func directionFromPortDirection(s string) graph.Direction {
	switch s {
	case "in":
		return graph.DirectionInput
	case "out":
		return graph.DirectionOutput
	default:
		return graph.DirectionUnknown
	}
}
