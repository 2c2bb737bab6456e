package routing

import "sync"

// UICommand is a message the UI sends the routing monitor. Delivery is a
// non-blocking channel send; the monitor drains it fully on every
// iteration before reconciling against the latest snapshot.
type UICommand interface{ isUICommand() }

// SetCaptureModeCommand switches between application and device capture.
type SetCaptureModeCommand struct{ Mode CaptureMode }

// SetDeviceTargetCommand names the device CaptureDevice mode targets.
type SetDeviceTargetCommand struct{ Target DeviceTarget }

// SetNodeDisabledCommand excludes (or re-includes) one application node
// from application-mode capture.
type SetNodeDisabledCommand struct {
	NodeID   uint32
	Disabled bool
}

func (SetCaptureModeCommand) isUICommand()  {}
func (SetDeviceTargetCommand) isUICommand() {}
func (SetNodeDisabledCommand) isUICommand() {}

// uiSlot is the single-slot "latest wins" mailbox spec.md §4.3 calls for
// to avoid blocking the monitor when the UI isn't keeping up: Set always
// succeeds and overwrites any undelivered value; Get drains it.
type uiSlot struct {
	mu     sync.Mutex
	latest *UIState
	has    bool
}

func (u *uiSlot) set(s UIState) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.latest = &s
	u.has = true
}

// Get returns the pending UI state and clears the slot, or ok=false if
// nothing new has been published since the last Get.
func (u *uiSlot) Get() (UIState, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.has {
		return UIState{}, false
	}
	s := *u.latest
	u.has = false
	return s, true
}
