// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import "sync"

// Globals is the process-wide, append-only bag of named shared resources
// described in spec.md §5: writers and readers coordinate via internal
// locking of each object, and objects are addressed by name, never
// captured by reference across nodes (spec.md §3 invariant 5).
//
// The zero value is not usable; construct with [NewGlobals].
type Globals struct {
	mu      sync.Mutex
	objects map[string]any
}

// NewGlobals returns an empty, ready-to-use [Globals] bag, seeded with an
// [*ExitCodeTracker] under the well-known name "exitCode".
func NewGlobals() *Globals {
	g := &Globals{objects: make(map[string]any)}
	g.objects[globalsExitCodeKey] = NewExitCodeTracker()
	return g
}

const globalsExitCodeKey = "exitCode"

// GetOrCreate returns the named object, creating it via create if it does
// not yet exist. Concurrent calls for the same name are serialized; only
// one create() call wins per name, matching the "first placement creates
// the hub, later placements attach to it" semantics the reuse/broadcast
// node class relies on.
func (g *Globals) GetOrCreate(name string, create func() any) any {
	g.mu.Lock()
	defer g.mu.Unlock()
	if obj, ok := g.objects[name]; ok {
		return obj
	}
	obj := create()
	g.objects[name] = obj
	return obj
}

// Get returns the named object, or false if it does not exist.
func (g *Globals) Get(name string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	obj, ok := g.objects[name]
	return obj, ok
}

// ExitCodeTracker is the monotonic-max process-wide exit code, per
// spec.md §5/§6/§8: set(code) keeps the higher of the current value and
// code; get is a plain load.
type ExitCodeTracker struct {
	mu   sync.Mutex
	code int
}

// NewExitCodeTracker returns a tracker initialized to exit code 0.
func NewExitCodeTracker() *ExitCodeTracker {
	return &ExitCodeTracker{}
}

// Set raises the tracked code to code if code is higher than the current
// value; otherwise it is a no-op.
func (t *ExitCodeTracker) Set(code int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if code > t.code {
		t.code = code
	}
}

// Get returns the current tracked code.
func (t *ExitCodeTracker) Get() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.code
}

// ExitCode returns the well-known [*ExitCodeTracker] every [Session]
// shares through its [Globals] bag.
func (g *Globals) ExitCode() *ExitCodeTracker {
	obj, _ := g.Get(globalsExitCodeKey)
	return obj.(*ExitCodeTracker)
}

// Well-known exit codes, per spec.md §6. Further codes may be added but
// these are reserved.
const (
	ExitOK                       = 0
	ExitGenericError             = 1
	ExitWebSocketNonWebSocket    = 3
	ExitWebSocketBrokenFraming   = 4
	ExitTLSClientHandshakeFailed = 5
)
