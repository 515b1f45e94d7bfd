// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewGlobals seeds an *ExitCodeTracker reachable through ExitCode.
func TestNewGlobalsSeedsExitCodeTracker(t *testing.T) {
	g := NewGlobals()
	tracker := g.ExitCode()
	require.NotNil(t, tracker)
	assert.Equal(t, ExitOK, tracker.Get())
}

// GetOrCreate creates an object once per name; later calls attach to the
// same instance and never invoke create again.
func TestGlobalsGetOrCreateSingleWinner(t *testing.T) {
	g := NewGlobals()
	calls := 0
	create := func() any {
		calls++
		return &struct{ n int }{n: calls}
	}

	first := g.GetOrCreate("hub", create)
	second := g.GetOrCreate("hub", create)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

// GetOrCreate serializes concurrent first-creation races to one winner.
func TestGlobalsGetOrCreateConcurrent(t *testing.T) {
	g := NewGlobals()
	var calls int
	var mu sync.Mutex
	create := func() any {
		mu.Lock()
		calls++
		mu.Unlock()
		return "created"
	}

	var wg sync.WaitGroup
	results := make([]any, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.GetOrCreate("shared", create)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
	for _, r := range results {
		assert.Equal(t, "created", r)
	}
}

// Get reports absence for an unknown name.
func TestGlobalsGetMissing(t *testing.T) {
	g := NewGlobals()
	_, ok := g.Get("nope")
	assert.False(t, ok)
}

// ExitCodeTracker.Set keeps the higher of the current and new codes.
func TestExitCodeTrackerMonotonicMax(t *testing.T) {
	tracker := NewExitCodeTracker()
	tracker.Set(ExitGenericError)
	tracker.Set(ExitOK)
	assert.Equal(t, ExitGenericError, tracker.Get())

	tracker.Set(ExitTLSClientHandshakeFailed)
	assert.Equal(t, ExitTLSClientHandshakeFailed, tracker.Get())

	tracker.Set(ExitWebSocketNonWebSocket)
	assert.Equal(t, ExitTLSClientHandshakeFailed, tracker.Get())
}
