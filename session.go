// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Session is one fully-parsed, fully-classified tree plus its left and
// right root node identifiers, per spec.md §3/§4.7. A Session is built
// once a command line (or equivalent front end) has finished calling
// [Tree.NewNode]/[Tree.Set]/[Tree.SetPositional]/[Tree.Finalize] on every
// node and has resolved, expanded, and classified the tree.
type Session struct {
	Tree    *Tree
	Left    NodeID
	Right   NodeID
	Globals *Globals
	Config  *Config
}

// NewSession wires tree, left, and right into a ready-to-run [Session],
// seeding a fresh [Globals] bag and, if config is nil, [NewConfig]'s
// defaults.
func NewSession(tree *Tree, left, right NodeID, config *Config) *Session {
	if config == nil {
		config = NewConfig()
	}
	return &Session{
		Tree:    tree,
		Left:    left,
		Right:   right,
		Globals: NewGlobals(),
		Config:  config,
	}
}

// Run executes the session once, per spec.md §4.7: it runs the left root,
// then the right root, joins the two resulting bipipes with
// [CopyBipipes], and propagates exit codes through the session's
// [ExitCodeTracker].
//
// If the left root is a listener (it calls [ServerModeContext.Accepted]
// one or more times instead of returning a single bipipe directly), Run
// instead drives the accept loop: each accepted connection gets its own
// run of the right root, concurrently with the others, and Run returns
// once the left side's Run call has returned and every such connection
// has finished. A failing connection records its exit code but does not
// stop the accept loop.
func (s *Session) Run(ctx context.Context) error {
	forward := NewPropertyBag()

	var wg sync.WaitGroup
	smc := &ServerModeContext{
		Accepted: func(ctx context.Context, leftConn Bipipe) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.runOneConnection(ctx, leftConn, forward) // exit code already recorded
			}()
			return nil
		},
	}

	leftRC := &RunContext{Tree: s.Tree, Globals: s.Globals, Config: s.Config, Forward: forward}
	leftBipipe, err := s.Tree.RunNode(ctx, s.Left, leftRC, smc)
	wg.Wait()
	if err != nil {
		s.Globals.ExitCode().Set(ExitGenericError)
		return fmt.Errorf("left side: %w", err)
	}

	// A listening left side drives every connection through smc.Accepted
	// and returns a zero Bipipe (both sides absent) once its accept loop
	// itself exits; there is nothing further to copy at the top level.
	if leftBipipe.IsReadAbsent() && leftBipipe.IsWriteAbsent() {
		return nil
	}

	return s.runOneConnection(ctx, leftBipipe, forward)
}

// runOneConnection runs the right root against one already-established
// left-side bipipe and joins the two, per spec.md §4.7 step 4.
func (s *Session) runOneConnection(ctx context.Context, leftConn Bipipe, forward *PropertyBag) error {
	rightRC := &RunContext{Tree: s.Tree, Globals: s.Globals, Config: s.Config, Forward: forward}
	rightConn, err := s.Tree.RunNode(ctx, s.Right, rightRC, nil)
	if err != nil {
		s.Globals.ExitCode().Set(ExitGenericError)
		return fmt.Errorf("right side: %w", err)
	}

	err = CopyBipipes(ctx, leftConn, rightConn)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.Globals.ExitCode().Set(exitCodeForError(err))
	}
	return err
}

// exitCodeForError maps a [CopyBipipes] failure to one of the well-known
// exit codes in globals.go, per spec.md §6/§7: specific exit codes are set
// only for their named conditions, everything else surfaces as
// [ExitGenericError]. In particular, [ErrFramingMismatch] on its own is the
// generic byte/datagram framing mismatch (e.g. a plain mirror-to-mirror
// join with mismatched kinds) and is not a WebSocket condition, so it falls
// through to the generic code; only a broken-framing failure reported
// through a [*WebSocketUpgradeFailedError] (post-upgrade, not the dial
// failure wsClientNode raises today) earns exit 4.
func exitCodeForError(err error) int {
	var wsErr *WebSocketUpgradeFailedError
	if errors.As(err, &wsErr) {
		if wsErr.Detail == wsUpgradeBrokenFramingDetail {
			return ExitWebSocketBrokenFraming
		}
		return ExitWebSocketNonWebSocket
	}
	if errors.Is(err, ErrTLSFailed) {
		return ExitTLSClientHandshakeFailed
	}
	return ExitGenericError
}
