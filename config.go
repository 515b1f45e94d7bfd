// SPDX-License-Identifier: GPL-3.0-or-later

package noded

import (
	"net"
	"time"
)

// Config holds common configuration for noded operations.
//
// Pass this to constructor functions to pre-wire dependencies, and to
// [RunContext] so every node class reaches the same dialer, classifier,
// clock, and logger without having them threaded explicitly through every
// level of the tree.
//
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by node classes that open TCP/UDP connections.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the default [SLogger] for node classes that were not given
	// one explicitly.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: DefaultErrClassifier,
		Logger:        DefaultSLogger(),
		TimeNow:       time.Now,
	}
}
