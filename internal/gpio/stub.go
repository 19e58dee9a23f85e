//go:build !linux

package gpio

import "errors"

// RealIO is not available on non-Linux platforms.
type RealIO struct{}

// Open returns an error on non-Linux platforms.
func Open(cfg Config, initial bool, onEdge func()) (*RealIO, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (r *RealIO) Set(on bool) error {
	return errors.New("gpio: not supported")
}

// SwitchLevel is not implemented on non-Linux platforms.
func (r *RealIO) SwitchLevel() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealIO) Close() error {
	return nil
}
