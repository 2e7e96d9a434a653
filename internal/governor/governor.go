// Package governor installs the process-wide address-space ceiling that
// every solver run inherits.
package governor

import (
	"errors"
	"fmt"

	"github.com/docker/go-units"
)

var ErrLimitNotInstalled = errors.New("address-space limit not installed")

// Limit is an installed RLIMIT_AS ceiling.
type Limit struct {
	Soft uint64
	Hard uint64
}

// Unlimited reports whether no ceiling is in effect.
func (l Limit) Unlimited() bool {
	return l.Soft == infinity
}

func (l Limit) String() string {
	if l.Unlimited() {
		return "Set RAM-Limit to unlimited"
	}
	return fmt.Sprintf("Set RAM-Limit to %s (%d bytes)", units.BytesSize(float64(l.Soft)), l.Soft)
}

// Install sets the ceiling and reads it back. Callers must treat an error as
// fatal: running a sweep without the ceiling is not allowed.
func Install(limitBytes int64) (Limit, error) {
	if limitBytes <= 0 {
		return Limit{}, fmt.Errorf("%w: invalid limit %d", ErrLimitNotInstalled, limitBytes)
	}
	if err := setAddressSpace(uint64(limitBytes)); err != nil {
		return Limit{}, fmt.Errorf("%w: %w", ErrLimitNotInstalled, err)
	}
	lim, err := Current()
	if err != nil {
		return Limit{}, fmt.Errorf("%w: %w", ErrLimitNotInstalled, err)
	}
	if lim.Soft != uint64(limitBytes) {
		return lim, fmt.Errorf("%w: kernel reports %d, want %d", ErrLimitNotInstalled, lim.Soft, limitBytes)
	}
	return lim, nil
}

// Current returns the ceiling in effect for this process.
func Current() (Limit, error) {
	return getAddressSpace()
}
